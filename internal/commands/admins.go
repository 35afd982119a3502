package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Admins is the set of players allowed to run admin commands.
type Admins map[string]bool

// Contains reports whether player is an admin.
func (a Admins) Contains(player string) bool {
	return a[player]
}

// Names returns the admins sorted.
func (a Admins) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseAdmins reads a document of the form {"admins": ["name", ...]}.
func ParseAdmins(data []byte) (Admins, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	list := gjson.GetBytes(data, "admins")
	if !list.IsArray() {
		return nil, fmt.Errorf(`missing "admins" list`)
	}
	admins := make(Admins)
	for _, v := range list.Array() {
		if name := v.String(); name != "" {
			admins[name] = true
		}
	}
	return admins, nil
}

// LoadAdmins reads the admin list from path. A missing or invalid file
// yields no admins.
func LoadAdmins(path string, logger zerolog.Logger) Admins {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", path).Msg("Admins file not found, no admins configured")
		} else {
			logger.Error().Err(err).Str("path", path).Msg("Failed to read admins file")
		}
		return Admins{}
	}

	admins, err := ParseAdmins(data)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to parse admins file")
		return Admins{}
	}
	logger.Info().Strs("admins", admins.Names()).Msg("Loaded admins")
	return admins
}
