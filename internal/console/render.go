package console

import (
	"encoding/json"
	"fmt"

	"github.com/goodtune/attr/internal/quota"
)

// AllPlayers is the selector targeting every connected player.
const AllPlayers = "@a"

// component is a chat text component.
type component struct {
	Text  string      `json:"text"`
	Color string      `json:"color,omitempty"`
	Bold  bool        `json:"bold,omitempty"`
	Extra []component `json:"extra,omitempty"`
}

func target(player string) string {
	if player == "" {
		return AllPlayers
	}
	return player
}

// Message renders styled parts as a chat component.
func Message(parts []quota.Part) (string, error) {
	root := component{Text: ""}
	for _, p := range parts {
		root.Extra = append(root.Extra, component{Text: p.Text, Color: p.Color, Bold: p.Bold})
	}
	data, err := json.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	return string(data), nil
}

func single(parts []quota.Part) (string, error) {
	if len(parts) == 1 {
		p := parts[0]
		data, err := json.Marshal(component{Text: p.Text, Color: p.Color, Bold: p.Bold})
		if err != nil {
			return "", fmt.Errorf("encoding title: %w", err)
		}
		return string(data), nil
	}
	return Message(parts)
}

// Render converts an effect into console commands, in execution order.
func Render(e quota.Effect) ([]string, error) {
	switch e.Kind {
	case quota.EffectTell, quota.EffectBroadcast:
		msg, err := Message(e.Parts)
		if err != nil {
			return nil, err
		}
		who := target(e.Player)
		if e.Kind == quota.EffectBroadcast {
			who = AllPlayers
		}
		return []string{fmt.Sprintf("tellraw %s %s", who, msg)}, nil

	case quota.EffectTitle:
		who := target(e.Player)
		var cmds []string
		// The subtitle is only shown with the next title, so it goes first.
		if len(e.Subtitle) > 0 {
			sub, err := single(e.Subtitle)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, fmt.Sprintf("title %s subtitle %s", who, sub))
		}
		title, err := single(e.Parts)
		if err != nil {
			return nil, err
		}
		return append(cmds, fmt.Sprintf("title %s title %s", who, title)), nil

	case quota.EffectBan:
		if e.Player == "" {
			return nil, fmt.Errorf("ban without player")
		}
		if e.Reason == "" {
			return []string{"ban " + e.Player}, nil
		}
		return []string{fmt.Sprintf("ban %s %s", e.Player, e.Reason)}, nil

	case quota.EffectPardon:
		if e.Player == "" {
			return nil, fmt.Errorf("pardon without player")
		}
		return []string{"pardon " + e.Player}, nil
	}
	return nil, fmt.Errorf("unknown effect kind %d", e.Kind)
}
