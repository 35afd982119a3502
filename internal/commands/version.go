package commands

import "runtime/debug"

// BuildVersion describes the running binary from its build info.
func BuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	var revision string
	var modified bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	version := info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	if revision != "" {
		if len(revision) > 7 {
			revision = revision[:7]
		}
		version += "-" + revision
		if modified {
			version += "-dirty"
		}
	}
	return version
}
