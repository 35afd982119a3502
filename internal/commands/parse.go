package commands

import (
	"regexp"
	"strings"
)

// chatPattern matches "[HH:MM:SS] [<thread>/INFO]: <player> message".
var chatPattern = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\] \[.*?/INFO\]: <([^>]+)> (.+)$`)

// ChatLine is a player chat message from the console.
type ChatLine struct {
	Time    string
	Player  string
	Message string
}

// ParseLine extracts a chat message from a console line.
func ParseLine(line string) (ChatLine, bool) {
	m := chatPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return ChatLine{}, false
	}
	return ChatLine{Time: m[1], Player: m[2], Message: m[3]}, true
}

// ParseCommand splits a prefixed chat message into a lower-cased command
// name and its arguments.
func ParseCommand(prefix, message string) (string, []string, bool) {
	if !strings.HasPrefix(message, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(message, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
