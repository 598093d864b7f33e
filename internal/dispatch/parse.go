package dispatch

import (
	"strings"
)

// Request is a parsed command.
type Request struct {
	Command   string
	Args      []string
	CallerID  string
	ChannelID string
}

// Parse splits text into a command and its arguments when it starts with prefix.
// Command names are case-insensitive.
func Parse(text, prefix string) (Request, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Request{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return Request{}, false
	}
	return Request{Command: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// ParseOwner accepts a raw id or a mention such as <@123> or <@!123>.
func ParseOwner(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if strings.HasPrefix(id, "<@") && strings.HasSuffix(id, ">") {
		id = strings.TrimPrefix(strings.TrimSuffix(strings.TrimPrefix(id, "<@"), ">"), "!")
	}
	if id == "" || strings.ContainsAny(id, "<>@ ") {
		return "", false
	}
	return id, true
}
