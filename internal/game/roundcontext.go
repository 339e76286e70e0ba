package game

import "strings"

// Entry is one validated response in a phase.
type Entry struct {
	Name     string `json:"name"`
	Response string `json:"response"`
}

// RoundContext accumulates the validated responses of a phase in turn
// order. Prompts read it through Snapshot.
type RoundContext struct {
	entries []Entry
}

// Append adds a response after all earlier ones.
func (rc *RoundContext) Append(name, response string) {
	rc.entries = append(rc.entries, Entry{Name: name, Response: response})
}

// Entries returns a copy of the entries in turn order.
func (rc *RoundContext) Entries() []Entry {
	return append([]Entry(nil), rc.entries...)
}

func (rc *RoundContext) Len() int { return len(rc.entries) }

// Snapshot formats the entries as " - {name}: {response}" lines.
func (rc *RoundContext) Snapshot() string {
	lines := make([]string, len(rc.entries))
	for i, e := range rc.entries {
		lines[i] = " - " + e.Name + ": " + e.Response
	}
	return strings.Join(lines, "\n")
}
