package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
	"github.com/lorenzotomasdiez/chameleon/internal/game"
)

const (
	maxSlugLen = 50
	logFile    = "game.log"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug lowercases s and joins its words with dashes.
func GenerateSlug(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// CreateOutputDir creates base/slug-YYYYMMDD-HHMMSS.
func CreateOutputDir(base, slug string) (string, error) {
	dir := filepath.Join(base, fmt.Sprintf("%s-%s", slug, time.Now().Format("20060102-150405")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("output: %w", err)
	}
	return dir, nil
}

// Writer saves a session's artifacts into one directory.
type Writer struct {
	dir string

	mu      sync.Mutex
	entries []string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

// Log records a timestamped line and appends it to game.log right away, so
// an aborted session still leaves a log.
func (w *Writer) Log(msg string) {
	line := fmt.Sprintf("%s %s", time.Now().Format(time.RFC3339), msg)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, line)

	f, err := os.OpenFile(filepath.Join(w.dir, logFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, line)
}

// WriteLog rewrites game.log with every logged line.
func (w *Writer) WriteLog() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	data := strings.Join(w.entries, "\n")
	if len(w.entries) > 0 {
		data += "\n"
	}
	if err := os.WriteFile(filepath.Join(w.dir, logFile), []byte(data), 0o644); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// WriteJSON saves the full record as transcript.json.
func (w *Writer) WriteJSON(rec *game.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, "transcript.json"), data, 0o644); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// WriteMarkdown saves a readable report as report.md.
func (w *Writer) WriteMarkdown(rec *game.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Chameleon session %s\n\n", rec.SessionID)
	fmt.Fprintf(&b, "- **Animal:** %s\n", rec.Animal)
	fmt.Fprintf(&b, "- **Chameleon:** %s\n", rec.Chameleon)
	fmt.Fprintf(&b, "- **Winner:** %s\n", rec.Winner)
	fmt.Fprintf(&b, "- **Vote rule:** %s\n", rec.Settings.VoteRule)
	if rec.Guess != "" {
		fmt.Fprintf(&b, "- **Chameleon guess:** %s\n", rec.Guess)
	}

	b.WriteString("\n## Players\n\n| Seat | Name | Role | Controller |\n|---|---|---|---|\n")
	for i, p := range rec.Players {
		fmt.Fprintf(&b, "| %d | %s | %s | %s (%s) |\n", i+1, p.Name, p.Role, p.ControllerName, p.Controller)
	}

	b.WriteString("\n## Descriptions\n\n")
	for _, e := range rec.Descriptions {
		fmt.Fprintf(&b, "- **%s:** %s\n", e.Name, e.Response)
	}

	b.WriteString("\n## Votes\n\n")
	for _, v := range rec.Votes {
		fmt.Fprintf(&b, "- %s → %s\n", v.Voter, v.Accused)
	}
	fmt.Fprintf(&b, "\nTally: %s\n", rec.Tally)

	b.WriteString("\n## Transcripts\n")
	for _, p := range rec.Players {
		fmt.Fprintf(&b, "\n### %s\n\n", p.Name)
		for _, m := range p.Messages {
			if m.Display == conversation.DisplayDebug {
				continue
			}
			fmt.Fprintf(&b, "**%d %s:**\n\n%s\n\n", m.Index, m.Role, m.Content)
		}
	}

	if err := os.WriteFile(filepath.Join(w.dir, "report.md"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}
