// Package output renders a session to the terminal and to an output
// directory.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lorenzotomasdiez/chameleon/internal/archive"
	"github.com/lorenzotomasdiez/chameleon/internal/game"
	"github.com/lorenzotomasdiez/chameleon/internal/openrouter"
)

// Printer writes styled session progress to a terminal.
type Printer struct {
	out io.Writer
	r   *lipgloss.Renderer

	name      lipgloss.Style
	describe  lipgloss.Style
	vote      lipgloss.Style
	banner    lipgloss.Style
	herd      lipgloss.Style
	chameleon lipgloss.Style
	dim       lipgloss.Style
}

// NewPrinter styles for out's color support; colors are dropped when out is
// not a terminal.
func NewPrinter(out io.Writer) *Printer {
	p := &Printer{out: out, r: lipgloss.NewRenderer(out)}
	p.restyle()
	return p
}

// ForceColor renders ANSI colors whatever out is.
func (p *Printer) ForceColor() {
	p.r.SetColorProfile(termenv.ANSI)
	p.restyle()
}

func (p *Printer) restyle() {
	p.name = p.r.NewStyle().Bold(true)
	p.describe = p.r.NewStyle().Foreground(lipgloss.Color("3"))
	p.vote = p.r.NewStyle().Foreground(lipgloss.Color("5"))
	p.banner = p.r.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	p.herd = p.r.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	p.chameleon = p.r.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	p.dim = p.r.NewStyle().Faint(true)
}

// PrintHeader announces a session before it starts.
func (p *Printer) PrintHeader(id string, players int, rule game.VoteRule, dir string) {
	fmt.Fprintf(p.out, "Session %s | Players: %d | Rule: %s | Output: %s\n", p.name.Render(id), players, rule, dir)
}

// PrintTurn prints one validated contribution in full.
func (p *Printer) PrintTurn(turn game.Turn) {
	label := p.describe.Render(fmt.Sprintf("[%s %d]", turn.Phase, turn.Index+1))
	if turn.Phase != game.PhaseDescribe {
		label = p.vote.Render(fmt.Sprintf("[%s %d]", turn.Phase, turn.Index+1))
	}
	content := turn.Content
	if turn.Phase == game.PhaseVote {
		content = "votes for " + content
	}
	fmt.Fprintf(p.out, "%s %s: %s\n", label, p.name.Render(turn.Player), content)
}

// PrintPhase prints a phase banner. Setup and init are silent.
func (p *Printer) PrintPhase(phase game.Phase) {
	if phase < game.PhaseDescribe {
		return
	}
	fmt.Fprintf(p.out, "\n%s\n\n", p.banner.Render("=== Phase: "+strings.ToUpper(phase.String())+" ==="))
}

// PrintOutcome prints the reveal and the winner.
func (p *Printer) PrintOutcome(rec *game.Record) {
	winner := p.herd
	if rec.Winner == game.WinnerChameleon {
		winner = p.chameleon
	}
	fmt.Fprintf(p.out, "The Chameleon was %s. The animal was %s.\n", p.name.Render(rec.Chameleon), p.name.Render(rec.Animal))
	fmt.Fprintf(p.out, "Votes: %s\n", rec.Tally)
	if rec.Guess != "" {
		fmt.Fprintf(p.out, "Chameleon guessed: %s\n", rec.Guess)
	}
	fmt.Fprintf(p.out, "Winner: %s\n", winner.Render(string(rec.Winner)))
}

// PrintSessions lists archived sessions.
func (p *Printer) PrintSessions(sessions []archive.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(p.out, p.dim.Render("No archived sessions."))
		return
	}
	for _, s := range sessions {
		winner := p.herd
		if s.Winner == game.WinnerChameleon {
			winner = p.chameleon
		}
		fmt.Fprintf(p.out, "%s  %s  %d players  %-9s chameleon=%s  %s\n",
			p.name.Render(s.ID),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Players,
			s.Animal,
			s.Chameleon,
			winner.Render(string(s.Winner)),
		)
	}
}

// PrintModels lists models, one per line.
func (p *Printer) PrintModels(models []openrouter.Model) {
	for _, m := range models {
		fmt.Fprintf(p.out, "%s  %s\n", p.name.Render(m.ID), p.dim.Render(m.Name))
	}
}
