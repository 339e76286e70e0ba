package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
)

// Human reads replies from a line-oriented input and echoes the game's
// messages to an output.
type Human struct {
	in      *bufio.Reader
	out     io.Writer
	verbose lipgloss.Style
	debug   lipgloss.Style
}

// NewHuman returns a controller reading from in and echoing to out.
func NewHuman(in io.Reader, out io.Writer) *Human {
	r := lipgloss.NewRenderer(out)
	return &Human{
		in:      bufio.NewReader(in),
		out:     out,
		verbose: r.NewStyle().Foreground(lipgloss.Color("2")),
		debug:   r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

func newHumanFromSpec(spec Spec) (Controller, error) {
	in, out := spec.In, spec.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return NewHuman(in, out), nil
}

func (h *Human) Kind() Kind { return KindHuman }

func (h *Human) Policy() Policy { return Policy{LatestOnly: true, Direct: true} }

// Generate blocks until a line is read. The prompt has already been shown
// by Echo, so msgs is not consulted.
func (h *Human) Generate(ctx context.Context, _ []conversation.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("controller: %w", err)
	}
	line, err := h.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("controller: reading human input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Echo prints messages the player did not write.
func (h *Human) Echo(msg conversation.Message) {
	if msg.Role == conversation.RoleAgent {
		return
	}
	switch msg.Display {
	case conversation.DisplayVerbose:
		fmt.Fprintln(h.out, h.verbose.Render(msg.Content))
	case conversation.DisplayDebug:
		fmt.Fprintln(h.out, h.debug.Render("DEBUG: "+msg.Content))
	default:
		fmt.Fprintln(h.out, msg.Content)
	}
}
