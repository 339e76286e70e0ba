package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
	"github.com/lorenzotomasdiez/chameleon/internal/player"
	"github.com/lorenzotomasdiez/chameleon/internal/structured"
)

// bot is an automated test controller answering through a function.
type bot struct {
	reply  func(in []conversation.Message) (string, error)
	inputs [][]conversation.Message
}

func (b *bot) Kind() controller.Kind { return controller.KindAutomated }
func (b *bot) Policy() controller.Policy { return controller.Policy{} }

func (b *bot) Generate(_ context.Context, in []conversation.Message) (string, error) {
	b.inputs = append(b.inputs, in)
	return b.reply(in)
}

// prompts returns the instruction messages the bot was shown.
func (b *bot) prompts() []string {
	var out []string
	seen := map[int]bool{}
	for _, in := range b.inputs {
		for _, m := range in {
			if m.Role == conversation.RoleInstruction && !seen[m.Index] {
				seen[m.Index] = true
				out = append(out, m.Content)
			}
		}
	}
	return out
}

type memArchiver struct {
	records []*Record
	err     error
}

func (m *memArchiver) Archive(_ context.Context, rec *Record) error {
	m.records = append(m.records, rec)
	return m.err
}

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func isVote(in []conversation.Message) bool {
	return strings.Contains(in[len(in)-1].Content, "time to vote")
}

// cooperative answers every describe turn with a fixed line per seat and
// votes for *accuse.
func cooperative(accuse *string) func(Slot) *bot {
	return func(s Slot) *bot {
		return &bot{reply: func(in []conversation.Message) (string, error) {
			if isVote(in) {
				return fmt.Sprintf(`{"vote": %q}`, *accuse), nil
			}
			return fmt.Sprintf(`{"description": "I am player %d"}`, s.Index), nil
		}}
	}
}

// table seats bots built by mk and returns the game with its bots by name.
func table(t *testing.T, s Settings, seed uint64, mk func(Slot) *bot, opts ...Option) (*Game, map[string]*bot) {
	t.Helper()
	bots := map[string]*bot{}
	src := ControllerSourceFunc(func(slot Slot) (controller.Controller, string, error) {
		b := mk(slot)
		bots[slot.Name] = b
		return b, "test/bot", nil
	})
	g, err := Setup(s, NewDice(seed), src, append([]Option{quiet}, opts...)...)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return g, bots
}

func nullSource() ControllerSource {
	return ControllerSourceFunc(func(Slot) (controller.Controller, string, error) {
		return controller.NewScripted(), "scripted", nil
	})
}

// seedWhere finds the first seed whose setup satisfies ok.
func seedWhere(t *testing.T, s Settings, ok func(*Game) bool) uint64 {
	t.Helper()
	for seed := uint64(0); seed < 5000; seed++ {
		g, err := Setup(s, NewDice(seed), nullSource(), quiet)
		if err != nil {
			t.Fatalf("Setup: %v", err)
		}
		if ok(g) {
			return seed
		}
	}
	t.Fatal("no seed satisfies the condition")
	return 0
}

func TestDescribeOrderAndSecrecy(t *testing.T) {
	s := DefaultSettings()
	seed := seedWhere(t, s, func(g *Game) bool { return g.chameleon == 2 && g.animal == "Elephant" })

	var accuse string
	g, bots := table(t, s, seed, cooperative(&accuse))
	accuse = g.Chameleon().Name()

	rec, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries := g.Descriptions()
	if len(entries) != 5 {
		t.Fatalf("expected 5 descriptions, got %d", len(entries))
	}
	for i, p := range g.Players() {
		if entries[i].Name != p.Name() {
			t.Errorf("description %d by %s, want %s", i, entries[i].Name, p.Name())
		}
		if want := fmt.Sprintf("I am player %d", i); entries[i].Response != want {
			t.Errorf("description %d = %q, want %q", i, entries[i].Response, want)
		}
	}

	for _, p := range g.Players() {
		describePrompt := bots[p.Name()].prompts()[1]
		if p.Role() == player.RoleChameleon {
			for _, in := range bots[p.Name()].inputs {
				for _, m := range in {
					if strings.Contains(m.Content, "Elephant") {
						t.Errorf("chameleon saw the animal in %q", m.Content)
					}
				}
			}
			if !strings.Contains(describePrompt, " - "+entries[0].Name+": I am player 0\n - "+entries[1].Name+": I am player 1") {
				t.Errorf("chameleon prompt missing earlier descriptions:\n%s", describePrompt)
			}
			continue
		}
		if !strings.Contains(describePrompt, "Elephant") {
			t.Errorf("%s prompt does not name the animal", p.Name())
		}
	}

	if rec.Winner != WinnerHerd {
		t.Errorf("Winner = %s, want Herd", rec.Winner)
	}
	if rec.Animal != "Elephant" || rec.Chameleon != g.Players()[2].Name() {
		t.Errorf("record = animal %s chameleon %s", rec.Animal, rec.Chameleon)
	}
	if len(rec.Votes) != 5 || rec.Tally[accuse] != 5 {
		t.Errorf("votes = %+v tally = %v", rec.Votes, rec.Tally)
	}
}

func TestVotePromptSeesAllDescriptions(t *testing.T) {
	var accuse string
	g, bots := table(t, DefaultSettings(), 7, cooperative(&accuse))
	accuse = "nobody"

	if _, err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, p := range g.Players() {
		b := bots[p.Name()]
		last := b.inputs[len(b.inputs)-1]
		vote := last[len(last)-1].Content
		for i := range g.Players() {
			if !strings.Contains(vote, fmt.Sprintf("I am player %d", i)) {
				t.Errorf("%s vote prompt missing description %d", p.Name(), i)
			}
		}
	}
}

func TestTurnOrderWithHuman(t *testing.T) {
	s := DefaultSettings()
	s.HumanName = "Zed"

	var humanOut strings.Builder
	human := controller.NewHuman(strings.NewReader("I like   tall trees\nJill\n"), &humanOut)
	var accuse string
	auto := cooperative(&accuse)
	src := ControllerSourceFunc(func(slot Slot) (controller.Controller, string, error) {
		if slot.Human {
			return human, "human", nil
		}
		return auto(slot), "test/bot", nil
	})
	g, err := Setup(s, NewDice(3), src, quiet)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	accuse = g.Chameleon().Name()

	rec, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	humans := 0
	for i, p := range g.Players() {
		e := g.Descriptions()[i]
		if e.Name != p.Name() {
			t.Errorf("description %d by %s, want %s", i, e.Name, p.Name())
		}
		if p.IsHuman() {
			humans++
			if e.Response != "I like   tall trees" {
				t.Errorf("human description = %q, want raw line", e.Response)
			}
		}
	}
	if humans != 1 {
		t.Errorf("expected 1 human, got %d", humans)
	}
	if !strings.Contains(humanOut.String(), "Your name is Zed") {
		t.Error("human should see the welcome message")
	}
	found := false
	for _, v := range rec.Votes {
		if v.Voter == "Zed" && v.Accused == "Jill" {
			found = true
		}
	}
	if !found {
		t.Errorf("human vote missing from %+v", rec.Votes)
	}
}

func TestFormatFailureAbortsSession(t *testing.T) {
	var accuse string
	ok := cooperative(&accuse)
	archiver := &memArchiver{}
	g, bots := table(t, DefaultSettings(), 11, func(s Slot) *bot {
		if s.Index == 1 {
			return &bot{reply: func([]conversation.Message) (string, error) { return "I refuse to use JSON", nil }}
		}
		return ok(s)
	}, WithArchiver(archiver))

	_, err := g.Run(context.Background())
	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	stubborn := g.Players()[1]
	if se.Phase != PhaseDescribe || se.Player != stubborn.Name() {
		t.Errorf("SessionError = phase %s player %s", se.Phase, se.Player)
	}
	var fe *structured.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError in chain, got %v", err)
	}
	if fe.Raw != "I refuse to use JSON" {
		t.Errorf("Raw = %q", fe.Raw)
	}

	agent := 0
	for _, m := range stubborn.Transcript() {
		if m.Role == conversation.RoleAgent {
			agent++
		}
	}
	if agent != structured.DefaultRetries+1 {
		t.Errorf("transcript has %d attempts, want %d", agent, structured.DefaultRetries+1)
	}
	for _, p := range g.Players()[2:] {
		if n := len(bots[p.Name()].inputs); n != 0 {
			t.Errorf("%s was asked %d times after the session failed", p.Name(), n)
		}
	}
	if len(archiver.records) != 0 {
		t.Error("failed sessions must not be archived")
	}
}

func TestGenerationFailureInVote(t *testing.T) {
	boom := errors.New("backend down")
	var accuse string
	ok := cooperative(&accuse)
	g, _ := table(t, DefaultSettings(), 5, func(s Slot) *bot {
		if s.Index == 0 {
			return &bot{reply: func(in []conversation.Message) (string, error) {
				if isVote(in) {
					return "", boom
				}
				return `{"description": "I am tall"}`, nil
			}}
		}
		return ok(s)
	})

	_, err := g.Run(context.Background())
	var se *SessionError
	if !errors.As(err, &se) || se.Phase != PhaseVote {
		t.Fatalf("expected vote SessionError, got %v", err)
	}
	var ge *structured.GenerationError
	if !errors.As(err, &ge) || !errors.Is(err, boom) {
		t.Errorf("expected GenerationError wrapping backend error, got %v", err)
	}
	if len(g.Votes()) != 0 {
		t.Errorf("no votes should be recorded, got %+v", g.Votes())
	}
}

func TestHumanWithMultiFieldVoteFailsAtSetup(t *testing.T) {
	s := DefaultSettings()
	s.HumanName = "Zed"
	twoField := structured.Schema{Title: "Vote", Fields: []structured.Field{
		{Name: "vote", Type: structured.TypeString, Required: true},
		{Name: "reason", Type: structured.TypeString, Required: true},
	}}
	in := &countingReader{}
	src := ControllerSourceFunc(func(slot Slot) (controller.Controller, string, error) {
		if slot.Human {
			return controller.NewHuman(in, io.Discard), "human", nil
		}
		return controller.NewScripted(), "scripted", nil
	})

	_, err := Setup(s, NewDice(1), src, quiet, WithSchemas(describeSchema, twoField))
	if !errors.Is(err, structured.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var ce *structured.ConfigError
	if !errors.As(err, &ce) || ce.Player != "Zed" {
		t.Errorf("expected ConfigError for Zed, got %v", err)
	}
	if in.reads != 0 {
		t.Errorf("human input read %d times", in.reads)
	}
}

type countingReader struct{ reads int }

func (c *countingReader) Read([]byte) (int, error) {
	c.reads++
	return 0, io.EOF
}

func TestPhasesAdvanceOnce(t *testing.T) {
	var accuse string
	g, _ := table(t, DefaultSettings(), 2, cooperative(&accuse))
	if g.Phase() != PhaseSetup {
		t.Fatalf("Phase after Setup = %s", g.Phase())
	}
	var phases []string
	g.OnPhase = func(p Phase) { phases = append(phases, p.String()) }
	var turns []Turn
	g.OnTurn = func(t Turn) { turns = append(turns, t) }

	if _, err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(phases, ","); got != "describe,vote,resolve,done" {
		t.Errorf("phases = %s", got)
	}
	if len(turns) != 10 {
		t.Errorf("expected 10 turns, got %d", len(turns))
	}
	if _, err := g.Run(context.Background()); err == nil {
		t.Error("a finished session must not run again")
	}
}

func TestChameleonGuessFlipsWinner(t *testing.T) {
	s := DefaultSettings()
	s.ChameleonGuess = true
	var accuse, animal string
	base := cooperative(&accuse)
	g, _ := table(t, s, 9, func(slot Slot) *bot {
		b := base(slot)
		if slot.Role != player.RoleChameleon {
			return b
		}
		vote := b.reply
		b.reply = func(in []conversation.Message) (string, error) {
			if strings.Contains(in[len(in)-1].Content, "one chance to win") {
				return fmt.Sprintf(`{"animal": %q}`, strings.ToLower(animal)), nil
			}
			return vote(in)
		}
		return b
	})
	accuse, animal = g.Chameleon().Name(), g.Animal()

	rec, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Winner != WinnerChameleon {
		t.Errorf("Winner = %s, want Chameleon after a correct guess", rec.Winner)
	}
	if rec.Guess != strings.ToLower(animal) {
		t.Errorf("Guess = %q", rec.Guess)
	}
}

func TestNoGuessByDefault(t *testing.T) {
	var accuse string
	g, bots := table(t, DefaultSettings(), 9, cooperative(&accuse))
	accuse = g.Chameleon().Name()
	rec, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Winner != WinnerHerd || rec.Guess != "" {
		t.Errorf("record = winner %s guess %q", rec.Winner, rec.Guess)
	}
	if n := len(bots[accuse].inputs); n != 2 {
		t.Errorf("chameleon generated %d replies, want 2", n)
	}
}

func TestArchiveFailureIsNotFatal(t *testing.T) {
	broken := &memArchiver{err: errors.New("db locked")}
	good := &memArchiver{}
	var accuse string
	g, _ := table(t, DefaultSettings(), 4, cooperative(&accuse), WithArchiver(broken), WithArchiver(good))
	accuse = "nobody"

	rec, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("archive failure should not fail the session: %v", err)
	}
	if rec.Winner != WinnerChameleon {
		t.Errorf("Winner = %s, want Chameleon", rec.Winner)
	}
	if len(good.records) != 1 || good.records[0].SessionID != g.ID() {
		t.Errorf("second archiver did not receive the record")
	}
	if len(rec.Players) != 5 || len(rec.Players[0].Messages) == 0 {
		t.Error("record should carry every player's transcript")
	}
}

func TestCancelledContextStopsSession(t *testing.T) {
	var accuse string
	g, bots := table(t, DefaultSettings(), 4, cooperative(&accuse))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for name, b := range bots {
		if len(b.inputs) != 0 {
			t.Errorf("%s generated after cancellation", name)
		}
	}
}
