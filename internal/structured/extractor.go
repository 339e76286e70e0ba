package structured

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/lorenzotomasdiez/chameleon/internal/controller"
	"github.com/lorenzotomasdiez/chameleon/internal/conversation"
)

// DefaultRetries is the number of re-prompts after the first reply.
const DefaultRetries = 3

// Respondent is a participant the extractor can talk to. Exchange appends
// content to the respondent's history, generates a reply and appends that
// too.
type Respondent interface {
	Name() string
	Policy() controller.Policy
	Exchange(ctx context.Context, role conversation.Role, content string) (string, error)
}

// Extractor obtains schema-conforming output from a Respondent.
type Extractor struct {
	retries int

	calls    metric.Int64Counter
	retried  metric.Int64Counter
	failures metric.Int64Counter
}

// NewExtractor returns an extractor allowing retries re-prompts after the
// initial reply. Negative values fall back to DefaultRetries.
func NewExtractor(retries int) *Extractor {
	if retries < 0 {
		retries = DefaultRetries
	}
	meter := otel.Meter("github.com/lorenzotomasdiez/chameleon/internal/structured")
	return &Extractor{
		retries:  retries,
		calls:    counter(meter, "chameleon.generation.calls", "Replies requested from player controllers"),
		retried:  counter(meter, "chameleon.format.retries", "Format directives sent after an invalid reply"),
		failures: counter(meter, "chameleon.format.failures", "Turns that exhausted the retry budget"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Retries returns the configured retry budget.
func (x *Extractor) Retries() int { return x.retries }

// Extract sends prompt to r and returns a Result satisfying schema.
//
// Direct respondents (humans) get one exchange and their reply is mapped onto
// the single schema field. All others are validated and, while invalid and
// within budget, re-prompted with the schema directive. Nothing is removed
// from the respondent's history on failure.
func (x *Extractor) Extract(ctx context.Context, r Respondent, prompt string, schema Schema) (Result, error) {
	if r.Policy().Direct {
		return x.direct(ctx, r, prompt, schema)
	}
	return x.validated(ctx, r, prompt, schema)
}

func (x *Extractor) direct(ctx context.Context, r Respondent, prompt string, schema Schema) (Result, error) {
	if err := schema.CheckDirect(); err != nil {
		return Result{}, &ConfigError{Player: r.Name(), Err: err}
	}
	raw, err := x.exchange(ctx, r, conversation.RoleInstruction, prompt)
	if err != nil {
		return Result{}, err
	}
	return schema.Coerce(raw)
}

// retryState is the explicit bookkeeping for one validated extraction.
type retryState struct {
	budget   int
	attempts []Attempt
	lastRaw  string
	lastErr  error
}

func (s *retryState) record(raw string, err error) {
	a := Attempt{Number: len(s.attempts) + 1, Raw: raw}
	if err != nil {
		a.Err = err.Error()
	}
	s.attempts = append(s.attempts, a)
	s.lastRaw, s.lastErr = raw, err
}

func (s *retryState) retriesUsed() int { return len(s.attempts) - 1 }

func (s *retryState) exhausted() bool { return s.retriesUsed() >= s.budget }

func (s *retryState) directive(schema Schema) string {
	d := schema.Directive()
	if s.retriesUsed() > 0 {
		d += fmt.Sprintf("\nError formatting response: %v\n\nPlease try again.", s.lastErr)
	}
	return d
}

func (x *Extractor) validated(ctx context.Context, r Respondent, prompt string, schema Schema) (Result, error) {
	state := &retryState{budget: x.retries}

	raw, err := x.exchange(ctx, r, conversation.RoleInstruction, prompt)
	if err != nil {
		return Result{}, err
	}
	res, verr := schema.Validate(raw)
	state.record(raw, verr)

	for verr != nil && !state.exhausted() {
		x.retried.Add(ctx, 1, metric.WithAttributes(attribute.String("player", r.Name())))
		raw, err = x.exchange(ctx, r, conversation.RoleFormat, state.directive(schema))
		if err != nil {
			return Result{}, err
		}
		res, verr = schema.Validate(raw)
		state.record(raw, verr)
	}

	if verr != nil {
		x.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("player", r.Name())))
		return Result{}, &FormatError{
			Player:   r.Name(),
			Raw:      state.lastRaw,
			Err:      state.lastErr,
			Attempts: state.attempts,
		}
	}
	return res, nil
}

func (x *Extractor) exchange(ctx context.Context, r Respondent, role conversation.Role, content string) (string, error) {
	x.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("player", r.Name())))
	raw, err := r.Exchange(ctx, role, content)
	if err != nil {
		return "", &GenerationError{Player: r.Name(), Err: err}
	}
	return raw, nil
}
