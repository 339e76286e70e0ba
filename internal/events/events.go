// Package events publishes live session progress over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorenzotomasdiez/chameleon/internal/game"
)

// DefaultChannel is the channel prefix; the session id is appended.
const DefaultChannel = "chameleon"

// Event types.
const (
	TypePhase   = "phase"
	TypeTurn    = "turn"
	TypeOutcome = "outcome"
)

// Event is the JSON payload sent for every update. Secret fields (animal,
// chameleon) are only set on the outcome event.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Time      time.Time   `json:"time"`
	Phase     string      `json:"phase,omitempty"`
	Player    string      `json:"player,omitempty"`
	Index     int         `json:"index,omitempty"`
	Content   string      `json:"content,omitempty"`
	Animal    string      `json:"animal,omitempty"`
	Chameleon string      `json:"chameleon,omitempty"`
	Tally     game.Tally  `json:"tally,omitempty"`
	Winner    game.Winner `json:"winner,omitempty"`
}

// Encode marshals e for the wire.
func Encode(e Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("events: encoding %s event: %w", e.Type, err)
	}
	return string(data), nil
}

// Decode parses a payload produced by Encode.
func Decode(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("events: decoding payload: %w", err)
	}
	return e, nil
}

// Channel names the pub/sub channel for a session.
func Channel(prefix, sessionID string) string {
	if prefix == "" {
		prefix = DefaultChannel
	}
	return prefix + ":" + sessionID
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher sends session events. Publish failures are logged and dropped so
// a Redis outage never stops a game.
type Publisher struct {
	rdb    publisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher publishes on rdb under prefix:<session>.
func NewPublisher(rdb redis.Cmdable, prefix string, logger *slog.Logger) *Publisher {
	return newPublisher(rdb, prefix, logger)
}

func newPublisher(rdb publisher, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{rdb: rdb, prefix: prefix, logger: logger, now: time.Now}
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("events: parsing Redis URL: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("events: pinging Redis: %w", err)
	}
	return client, nil
}

func (p *Publisher) publish(ctx context.Context, e Event) {
	e.Time = p.now()
	payload, err := Encode(e)
	if err != nil {
		p.logger.Warn("event dropped", "type", e.Type, "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, Channel(p.prefix, e.SessionID), payload).Err(); err != nil {
		p.logger.Warn("event publish failed", "type", e.Type, "session", e.SessionID, "error", err)
	}
}

// PublishPhase announces a phase change.
func (p *Publisher) PublishPhase(ctx context.Context, sessionID string, phase game.Phase) {
	p.publish(ctx, Event{Type: TypePhase, SessionID: sessionID, Phase: phase.String()})
}

// PublishTurn announces one validated contribution.
func (p *Publisher) PublishTurn(ctx context.Context, sessionID string, turn game.Turn) {
	p.publish(ctx, Event{
		Type:      TypeTurn,
		SessionID: sessionID,
		Phase:     turn.Phase.String(),
		Player:    turn.Player,
		Index:     turn.Index,
		Content:   turn.Content,
	})
}

// PublishOutcome reveals the result of a finished session.
func (p *Publisher) PublishOutcome(ctx context.Context, rec *game.Record) {
	p.publish(ctx, Event{
		Type:      TypeOutcome,
		SessionID: rec.SessionID,
		Phase:     game.PhaseDone.String(),
		Animal:    rec.Animal,
		Chameleon: rec.Chameleon,
		Tally:     rec.Tally,
		Winner:    rec.Winner,
	})
}

// Archive implements game.Archiver by publishing the outcome.
func (p *Publisher) Archive(ctx context.Context, rec *game.Record) error {
	p.PublishOutcome(ctx, rec)
	return nil
}

// Watch subscribes to a session's channel and calls fn for each event until
// ctx ends or an outcome arrives.
func Watch(ctx context.Context, rdb *redis.Client, prefix, sessionID string, fn func(Event)) error {
	sub := rdb.Subscribe(ctx, Channel(prefix, sessionID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribing: %w", err)
	}
	return consume(ctx, sub.Channel(), fn)
}

func consume(ctx context.Context, ch <-chan *redis.Message, fn func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := Decode(msg.Payload)
			if err != nil {
				continue
			}
			fn(e)
			if e.Type == TypeOutcome {
				return nil
			}
		}
	}
}
