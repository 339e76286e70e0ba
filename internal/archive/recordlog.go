package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/lorenzotomasdiez/chameleon/internal/game"
)

// RecordLog appends one JSON document per line to a rotated file. It
// implements player.Recorder and game.Archiver.
type RecordLog struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewRecordLog writes to path, rotating at 10 MB.
func NewRecordLog(path string) *RecordLog {
	return &RecordLog{out: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}}
}

// Record writes rec as a single JSON line.
func (l *RecordLog) Record(rec any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: encoding record: %w", err)
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(b); err != nil {
		return fmt.Errorf("archive: writing record: %w", err)
	}
	return nil
}

func (l *RecordLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

type sessionLine struct {
	Type string `json:"type"`
	*game.Record
}

// Archive implements game.Archiver by appending the whole session record.
func (l *RecordLog) Archive(_ context.Context, rec *game.Record) error {
	return l.Record(sessionLine{Type: "session", Record: rec})
}
