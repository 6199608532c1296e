package audit

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"mpcasos/internal/apperr"
)

// Sink durably appends entries. Append returns only after the entry is
// persisted, and must not interleave concurrent entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Observer is notified of each append and its latency.
type Observer interface {
	ObserveAuditAppend(d time.Duration, err error)
}

// Log stamps and forwards failed attempts to a Sink.
type Log struct {
	Sink     Sink
	Now      func() time.Time
	NewID    func() string
	Observer Observer
}

// NewLog returns a Log writing to sink.
func NewLog(sink Sink) *Log {
	return &Log{Sink: sink, Now: time.Now, NewID: uuid.NewString}
}

func (l *Log) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Record validates e, sets its timestamp, and appends it synchronously.
// The append error is returned to the caller.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return apperr.Validation("entrada de auditoría incompleta: " + err.Error())
	}
	if l.Sink == nil {
		return errors.New("audit sink not configured")
	}
	e.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	if e.AttemptID == "" {
		if l.NewID != nil {
			e.AttemptID = l.NewID()
		} else {
			e.AttemptID = uuid.NewString()
		}
	}
	start := time.Now()
	err := l.Sink.Append(ctx, e)
	if l.Observer != nil {
		l.Observer.ObserveAuditAppend(time.Since(start), err)
	}
	if err != nil {
		return errors.Wrap(err, "append audit entry")
	}
	return nil
}
