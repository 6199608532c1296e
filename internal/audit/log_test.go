package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mpcasos/internal/apperr"
)

type memSink struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (s *memSink) Append(_ context.Context, e Entry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

type recordingObserver struct {
	calls int
	last  error
}

func (o *recordingObserver) ObserveAuditAppend(_ time.Duration, err error) {
	o.calls++
	o.last = err
}

func TestRecordStampsTimestampAndAttemptID(t *testing.T) {
	sink := &memSink{}
	l := NewLog(sink)
	l.Now = func() time.Time { return time.Date(2024, 5, 2, 10, 30, 0, 0, time.FixedZone("GT", -6*3600)) }
	l.NewID = func() string { return "attempt-1" }

	err := l.Record(context.Background(), Entry{
		Operation:       OpReassign,
		CaseID:          10,
		NewFiscalID:     99,
		RequesterUserID: 1,
		Reason:          "El fiscal no está activo",
		Timestamp:       "ignored",
	})
	require.NoError(t, err)
	require.Len(t, sink.entries, 1)
	got := sink.entries[0]
	require.Equal(t, "2024-05-02T16:30:00Z", got.Timestamp)
	require.Equal(t, "attempt-1", got.AttemptID)
	require.Equal(t, int64(10), got.CaseID)
}

func TestRecordKeepsCallerAttemptID(t *testing.T) {
	sink := &memSink{}
	l := NewLog(sink)
	require.NoError(t, l.Record(context.Background(), Entry{AttemptID: "given", CaseID: 1, NewFiscalID: 2, RequesterUserID: 3, Reason: "x"}))
	require.Equal(t, "given", sink.entries[0].AttemptID)
}

func TestRecordRejectsPartialEntries(t *testing.T) {
	sink := &memSink{}
	l := NewLog(sink)
	partial := []Entry{
		{NewFiscalID: 2, RequesterUserID: 3, Reason: "r"},
		{CaseID: 1, RequesterUserID: 3, Reason: "r"},
		{CaseID: 1, NewFiscalID: 2, Reason: "r"},
		{CaseID: 1, NewFiscalID: 2, RequesterUserID: 3},
	}
	for _, e := range partial {
		err := l.Record(context.Background(), e)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
	require.Empty(t, sink.entries)
}

func TestRecordReturnsSinkError(t *testing.T) {
	diskFull := errors.New("no space left on device")
	obs := &recordingObserver{}
	l := NewLog(&memSink{err: diskFull})
	l.Observer = obs
	err := l.Record(context.Background(), Entry{CaseID: 1, NewFiscalID: 2, RequesterUserID: 3, Reason: "r"})
	require.ErrorIs(t, err, diskFull)
	require.Equal(t, 1, obs.calls)
	require.ErrorIs(t, obs.last, diskFull)
}

func TestRecordWithoutSink(t *testing.T) {
	l := &Log{}
	err := l.Record(context.Background(), Entry{CaseID: 1, NewFiscalID: 2, RequesterUserID: 3, Reason: "r"})
	require.Error(t, err)
}

func TestMultiSinkAppendsToAllAndCombinesErrors(t *testing.T) {
	ok := &memSink{}
	bad1 := &memSink{err: errors.New("first")}
	bad2 := &memSink{err: errors.New("second")}
	m := MultiSink{bad1, ok, bad2}
	err := m.Append(context.Background(), Entry{CaseID: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "first")
	require.Contains(t, err.Error(), "second")
	require.Len(t, ok.entries, 1)

	require.NoError(t, MultiSink{ok}.Append(context.Background(), Entry{CaseID: 2}))
}
