package store

import (
	"context"
	"time"
)

// WithTimeout bounds every ReassignValidated call on next by d. d <= 0 returns next unchanged.
func WithTimeout(next CaseStore, d time.Duration) CaseStore {
	if d <= 0 {
		return next
	}
	return timeoutStore{next: next, d: d}
}

type timeoutStore struct {
	next CaseStore
	d    time.Duration
}

func (s timeoutStore) ReassignValidated(ctx context.Context, req ReassignRequest) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.ReassignValidated(ctx, req)
}
