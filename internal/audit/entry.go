// Package audit keeps the append-only record of rejected fiscal assignments.
// It never shares a transaction with the case store.
package audit

import (
	"encoding/json"
	"fmt"
)

// Operation names the service operation that produced an entry.
type Operation string

const (
	OpAssign   Operation = "assign"
	OpReassign Operation = "reassign"
)

// Entry is one rejected attempt. Timestamp is set by Log.Record.
type Entry struct {
	Timestamp        string    `json:"timestamp"`
	AttemptID        string    `json:"attemptId"`
	Operation        Operation `json:"operation"`
	CaseID           int64     `json:"caseId"`
	NewFiscalID      int64     `json:"newFiscalId"`
	RequesterUserID  int64     `json:"requesterUserId"`
	PreviousFiscalID *int64    `json:"previousFiscalId,omitempty"`
	Reason           string    `json:"reason"`
}

func (e Entry) validate() error {
	switch {
	case e.CaseID <= 0:
		return fmt.Errorf("caseId is required")
	case e.NewFiscalID <= 0:
		return fmt.Errorf("newFiscalId is required")
	case e.RequesterUserID <= 0:
		return fmt.Errorf("requesterUserId is required")
	case e.Reason == "":
		return fmt.Errorf("reason is required")
	}
	return nil
}

// MarshalLine returns the entry as a single JSON line terminated by '\n'.
func (e Entry) MarshalLine() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
