// Package store is the transactional case store. Validation and the
// assignment commit happen inside a single named procedure.
package store

import (
	"context"
)

// ReassignRequest is the input of sp_Caso_ReasignarFiscalValidado.
type ReassignRequest struct {
	CaseID          int64
	NewFiscalID     int64
	RequesterUserID int64
}

// Outcome is the store's verdict. Mensaje may be empty.
type Outcome struct {
	Exito            bool
	Mensaje          string
	PreviousFiscalID *int64
}

// CaseStore validates and commits, or refuses, a fiscal assignment.
type CaseStore interface {
	ReassignValidated(ctx context.Context, req ReassignRequest) (Outcome, error)
}
