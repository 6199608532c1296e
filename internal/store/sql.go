package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"mpcasos/internal/apperr"
)

// ruleViolationPrefix marks RAISE messages coming from business-rule triggers.
const ruleViolationPrefix = "REGLA_NEGOCIO:"

// sqliteCodeSuffix matches the " (1811)" result code the driver appends.
var sqliteCodeSuffix = regexp.MustCompile(`\s*\(\d+\)$`)

// Params are the named inputs of a procedure.
type Params map[string]any

// Output are the named output parameters a procedure sets.
type Output map[string]any

// Procedure runs inside the transaction opened by ExecuteWithOutput.
type Procedure func(ctx context.Context, tx *sql.Tx, now time.Time, in Params, out Output) error

// SQL executes named procedures against SQLite.
type SQL struct {
	DB  *sql.DB
	Now func() time.Time

	mu    sync.RWMutex
	procs map[string]Procedure
}

// NewSQL returns a store with the built-in procedures registered.
func NewSQL(db *sql.DB) *SQL {
	s := &SQL{DB: db, Now: time.Now, procs: map[string]Procedure{}}
	s.Register(ProcReasignarFiscalValidado, reasignarFiscalValidado)
	return s
}

func (s *SQL) Register(name string, p Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[name] = p
}

func (s *SQL) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ExecuteWithOutput runs a procedure in its own transaction. It commits only
// when the procedure leaves Exito unset or true.
func (s *SQL) ExecuteWithOutput(ctx context.Context, name string, in Params) (Output, error) {
	s.mu.RLock()
	proc, ok := s.procs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.Infrastructure("procedimiento desconocido", fmt.Errorf("procedure %s not registered", name))
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(name, err)
	}
	defer tx.Rollback()

	out := Output{}
	if err := proc(ctx, tx, s.now().UTC(), in, out); err != nil {
		return nil, classify(name, err)
	}
	if exito, ok := out["Exito"].(bool); ok && !exito {
		return out, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(name, err)
	}
	return out, nil
}

// ReassignValidated implements CaseStore.
func (s *SQL) ReassignValidated(ctx context.Context, req ReassignRequest) (Outcome, error) {
	out, err := s.ExecuteWithOutput(ctx, ProcReasignarFiscalValidado, Params{
		"IdCaso":               req.CaseID,
		"IdNuevoFiscal":        req.NewFiscalID,
		"IdUsuarioSolicitante": req.RequesterUserID,
	})
	if err != nil {
		return Outcome{}, err
	}
	res := Outcome{}
	res.Exito, _ = out["Exito"].(bool)
	res.Mensaje, _ = out["Mensaje"].(string)
	if prev, ok := out["IdFiscalAnterior"].(int64); ok {
		res.PreviousFiscalID = &prev
	}
	return res, nil
}

func classify(proc string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	msg := err.Error()
	if i := strings.Index(msg, ruleViolationPrefix); i >= 0 {
		reason := sqliteCodeSuffix.ReplaceAllString(msg[i+len(ruleViolationPrefix):], "")
		return apperr.BusinessRule(strings.TrimSpace(reason))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Infrastructure("tiempo de espera agotado en la base de datos", errors.Wrap(err, proc))
	}
	return apperr.Infrastructure("error de base de datos", errors.Wrap(err, proc))
}

// Int64 reads a required positive integer parameter.
func (p Params) Int64(key string) (int64, error) {
	switch v := p[key].(type) {
	case int64:
		if v > 0 {
			return v, nil
		}
	case int:
		if v > 0 {
			return int64(v), nil
		}
	}
	return 0, apperr.Validation(fmt.Sprintf("parámetro %s inválido", key))
}
