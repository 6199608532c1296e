// Package reassign orchestrates fiscal assignment attempts: one call to the
// transactional case store, and a durable audit entry for every rejection.
package reassign

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"mpcasos/internal/apperr"
	"mpcasos/internal/audit"
	"mpcasos/internal/logging"
	"mpcasos/internal/metrics"
	"mpcasos/internal/store"
)

const (
	OutcomeSuccess = "success"

	DefaultAssignMessage   = "Fiscal asignado exitosamente"
	DefaultReassignMessage = "Fiscal reasignado exitosamente"
	DefaultAssignFailure   = "No se pudo asignar el fiscal"
	DefaultReassignFailure = "No se pudo reasignar el fiscal"
)

// Recorder persists rejected attempts. *audit.Log implements it.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Result is returned when the store accepted the assignment.
type Result struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
}

type operation struct {
	name           audit.Operation
	successMessage string
	failureReason  string
}

var (
	opAssign   = operation{name: audit.OpAssign, successMessage: DefaultAssignMessage, failureReason: DefaultAssignFailure}
	opReassign = operation{name: audit.OpReassign, successMessage: DefaultReassignMessage, failureReason: DefaultReassignFailure}
)

type Service struct {
	store   store.CaseStore
	audit   Recorder
	logger  *logrus.Entry
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *logrus.Entry) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(cs store.CaseStore, rec Recorder, opts ...Option) *Service {
	s := &Service{store: cs, audit: rec}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return s
}

// Assign sets the fiscal of a case. It runs the same validated store
// operation as Reassign.
func (s *Service) Assign(ctx context.Context, caseID, fiscalID, requesterID int64) (Result, error) {
	return s.attempt(ctx, opAssign, store.ReassignRequest{CaseID: caseID, NewFiscalID: fiscalID, RequesterUserID: requesterID})
}

// Reassign moves a case to a new fiscal.
func (s *Service) Reassign(ctx context.Context, caseID, newFiscalID, requesterID int64) (Result, error) {
	return s.attempt(ctx, opReassign, store.ReassignRequest{CaseID: caseID, NewFiscalID: newFiscalID, RequesterUserID: requesterID})
}

func (s *Service) log(ctx context.Context) *logrus.Entry {
	if l := logging.FromContext(ctx); l != nil {
		return l.WithFields(s.logger.Data)
	}
	return s.logger
}

func (s *Service) attempt(ctx context.Context, op operation, req store.ReassignRequest) (Result, error) {
	out, err := s.store.ReassignValidated(ctx, req)
	if err != nil {
		if violation, ok := apperr.As(err); ok && violation.Kind == apperr.KindBusinessRule {
			reason := violation.Message
			if reason == "" {
				reason = op.failureReason
			}
			return Result{}, s.reject(ctx, op, req, nil, reason, err)
		}
		s.metrics.ObserveAttempt(string(op.name), metrics.ResultInfrastructure)
		s.log(ctx).WithFields(attemptFields(op, req)).WithError(err).Error("fiscal.assignment.store_failed")
		if apperr.Is(err, apperr.KindInfrastructure) {
			return Result{}, err
		}
		return Result{}, apperr.Infrastructure("error al acceder al almacén de casos", err)
	}

	if out.Exito {
		msg := out.Mensaje
		if msg == "" {
			msg = op.successMessage
		}
		s.metrics.ObserveAttempt(string(op.name), metrics.ResultSuccess)
		s.log(ctx).WithFields(attemptFields(op, req)).Info("fiscal.assignment.committed")
		return Result{Outcome: OutcomeSuccess, Message: msg}, nil
	}

	reason := out.Mensaje
	if reason == "" {
		reason = op.failureReason
	}
	return Result{}, s.reject(ctx, op, req, out.PreviousFiscalID, reason, apperr.BusinessRule(reason))
}

// reject records the failed attempt before handing violation back to the caller.
func (s *Service) reject(ctx context.Context, op operation, req store.ReassignRequest, prev *int64, reason string, violation error) error {
	fields := attemptFields(op, req)
	fields["reason"] = reason
	if prev != nil {
		fields["previous_fiscal_id"] = *prev
	}

	// The store already refused; a caller that went away must not lose the entry.
	err := s.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		Operation:        op.name,
		CaseID:           req.CaseID,
		NewFiscalID:      req.NewFiscalID,
		RequesterUserID:  req.RequesterUserID,
		PreviousFiscalID: prev,
		Reason:           reason,
	})
	if err != nil {
		s.metrics.ObserveAttempt(string(op.name), metrics.ResultAuditFailure)
		s.log(ctx).WithFields(fields).WithError(err).Error("fiscal.assignment.audit_write_failed")
		return apperr.AuditWriteFailure("no se pudo registrar el intento rechazado", multierror.Append(violation, err))
	}
	s.metrics.ObserveAttempt(string(op.name), metrics.ResultRejected)
	s.log(ctx).WithFields(fields).Warn("fiscal.assignment.rejected")
	return violation
}

func attemptFields(op operation, req store.ReassignRequest) logrus.Fields {
	return logrus.Fields{
		"operation":         string(op.name),
		"case_id":           req.CaseID,
		"new_fiscal_id":     req.NewFiscalID,
		"requester_user_id": req.RequesterUserID,
	}
}
