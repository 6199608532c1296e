package audit

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
)

// TableSink inserts entries into failed_reassignments in a database that is
// separate from the case store. Rows are never updated or deleted.
type TableSink struct {
	DB *sql.DB
}

func (s TableSink) Append(ctx context.Context, e Entry) error {
	var prev any
	if e.PreviousFiscalID != nil {
		prev = *e.PreviousFiscalID
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO failed_reassignments(attempt_id,ts,operation,case_id,new_fiscal_id,requester_user_id,previous_fiscal_id,reason) VALUES (?,?,?,?,?,?,?,?)`,
		e.AttemptID, e.Timestamp, string(e.Operation), e.CaseID, e.NewFiscalID, e.RequesterUserID, prev, e.Reason)
	if err != nil {
		return errors.Wrap(err, "insert failed reassignment")
	}
	return nil
}

// Entries returns the latest n rows, oldest first. n <= 0 returns all rows.
func (s TableSink) Entries(ctx context.Context, n int) ([]Entry, error) {
	limit := -1
	if n > 0 {
		limit = n
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT attempt_id,ts,operation,case_id,new_fiscal_id,requester_user_id,previous_fiscal_id,reason
FROM (SELECT * FROM failed_reassignments ORDER BY id DESC LIMIT ?) ORDER BY id`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		var op string
		var prev sql.NullInt64
		if err := rows.Scan(&e.AttemptID, &e.Timestamp, &op, &e.CaseID, &e.NewFiscalID, &e.RequesterUserID, &prev, &e.Reason); err != nil {
			return nil, err
		}
		e.Operation = Operation(op)
		if prev.Valid {
			v := prev.Int64
			e.PreviousFiscalID = &v
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
