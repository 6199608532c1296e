package audit

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// MultiSink appends to every sink in order. It fails if any sink fails,
// after still attempting the rest.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, e Entry) error {
	var errs *multierror.Error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
