// Package submission hands session snapshots to whatever sits downstream of
// the clip tracker: a log, a database table, a pub/sub channel, an exported
// JSON blob.
package submission

import (
	"context"
	"errors"
	"fmt"

	"clip-tracker/internal/models"

	"golang.org/x/sync/errgroup"
)

var ErrNoClips = errors.New("no clips to submit")

// Receipt identifies what a sink did with a submission.
type Receipt struct {
	Sink      string `json:"sink"`
	Reference string `json:"reference,omitempty"`
}

// Sink accepts one submission.
type Sink interface {
	Name() string
	Submit(ctx context.Context, sub models.Submission) (Receipt, error)
}

// Multi fans a submission out to every sink concurrently. All sinks are
// tried; failures are joined into the returned error alongside the receipts
// of the sinks that succeeded, in sink order.
type Multi []Sink

func (m Multi) Submit(ctx context.Context, sub models.Submission) ([]Receipt, error) {
	if len(sub.Clips) == 0 {
		return nil, ErrNoClips
	}

	results := make([]Receipt, len(m))
	errs := make([]error, len(m))

	// one failing sink must not cancel the others, so no WithContext here
	var g errgroup.Group
	for i, sink := range m {
		g.Go(func() error {
			r, err := sink.Submit(ctx, sub)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	g.Wait()

	receipts := make([]Receipt, 0, len(m))
	for i := range m {
		if errs[i] == nil {
			receipts = append(receipts, results[i])
		}
	}
	return receipts, errors.Join(errs...)
}
