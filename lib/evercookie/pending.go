package evercookie

import (
	"context"
	"errors"
	"sync"

	"github.com/ValentinKolb/evercookie/lib/backend"
)

// Pending tracks the detached writes started by Set (async store and side channels).
// The zero value is not usable; Set always returns a non-nil Pending on success.
type Pending struct {
	skipped bool
	done    chan struct{}

	mu       sync.Mutex
	results  []backend.Result
	asyncErr error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func skippedPending() *Pending {
	p := &Pending{skipped: true, done: make(chan struct{})}
	close(p.done)
	return p
}

// Skipped reports whether Set wrote nothing because the key already existed.
func (p *Pending) Skipped() bool { return p.skipped }

// Done is closed when all detached writes have finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until all detached writes have finished or ctx is done. It returns the error of the
// async store write, side channel failures are only reported through Results.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.asyncErr
}

// Results returns the outcome of every detached write finished so far.
func (p *Pending) Results() []backend.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]backend.Result(nil), p.results...)
}

func (p *Pending) record(kind backend.Kind, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.results = append(p.results, backend.Result{Kind: kind, Err: err})
	if kind == backend.AsyncStore && err != nil {
		p.asyncErr = errors.Join(p.asyncErr, err)
	}
}
