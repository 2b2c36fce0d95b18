package evercookie

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/ValentinKolb/evercookie/lib/db/engines/maple"
	"github.com/ValentinKolb/evercookie/lib/lockmgr"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("evercookie")

// Options assembles a client from its backends.
type Options struct {
	Cookie  backend.IBackend // required
	Durable backend.IBackend // required
	Session backend.IBackend // required
	Async   backend.IBackend // optional, nil disables the async store

	// SideChannels are written after the other backends and never read.
	SideChannels []backend.IBackend

	// Locks guards Set against concurrent calls for the same key (default: in memory).
	Locks lockmgr.ILockManager
	// Metrics receives the client's counters (default: a new set).
	Metrics *metrics.Set
	// Closers are closed by Close after all pending writes have finished.
	Closers []io.Closer
}

// Client stores one value per key redundantly in all its backends and reads it back from the
// first backend that still holds it.
type Client struct {
	cookie  backend.IBackend
	durable backend.IBackend
	session backend.IBackend
	async   backend.IBackend
	side    []backend.IBackend

	locks   lockmgr.ILockManager
	metrics *clientMetrics
	closers []io.Closer

	// mu is held (read) by Set until its pending writes are registered
	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

// NewClient creates a client from the given backends.
func NewClient(opts Options) (*Client, error) {
	if opts.Cookie == nil || opts.Durable == nil || opts.Session == nil {
		return nil, fmt.Errorf("cookie, durable and session backends are required")
	}

	locks := opts.Locks
	if locks == nil {
		locks = lockmgr.NewLockManager(maple.NewMapleDB(nil))
	}

	return &Client{
		cookie:  opts.Cookie,
		durable: opts.Durable,
		session: opts.Session,
		async:   opts.Async,
		side:    opts.SideChannels,
		locks:   locks,
		metrics: newClientMetrics(opts.Metrics),
		closers: opts.Closers,
	}, nil
}

// --------------------------------------------------------------------------
// Write path
// --------------------------------------------------------------------------

// Set stores value under key in every backend, unless the key already exists in the cookie,
// durable or session backend, in which case nothing is written and the returned Pending reports
// Skipped.
//
// The cookie, durable and session writes are done before Set returns; the first failing one
// aborts the write and its error is returned. The async store and side channel writes run in
// the background and are tracked by the returned Pending.
func (c *Client) Set(key, value string) (*Pending, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ok, owner, err := c.locks.AcquireLock(key)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire set guard for %q: %w", key, err)
	}
	if !ok {
		log.Infof("set for %q already in flight, skipping", key)
		c.metrics.skipped()
		return skippedPending(), nil
	}
	release := func() {
		if _, err := c.locks.ReleaseLock(key, owner); err != nil {
			log.Errorf("failed to release set guard for %q: %v", key, err)
		}
	}

	if c.probe(key) {
		release()
		log.Infof("value for %q already exists, not overwriting", key)
		c.metrics.skipped()
		return skippedPending(), nil
	}

	ctx := context.Background()
	for _, b := range c.probed() {
		err := b.Write(ctx, key, value)
		c.metrics.write(b.Kind(), err)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to write %q to %s: %w", key, b.Kind(), err)
		}
	}

	detached := c.side
	if c.async != nil {
		detached = append([]backend.IBackend{c.async}, c.side...)
	}

	p := newPending()
	var wg sync.WaitGroup
	for _, b := range detached {
		wg.Add(1)
		go func(b backend.IBackend) {
			defer wg.Done()
			err := b.Write(ctx, key, value)
			c.report(b.Kind(), key, err)
			p.record(b.Kind(), err)
		}(b)
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		wg.Wait()
		release()
		close(p.done)
	}()

	log.Debugf("stored %q, %d writes pending", key, len(detached))
	return p, nil
}

// report logs and counts the outcome of a detached write
func (c *Client) report(kind backend.Kind, key string, err error) {
	switch {
	case errors.Is(err, backend.ErrAdapterUnavailable):
		log.Debugf("%s unavailable, skipped %q: %v", kind, key, err)
		return
	case err != nil && kind.SideChannel():
		log.Warningf("%s write for %q failed: %v", kind, key, err)
	case err != nil:
		log.Errorf("%s write for %q failed: %v", kind, key, err)
	}
	c.metrics.write(kind, err)
}

// probe reports whether key exists in the cookie, durable or session backend. The async store
// is not consulted. Read errors count as absent.
func (c *Client) probe(key string) bool {
	ctx := context.Background()
	for _, b := range c.probed() {
		_, found, err := b.Read(ctx, key)
		if err != nil {
			log.Debugf("probe of %s for %q failed: %v", b.Kind(), key, err)
			continue
		}
		if found {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Read path
// --------------------------------------------------------------------------

// Get returns the value of key from the first backend holding it, in the order cookie, durable,
// session, async store. Backend errors count as absent.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	for _, r := range c.Inspect(ctx, key) {
		if r.Err == nil && r.Found {
			return r.Value, true
		}
	}
	return "", false
}

// Inspect reads key from every readable backend and returns the individual results in
// reconciliation order.
func (c *Client) Inspect(ctx context.Context, key string) []backend.Result {
	results := make([]backend.Result, 0, len(backend.ReadOrder))
	for _, b := range c.readable() {
		value, found, err := b.Read(ctx, key)
		if err != nil {
			log.Warningf("reading %q from %s failed, treating as absent: %v", key, b.Kind(), err)
		}
		c.metrics.read(b.Kind(), found, err)
		results = append(results, backend.Result{Kind: b.Kind(), Value: value, Found: found && err == nil, Err: err})
	}
	return results
}

// probed returns the backends written synchronously and consulted by the probe
func (c *Client) probed() []backend.IBackend {
	return []backend.IBackend{c.cookie, c.durable, c.session}
}

func (c *Client) readable() []backend.IBackend {
	if c.async == nil {
		return c.probed()
	}
	return append(c.probed(), c.async)
}

// --------------------------------------------------------------------------
// Maintenance
// --------------------------------------------------------------------------

// Backend returns the backend of the given kind.
func (c *Client) Backend(kind backend.Kind) (backend.IBackend, bool) {
	for _, b := range append(c.readable(), c.side...) {
		if b.Kind() == kind {
			return b, true
		}
	}
	return nil, false
}

// Repair rebuilds the async store container if its schema drifted. It is a no-op without an
// async store.
func (c *Client) Repair(ctx context.Context) error {
	r, ok := c.async.(interface {
		Repair(ctx context.Context) error
	})
	if !ok {
		return nil
	}
	return r.Repair(ctx)
}

// WritePrometheus writes the client's counters in Prometheus text format.
func (c *Client) WritePrometheus(w io.Writer) {
	c.metrics.set.WritePrometheus(w)
}

// Close waits for all pending writes and closes the underlying stores.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.pending.Wait()

	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
