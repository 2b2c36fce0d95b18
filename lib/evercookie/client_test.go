package evercookie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/ValentinKolb/evercookie/lib/common"
	"github.com/ValentinKolb/evercookie/lib/cookiejar"
	"github.com/ValentinKolb/evercookie/lib/objectstore"
	"github.com/ValentinKolb/evercookie/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) common.Config {
	cfg := common.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EnableWebRTC = false
	cfg.EnableCanvas = false
	return cfg
}

func openClient(t *testing.T, cfg common.Config) *Client {
	c, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func mustSet(t *testing.T, c *Client, key, value string) *Pending {
	p, err := c.Set(key, value)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
	return p
}

func mustBackend(t *testing.T, c *Client, kind backend.Kind) backend.IBackend {
	b, ok := c.Backend(kind)
	require.True(t, ok, "backend %s", kind)
	return b
}

func TestSetAndGet(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()

	p := mustSet(t, c, "id", "abc123")
	assert.False(t, p.Skipped())

	value, found := c.Get(ctx, "id")
	assert.True(t, found)
	assert.Equal(t, "abc123", value)

	// every readable backend holds the value
	results := c.Inspect(ctx, "id")
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, backend.ReadOrder[i], r.Kind)
		assert.NoError(t, r.Err)
		assert.True(t, r.Found, r.Kind.String())
		assert.Equal(t, "abc123", r.Value, r.Kind.String())
	}
}

func TestGetAbsent(t *testing.T) {
	c := openClient(t, testConfig(t))
	_, found := c.Get(context.Background(), "id")
	assert.False(t, found)
}

func TestIdempotence(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()

	mustSet(t, c, "id", "abc123")
	p := mustSet(t, c, "id", "zzz999")
	assert.True(t, p.Skipped())

	value, found := c.Get(ctx, "id")
	assert.True(t, found)
	assert.Equal(t, "abc123", value)
	for _, r := range c.Inspect(ctx, "id") {
		assert.Equal(t, "abc123", r.Value, r.Kind.String())
	}
}

func TestImmediateSecondSet(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()

	p1, err := c.Set("id", "abc123")
	require.NoError(t, err)
	p2, err := c.Set("id", "zzz999")
	require.NoError(t, err)
	assert.True(t, p2.Skipped())
	require.NoError(t, p1.Wait(ctx))

	value, _ := c.Get(ctx, "id")
	assert.Equal(t, "abc123", value)
}

func TestConcurrentSet(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	pending := make([]*Pending, 8)
	for i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.Set("id", fmt.Sprintf("value-%d", i))
			if err == nil {
				pending[i] = p
			}
		}(i)
	}
	wg.Wait()

	written := 0
	for _, p := range pending {
		require.NotNil(t, p)
		require.NoError(t, p.Wait(ctx))
		if !p.Skipped() {
			written++
		}
	}
	assert.Equal(t, 1, written)

	// all backends agree
	results := c.Inspect(ctx, "id")
	for _, r := range results {
		assert.Equal(t, results[0].Value, r.Value, r.Kind.String())
	}
}

func TestRedundancy(t *testing.T) {
	// every strict subset of the readable backends
	for mask := 0; mask < 1<<len(backend.ReadOrder)-1; mask++ {
		var cleared []backend.Kind
		for i, k := range backend.ReadOrder {
			if mask&(1<<i) != 0 {
				cleared = append(cleared, k)
			}
		}

		t.Run(fmt.Sprint(cleared), func(t *testing.T) {
			c := openClient(t, testConfig(t))
			ctx := context.Background()
			mustSet(t, c, "id", "abc123")

			for _, k := range cleared {
				require.NoError(t, mustBackend(t, c, k).Clear(ctx))
			}

			value, found := c.Get(ctx, "id")
			assert.True(t, found)
			assert.Equal(t, "abc123", value)
		})
	}
}

func TestAllCleared(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()
	mustSet(t, c, "id", "abc123")

	for _, k := range backend.ReadOrder {
		require.NoError(t, mustBackend(t, c, k).Clear(ctx))
	}
	_, found := c.Get(ctx, "id")
	assert.False(t, found)
}

func TestClearedCookieAndSession(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()
	mustSet(t, c, "id", "abc123")

	require.NoError(t, mustBackend(t, c, backend.Cookie).Clear(ctx))
	require.NoError(t, mustBackend(t, c, backend.SessionStore).Clear(ctx))

	value, found := c.Get(ctx, "id")
	assert.True(t, found)
	assert.Equal(t, "abc123", value)
}

func TestCookieOnlyWithNonRootPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.CookiePath = "/app"
	c := openClient(t, cfg)
	ctx := context.Background()
	mustSet(t, c, "id", "abc123")

	for _, k := range []backend.Kind{backend.DurableStore, backend.SessionStore, backend.AsyncStore} {
		require.NoError(t, mustBackend(t, c, k).Clear(ctx))
	}

	value, found := c.Get(ctx, "id")
	assert.True(t, found)
	assert.Equal(t, "abc123", value)

	// the probe sees the cookie too
	p, err := c.Set("id", "other")
	require.NoError(t, err)
	assert.True(t, p.Skipped())
}

func TestReconciliationOrder(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()

	// write conflicting values directly, lowest priority first
	values := map[backend.Kind]string{
		backend.AsyncStore:   "from-async",
		backend.SessionStore: "from-session",
		backend.DurableStore: "from-durable",
		backend.Cookie:       "from-cookie",
	}
	for i := len(backend.ReadOrder) - 1; i >= 0; i-- {
		k := backend.ReadOrder[i]
		require.NoError(t, mustBackend(t, c, k).Write(ctx, "id", values[k]))

		value, found := c.Get(ctx, "id")
		assert.True(t, found)
		assert.Equal(t, values[k], value, "after writing %s", k)
	}

	// remove from the top: the next backend in order wins
	for i, k := range backend.ReadOrder[:len(backend.ReadOrder)-1] {
		require.NoError(t, mustBackend(t, c, k).Clear(ctx))
		value, _ := c.Get(ctx, "id")
		assert.Equal(t, values[backend.ReadOrder[i+1]], value)
	}
}

func TestSchemaRecovery(t *testing.T) {
	cfg := testConfig(t)

	// container at the expected version but without its object store
	db, err := objectstore.Open(context.Background(), cfg.DataDir, cfg.ContainerName, cfg.ContainerVersion, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := openClient(t, cfg)
	ctx := context.Background()
	mustSet(t, c, "id", "abc123")

	value, found, err := mustBackend(t, c, backend.AsyncStore).Read(ctx, "id")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc123", value)

	var buf bytes.Buffer
	c.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), "evercookie_schema_recoveries_total 1")
}

func TestAsyncFailureIsContained(t *testing.T) {
	cfg := testConfig(t)

	// a newer container cannot be opened at the configured version
	db, err := objectstore.Open(context.Background(), cfg.DataDir, cfg.ContainerName, cfg.ContainerVersion+1, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := openClient(t, cfg)
	ctx := context.Background()

	p, err := c.Set("id", "abc123")
	require.NoError(t, err, "async failures never reach Set")
	assert.ErrorIs(t, p.Wait(ctx), objectstore.ErrVersion)

	value, found := c.Get(ctx, "id")
	assert.True(t, found)
	assert.Equal(t, "abc123", value)

	results := c.Inspect(ctx, "id")
	require.Len(t, results, 4)
	assert.Error(t, results[3].Err)
	assert.False(t, results[3].Found)
}

func TestNoSideChannelLeakage(t *testing.T) {
	c := openClient(t, testConfig(t))
	ctx := context.Background()

	durable := mustBackend(t, c, backend.DurableStore)
	require.NoError(t, durable.Write(ctx, backend.SideChannelKey(backend.SideChannelWebRTC, "id"), "v=0"))
	require.NoError(t, durable.Write(ctx, backend.SideChannelKey(backend.SideChannelCanvas, "id"), "data:image/png;base64,"))

	_, found := c.Get(ctx, "id")
	assert.False(t, found)

	// the derived keys do not block a set of the primary key either
	p := mustSet(t, c, "id", "abc123")
	assert.False(t, p.Skipped())
}

// --------------------------------------------------------------------------
// Injected backends
// --------------------------------------------------------------------------

type fakeCapturer struct {
	kind backend.Kind
	err  error
}

func (f *fakeCapturer) Kind() backend.Kind { return f.kind }

func (f *fakeCapturer) Capture(_ context.Context, key, value string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.kind.String() + ":" + key, nil
}

type failingBackend struct {
	backend.IBackend
	err error
}

func (f *failingBackend) Write(context.Context, string, string) error { return f.err }

func (f *failingBackend) Read(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func memoryOptions() Options {
	jar, _ := cookiejar.Open("", nil)
	return Options{
		Cookie:  backend.NewCookie(jar, "/", 60),
		Durable: backend.NewDurable(lstore.NewLocalStore(mapleFactory, nil)),
		Session: backend.NewSession(lstore.NewLocalStore(mapleFactory, nil)),
	}
}

func TestSideChannels(t *testing.T) {
	opts := memoryOptions()
	opts.SideChannels = []backend.IBackend{
		backend.NewSideChannel(&fakeCapturer{kind: backend.SideChannelWebRTC}, opts.Durable),
		backend.NewSideChannel(&fakeCapturer{kind: backend.SideChannelCanvas, err: backend.ErrAdapterUnavailable}, opts.Durable),
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	p := mustSet(t, c, "id", "abc123")
	results := p.Results()
	assert.Len(t, results, 2)

	artifact, found, err := opts.Durable.Read(ctx, "webrtc-id")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "webrtc:id", artifact)

	_, found, _ = opts.Durable.Read(ctx, "canvas-id")
	assert.False(t, found, "unavailable side channels are skipped")

	// side channels never take part in reads
	for _, r := range c.Inspect(ctx, "id") {
		assert.False(t, r.Kind.SideChannel())
	}
}

func TestSyncWriteFailurePropagates(t *testing.T) {
	opts := memoryOptions()
	opts.Durable = &failingBackend{IBackend: opts.Durable, err: errors.New("quota exceeded")}
	c, err := NewClient(opts)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("id", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "durable")

	// the guard was released, a retry runs the probe again and skips on the written cookie
	p, err := c.Set("id", "abc123")
	require.NoError(t, err)
	assert.True(t, p.Skipped())
}

func TestGetNeverFails(t *testing.T) {
	opts := memoryOptions()
	opts.Cookie = &failingBackend{IBackend: opts.Cookie, err: errors.New("broken jar")}
	c, err := NewClient(opts)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, opts.Session.Write(ctx, "id", "abc123"))
	value, found := c.Get(ctx, "id")
	assert.True(t, found)
	assert.Equal(t, "abc123", value)
}

func TestWithoutAsyncStore(t *testing.T) {
	c, err := NewClient(memoryOptions())
	require.NoError(t, err)
	defer c.Close()

	mustSet(t, c, "id", "abc123")
	assert.Len(t, c.Inspect(context.Background(), "id"), 3)
	assert.NoError(t, c.Repair(context.Background()))
}

func TestClose(t *testing.T) {
	c, err := NewClient(memoryOptions())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Set("id", "abc123")
	assert.Error(t, err)
}

func TestMissingBackends(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}

func TestPersistenceAcrossClients(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	c, err := Open(cfg)
	require.NoError(t, err)
	mustSet(t, c, "id", "abc123")
	require.NoError(t, c.Close())

	// a new process: session storage is gone, everything else survives
	c = openClient(t, cfg)
	results := c.Inspect(ctx, "id")
	found := map[backend.Kind]bool{}
	for _, r := range results {
		found[r.Kind] = r.Found
	}
	assert.Equal(t, map[backend.Kind]bool{
		backend.Cookie:       true,
		backend.DurableStore: true,
		backend.SessionStore: false,
		backend.AsyncStore:   true,
	}, found)
}
