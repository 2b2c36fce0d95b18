package evercookie

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/ValentinKolb/evercookie/lib/common"
	"github.com/ValentinKolb/evercookie/lib/cookiejar"
	"github.com/ValentinKolb/evercookie/lib/db"
	"github.com/ValentinKolb/evercookie/lib/db/engines/maple"
	"github.com/ValentinKolb/evercookie/lib/sidechannel"
	"github.com/ValentinKolb/evercookie/lib/store/lstore"
	"github.com/ValentinKolb/evercookie/lib/store/pstore"
)

func mapleFactory() db.KVDB {
	return maple.NewMapleDB(nil)
}

// Open assembles a client from the configuration: the cookie jar and the durable storage
// snapshot in cfg.DataDir, an in-memory session storage, the async object store container and
// the enabled side channels.
func Open(cfg common.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// the jar is read from the path the cookie is scoped to
	jar, err := cookiejar.Open(cfg.CookieFile(), &cookiejar.Options{DocumentPath: cfg.CookiePath})
	if err != nil {
		return nil, err
	}

	quota := &lstore.Options{QuotaBytes: cfg.StorageQuotaBytes}
	durableStore, err := pstore.NewPersistentStore(cfg.DurableFile(), mapleFactory, quota)
	if err != nil {
		return nil, err
	}
	sessionStore := lstore.NewLocalStore(mapleFactory, quota)

	set := metrics.NewSet()
	durable := backend.NewDurable(durableStore)

	var side []backend.IBackend
	if cfg.EnableWebRTC {
		side = append(side, backend.NewSideChannel(sidechannel.NewWebRTC(), durable))
	}
	if cfg.EnableCanvas {
		side = append(side, backend.NewSideChannel(sidechannel.NewCanvas(), durable))
	}

	return NewClient(Options{
		Cookie:  backend.NewCookie(jar, cfg.CookiePath, cfg.CookieMaxAgeSeconds),
		Durable: durable,
		Session: backend.NewSession(sessionStore),
		Async: backend.NewAsyncStore(backend.AsyncOptions{
			Dir:           cfg.DataDir,
			Name:          cfg.ContainerName,
			Version:       cfg.ContainerVersion,
			StoreName:     cfg.ObjectStoreName,
			MaxRecoveries: cfg.MaxSchemaRecoveries,
			OnRecovery:    newClientMetrics(set).recovery,
		}),
		SideChannels: side,
		Metrics:      set,
		Closers:      []io.Closer{durableStore, sessionStore},
	})
}
