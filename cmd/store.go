package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/resilience"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = resilience.DoVal(ctx, storeRetry("postgres connect"), func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
		})
	case "none":
		return nil, eris.New("run store is disabled (store.driver=none)")
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := resilience.Do(ctx, storeRetry("migrate"), st.Migrate); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// storeRetry retries transient store failures such as a locked SQLite file
// or a Postgres server that is still starting.
func storeRetry(operation string) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.OnRetry = resilience.RetryLogger(operation)
	return rc
}
