package main

import (
	"context"
	"errors"
	"time"

	"github.com/BearBump/FreightBox/config"
	"github.com/BearBump/FreightBox/internal/cache/rediscache"
	"github.com/BearBump/FreightBox/internal/services/planner"
	"github.com/BearBump/FreightBox/internal/storage/memfreight"
	"github.com/BearBump/FreightBox/internal/storage/pgfreight"
)

type workerFactories struct {
	newStorage func(cfg *config.Config) (store planner.Store, closeFn func(), err error)
	newGuard   func(cfg *config.Config) planner.Guard
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (planner.Store, func(), error) {
			if cfg.FreightBox.Storage == "memory" {
				st := memfreight.New()
				memfreight.SeedDemo(st)
				return st, nil, nil
			}
			st, err := pgfreight.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newGuard: func(cfg *config.Config) planner.Guard {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
	}
}

type workerRunOpts struct {
	swaggerPath string
	onListen    func(httpAddr string)
}

// RunFreightWorker runs the statement planner and, with a swagger file, the worker HTTP server.
func RunFreightWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerRunOpts) error {
	settlement := cfg.FreightBox.SettlementDepartmentID
	if settlement == 0 {
		return errors.New("freightbox.settlement_department_id is required")
	}
	interval := time.Duration(cfg.FreightBox.WorkerPollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	store, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	p := planner.New(store, f.newGuard(cfg), settlement).WithSettings(interval, nil)

	errCh := make(chan error, 2)
	if opts.swaggerPath != "" {
		go func() {
			errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.FreightBox.WorkerHTTPAddr,
				swaggerPath: opts.swaggerPath,
				onListen:    opts.onListen,
				planner:     p,
				store:       store,
				cfg:         cfg,
			})
		}()
	}
	go func() {
		errCh <- p.Run(ctx)
	}()

	err = <-errCh
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
