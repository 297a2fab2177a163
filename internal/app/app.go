// Package app wires configuration, stores, the broker gateway, and the HTTP
// surface into a runnable service.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gttbracket/internal/bracket"
	"gttbracket/internal/config"
	"gttbracket/internal/gateway/definedge"
	"gttbracket/internal/logger"
	"gttbracket/internal/preset"
	"gttbracket/internal/store/gormstore"
	"gttbracket/internal/store/oplog"
	apihttp "gttbracket/internal/transport/http/api"
)

// App holds the assembled service graph.
type App struct {
	cfg     *config.Config
	plans   *gormstore.Store
	ops     *oplog.Store
	server  *apihttp.Server
	presets *preset.Registry
}

// New builds the application from configuration without starting it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	plans, err := gormstore.New(cfg.Store.PlanDB)
	if err != nil {
		return nil, fmt.Errorf("opening plan store: %w", err)
	}
	ops, err := oplog.New(cfg.Store.OpsDB)
	if err != nil {
		plans.Close()
		return nil, fmt.Errorf("opening operations log: %w", err)
	}
	gateway, err := definedge.NewClient(cfg.Broker)
	if err != nil {
		plans.Close()
		ops.Close()
		return nil, err
	}

	var presets *preset.Registry
	if path := strings.TrimSpace(cfg.Presets.Path); path != "" {
		presets, err = preset.NewRegistry(path, cfg.Presets.Watch)
		if err != nil {
			plans.Close()
			ops.Close()
			return nil, fmt.Errorf("loading presets: %w", err)
		}
	}

	svc := bracket.NewService(plans, gateway, time.Duration(cfg.Broker.PlaceDelayMs)*time.Millisecond, ops)
	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Service: svc,
		Ops:     ops,
		Presets: presets,
	})
	if err != nil {
		plans.Close()
		ops.Close()
		return nil, err
	}
	return &App{cfg: cfg, plans: plans, ops: ops, server: server, presets: presets}, nil
}

// Run serves until ctx is cancelled. Reconciliation stays request-driven:
// the broker evaluates trigger conditions and the user (or an external cron)
// decides when to scan, so there is no timer loop here.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	logger.Infof("serving on %s (env=%s)", a.server.Addr(), a.cfg.App.Env)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases the stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.plans != nil {
		if err := a.plans.Close(); err != nil {
			logger.Warnf("closing plan store: %v", err)
		}
	}
	if a.ops != nil {
		if err := a.ops.Close(); err != nil {
			logger.Warnf("closing operations log: %v", err)
		}
	}
}
