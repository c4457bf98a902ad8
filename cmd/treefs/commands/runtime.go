package commands

import (
	"context"
	"fmt"

	"github.com/treefs/treefs/internal/logger"
	"github.com/treefs/treefs/pkg/config"
	"github.com/treefs/treefs/pkg/content"
	"github.com/treefs/treefs/pkg/metrics"
	"github.com/treefs/treefs/pkg/registry"
	"github.com/treefs/treefs/pkg/store"
)

// runtimeEnv bundles the loaded configuration, the stores and an
// initialized registry for one command invocation.
type runtimeEnv struct {
	cfg      *config.Config
	backend  store.Backend
	payloads content.Store
	reg      *registry.Registry
}

// openEnvironment loads the configuration, sets up logging, builds the
// configured stores and initializes the registry from them.
//
// The admin subcommands and the server share this path so both see exactly
// the same persisted state. The metrics argument is nil for one-shot admin
// commands.
func openEnvironment(ctx context.Context, m *metrics.RegistryMetrics) (*runtimeEnv, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.SetLevel(cfg.Logging.Level)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return nil, fmt.Errorf("failed to set log output: %w", err)
	}

	backend, err := config.CreateBackend(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}

	payloads, err := config.CreateContentStore(ctx, &cfg.Content)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	reg := registry.New(backend, backend, backend)
	if payloads != nil {
		reg.SetContentStore(payloads)
	}
	if m != nil {
		reg.SetMetrics(m)
	}

	if err := reg.Init(ctx); err != nil {
		if payloads != nil {
			_ = payloads.Close()
		}
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	return &runtimeEnv{cfg: cfg, backend: backend, payloads: payloads, reg: reg}, nil
}

// close tears the environment down in reverse order of construction. The
// shutdown timeout from the server configuration bounds the registry
// teardown.
func (e *runtimeEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
	defer cancel()

	e.reg.Fini(ctx)

	if e.payloads != nil {
		if err := e.payloads.Close(); err != nil {
			logger.Warn("failed to close content store: %v", err)
		}
	}
	if err := e.backend.Close(); err != nil {
		logger.Warn("failed to close store backend: %v", err)
	}
}
