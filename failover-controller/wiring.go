package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production JSON logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// openHistoryStore is swapped in tests to avoid a live Postgres.
var openHistoryStore = OpenPostgresHistoryStore

// App holds everything a command needs. Close releases the history store.
type App struct {
	Config     *Config
	Controller *FailoverController
	State      *StateStore
	History    *PostgresHistoryStore
	Logger     *zap.Logger
}

func (a *App) Close() {
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Warn("Failed to close history store", zap.Error(err))
		}
	}
}

// NewApp constructs the collaborators selected by cfg and the controller
// that uses them.
func NewApp(ctx context.Context, cfg *Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	deps := ControllerDeps{
		Resolve: cfg.ResolveOptions(),
		Logger:  logger,
	}

	switch cfg.ControlPlane {
	case BackendMock:
		logger.Warn("Using mock control plane; no cloud API calls will be made")
		params := MapConfigSource{}
		for k, v := range cfg.Mock.Parameters {
			params[k] = v
		}
		primary := NewMockControlPlane(cfg.PrimaryRegion, logger)
		secondary := NewMockControlPlane(cfg.SecondaryRegion, logger)
		if id := params[ParamPrimaryIdentifier]; id != "" {
			primary.SetStatus(id, cfg.Mock.PrimaryStatus)
		}
		if id := params[ParamSecondaryIdentifier]; id != "" {
			secondary.SetStatus(id, cfg.Mock.SecondaryStatus)
		}
		deps.Source = params
		deps.Primary = primary
		deps.Secondary = secondary
		deps.Notifier = NewLogNotifier(logger)

	default:
		primaryCfg, err := LoadAWSConfig(ctx, cfg.PrimaryRegion, cfg)
		if err != nil {
			return nil, err
		}
		secondaryCfg, err := LoadAWSConfig(ctx, cfg.SecondaryRegion, cfg)
		if err != nil {
			return nil, err
		}
		deps.Source = NewParameterStore(primaryCfg, cfg.ParamPrefix, cfg.CallTimeout, logger)
		deps.Primary = NewRDSControlPlane(primaryCfg, cfg.CallTimeout, logger)
		deps.Secondary = NewRDSControlPlane(secondaryCfg, cfg.CallTimeout, logger)
		deps.Notifier = NewSNSNotifier(primaryCfg, cfg.CallTimeout, logger)
	}

	if cfg.StateFile != "" {
		app.State = NewStateStore(cfg.StateFile)
		deps.Recorders = append(deps.Recorders, app.State)
	}
	if cfg.DatabaseURL != "" {
		history, err := openHistoryStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.History = history
		deps.Recorders = append(deps.Recorders, history)
	}

	app.Controller = NewFailoverController(deps)
	return app, nil
}
