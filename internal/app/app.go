package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	model   *config.Model
	trigger *config.Trigger
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and a loaded,
// validated pipeline model. A failure to load the pipeline is a fatal
// startup error and panics; main recovers it into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	trigger := &config.Trigger{Ref: appConfig.Ref, Commit: appConfig.Commit}
	model, err := loader.Load(ctx, trigger, appConfig.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline definition: %w", err))
	}
	logger.Debug("Pipeline definition loaded.", "tool", model.Tool, "platforms", len(model.Platforms))

	return &App{
		outW:    outW,
		logger:  logger,
		config:  appConfig,
		model:   model,
		trigger: trigger,
	}
}

// Model returns the loaded pipeline model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
