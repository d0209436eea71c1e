package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/shipgridgo/internal/app"
	"github.com/vk/shipgridgo/internal/cli"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/hclconf"
	"github.com/vk/shipgridgo/internal/yamlconf"
)

// main is the entrypoint for the shipgridgo application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical startup errors, so we recover here to
	// provide a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(outW, "A critical startup error occurred: %v\n", r)
			os.Exit(1)
		}
	}()

	shipgridApp := app.NewApp(outW, appConfig, loaderFor(appConfig.PipelinePath))
	return shipgridApp.Run(context.Background())
}

// loaderFor selects the pipeline loader by file extension.
func loaderFor(path string) config.Loader {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return yamlconf.NewLoader()
	default:
		return hclconf.NewLoader()
	}
}
