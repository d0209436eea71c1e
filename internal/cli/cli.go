// Package cli parses command-line arguments into an app configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/shipgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app
// config, a boolean indicating the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("shipgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
ShipGridGo - A cross-platform release-build orchestrator.

Usage:
  shipgridgo [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a pipeline definition (.hcl, .yaml or .yml).

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline definition file.")
	pFlag := flagSet.String("p", "", "Path to the pipeline definition file (shorthand).")
	refFlag := flagSet.String("ref", "", "Git ref of the triggering push event, e.g. refs/tags/v1.2.3.")
	commitFlag := flagSet.String("commit", "", "Commit identifier of the triggering push event.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers for the stage executor.")
	workDirFlag := flagSet.String("work-dir", "work", "Scratch directory for builds and staging.")
	cacheDirFlag := flagSet.String("cache-dir", "cache", "Root of the dependency cache store.")
	storeFlag := flagSet.String("store", "artifacts", "Artifact store: an http(s) URL or a directory path.")
	notaryURLFlag := flagSet.String("notary-url", "", "Base URL of the notarization service.")
	signURLFlag := flagSet.String("sign-url", "", "Base URL of the transparency-log signing service.")
	releaseURLFlag := flagSet.String("release-url", "", "Base URL of the release-hosting API.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Run the full stage graph against no-op collaborators.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		PipelinePath: path,
		Ref:          *refFlag,
		Commit:       *commitFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WorkerCount:  *workersFlag,
		WorkDir:      *workDirFlag,
		CacheDir:     *cacheDirFlag,
		StoreURL:     *storeFlag,
		NotaryURL:    *notaryURLFlag,
		SignURL:      *signURLFlag,
		ReleaseURL:   *releaseURLFlag,
		DryRun:       *dryRunFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
