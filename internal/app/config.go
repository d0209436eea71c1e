package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath points at the pipeline definition (.hcl, .yaml, .yml).
	PipelinePath string

	// Ref and Commit describe the triggering push event.
	Ref    string
	Commit string

	LogFormat   string
	LogLevel    string
	WorkerCount int

	WorkDir  string
	CacheDir string
	// StoreURL selects the artifact store: http(s) URL or directory path.
	StoreURL string

	NotaryURL  string
	SignURL    string
	ReleaseURL string

	// BuildExecutable is the managed-runtime build tool binary.
	BuildExecutable string

	// DryRun swaps every external collaborator for a no-op.
	DryRun bool
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Commit == "" && !cfg.DryRun {
		return nil, errors.New("Commit is required: the pipeline cannot version a build without it")
	}
	if cfg.BuildExecutable == "" {
		cfg.BuildExecutable = "dotnet"
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}
