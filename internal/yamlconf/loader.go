// Package yamlconf loads pipeline definitions written in YAML. It produces
// the same config model as the HCL loader; YAML files have no expression
// language, so the trigger is ignored.
package yamlconf

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
)

// Loader parses .yaml/.yml pipeline files.
type Loader struct{}

// NewLoader creates a YAML pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

type fileSchema struct {
	Tool      string `yaml:"tool"`
	Toolchain struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"toolchain"`
	Platforms []struct {
		OS               string `yaml:"os"`
		Arch             string `yaml:"arch"`
		ToolchainVersion string `yaml:"toolchain_version"`
		ProjectFile      string `yaml:"project_file"`
	} `yaml:"platforms"`
	Publish *struct {
		Owner          string `yaml:"owner"`
		Repository     string `yaml:"repository"`
		SignerIdentity string `yaml:"signer_identity"`
	} `yaml:"publish"`
}

// Load implements config.Loader.
func (l *Loader) Load(ctx context.Context, _ *config.Trigger, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing YAML pipeline definition.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var raw fileSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", path, err)
	}

	model := &config.Model{
		Tool: raw.Tool,
		Toolchain: &config.Toolchain{
			Name:    raw.Toolchain.Name,
			Version: raw.Toolchain.Version,
		},
	}
	for _, p := range raw.Platforms {
		model.Platforms = append(model.Platforms, &config.Platform{
			OS:               p.OS,
			Arch:             p.Arch,
			ToolchainVersion: p.ToolchainVersion,
			ProjectFile:      p.ProjectFile,
		})
	}
	if raw.Publish != nil {
		model.Publish = &config.Publish{
			Owner:          raw.Publish.Owner,
			Repository:     raw.Publish.Repository,
			SignerIdentity: raw.Publish.SignerIdentity,
		}
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition %q: %w", path, err)
	}
	logger.Debug("Pipeline definition loaded.", "platforms", len(model.Platforms))
	return model, nil
}
