package config

import (
	"fmt"
	"strings"
)

// Model is the unified, format-agnostic representation of a pipeline
// definition, independent of whether it was loaded from HCL or YAML.
type Model struct {
	// Tool is the name of the tool being released, used in archive names
	// and in the embedded version string contract.
	Tool      string
	Toolchain *Toolchain
	Platforms []*Platform
	Publish   *Publish
}

// Toolchain identifies the managed-runtime toolchain that resolves
// dependencies and compiles the binaries.
type Toolchain struct {
	Name    string
	Version string
}

// MajorMinor returns the toolchain version truncated to major.minor, the
// granularity embedded in a binary's version string.
func (t *Toolchain) MajorMinor() string {
	parts := strings.SplitN(t.Version, ".", 3)
	if len(parts) < 2 {
		return t.Version
	}
	return parts[0] + "." + parts[1]
}

// Platform is one entry of the build matrix.
type Platform struct {
	OS   string
	Arch string
	// ToolchainVersion overrides the pipeline toolchain version when set.
	ToolchainVersion string
	// ProjectFile is the build configuration reference handed to the build tool.
	ProjectFile string
}

// Name returns the platform's stable identifier, e.g. "linux-amd64". It keys
// cache namespaces and artifact-store uploads.
func (p *Platform) Name() string {
	return p.OS + "-" + p.Arch
}

// Publish holds the release-hosting coordinates and the signer identity
// expected on transparency-log signatures.
type Publish struct {
	Owner          string
	Repository     string
	SignerIdentity string
}

// Trigger is the push event a run was started by. It is not part of the
// pipeline file; it arrives from the environment and is exposed to pipeline
// expressions as variables.
type Trigger struct {
	Ref    string
	Commit string
}

// Validate checks the model for the mistakes a loader cannot catch
// syntactically.
func (m *Model) Validate() error {
	if m.Tool == "" {
		return fmt.Errorf("pipeline is missing a tool name")
	}
	if m.Toolchain == nil || m.Toolchain.Version == "" {
		return fmt.Errorf("pipeline is missing a toolchain version")
	}
	if len(m.Platforms) == 0 {
		return fmt.Errorf("pipeline defines no platforms")
	}
	seen := make(map[string]bool)
	for _, p := range m.Platforms {
		if p.OS == "" || p.Arch == "" {
			return fmt.Errorf("platform entries need both os and arch")
		}
		if p.ProjectFile == "" {
			return fmt.Errorf("platform %q is missing a project_file", p.Name())
		}
		if seen[p.Name()] {
			return fmt.Errorf("duplicate platform %q", p.Name())
		}
		seen[p.Name()] = true
	}
	return nil
}

// ToolchainFor resolves the effective toolchain for a platform, applying the
// per-platform override when present.
func (m *Model) ToolchainFor(p *Platform) *Toolchain {
	if p.ToolchainVersion != "" {
		return &Toolchain{Name: m.Toolchain.Name, Version: p.ToolchainVersion}
	}
	return m.Toolchain
}
