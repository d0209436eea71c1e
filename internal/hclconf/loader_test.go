package hclconf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shipgridgo/internal/config"
)

func writePipeline(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "release.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullPipeline(t *testing.T) {
	path := writePipeline(t, `
tool = "shiptool"

toolchain {
  name    = "dotnet"
  version = "8.0.100"
}

platform "linux" "x64" {
  project_file = "src/tool.csproj"
}

platform "osx" "arm64" {
  project_file      = "src/tool.csproj"
  toolchain_version = "8.0.204"
}

publish {
  owner           = "acme"
  repository      = "shiptool"
  signer_identity = "release-pipeline@acme"
}
`)

	model, err := NewLoader().Load(context.Background(), &config.Trigger{}, path)
	require.NoError(t, err)

	expected := &config.Model{
		Tool:      "shiptool",
		Toolchain: &config.Toolchain{Name: "dotnet", Version: "8.0.100"},
		Platforms: []*config.Platform{
			{OS: "linux", Arch: "x64", ProjectFile: "src/tool.csproj"},
			{OS: "osx", Arch: "arm64", ProjectFile: "src/tool.csproj", ToolchainVersion: "8.0.204"},
		},
		Publish: &config.Publish{Owner: "acme", Repository: "shiptool", SignerIdentity: "release-pipeline@acme"},
	}
	if diff := cmp.Diff(expected, model); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_TriggerVariables(t *testing.T) {
	path := writePipeline(t, `
tool = "shiptool-${trigger.commit}"

toolchain {
  name    = "dotnet"
  version = "8.0.100"
}

platform "linux" "x64" {
  project_file = "src/tool.csproj"
}
`)

	trigger := &config.Trigger{Ref: "refs/tags/v1.2.3", Commit: "abc123"}
	model, err := NewLoader().Load(context.Background(), trigger, path)
	require.NoError(t, err)
	assert.Equal(t, "shiptool-abc123", model.Tool)
}

func TestLoad_SyntaxError(t *testing.T) {
	path := writePipeline(t, `tool = `)
	_, err := NewLoader().Load(context.Background(), &config.Trigger{}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_SemanticValidation(t *testing.T) {
	t.Run("no platforms", func(t *testing.T) {
		path := writePipeline(t, `
tool = "shiptool"
toolchain {
  name    = "dotnet"
  version = "8.0.100"
}
`)
		_, err := NewLoader().Load(context.Background(), &config.Trigger{}, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no platforms")
	})

	t.Run("duplicate platform", func(t *testing.T) {
		path := writePipeline(t, `
tool = "shiptool"
toolchain {
  name    = "dotnet"
  version = "8.0.100"
}
platform "linux" "x64" {
  project_file = "src/tool.csproj"
}
platform "linux" "x64" {
  project_file = "src/other.csproj"
}
`)
		_, err := NewLoader().Load(context.Background(), &config.Trigger{}, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate platform")
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), &config.Trigger{}, filepath.Join(t.TempDir(), "absent.hcl"))
	assert.Error(t, err)
}
