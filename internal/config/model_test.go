package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validModel() *Model {
	return &Model{
		Tool:      "shiptool",
		Toolchain: &Toolchain{Name: "dotnet", Version: "8.0.100"},
		Platforms: []*Platform{
			{OS: "linux", Arch: "x64", ProjectFile: "src/tool.csproj"},
			{OS: "osx", Arch: "arm64", ProjectFile: "src/tool.csproj"},
		},
	}
}

func TestModel_Validate(t *testing.T) {
	t.Run("valid model passes", func(t *testing.T) {
		assert.NoError(t, validModel().Validate())
	})

	t.Run("missing tool name", func(t *testing.T) {
		m := validModel()
		m.Tool = ""
		assert.Error(t, m.Validate())
	})

	t.Run("missing toolchain", func(t *testing.T) {
		m := validModel()
		m.Toolchain = nil
		assert.Error(t, m.Validate())
	})

	t.Run("no platforms", func(t *testing.T) {
		m := validModel()
		m.Platforms = nil
		assert.Error(t, m.Validate())
	})

	t.Run("platform missing arch", func(t *testing.T) {
		m := validModel()
		m.Platforms[0].Arch = ""
		assert.Error(t, m.Validate())
	})

	t.Run("platform missing project file", func(t *testing.T) {
		m := validModel()
		m.Platforms[0].ProjectFile = ""
		assert.Error(t, m.Validate())
	})

	t.Run("duplicate platform", func(t *testing.T) {
		m := validModel()
		m.Platforms[1] = m.Platforms[0]
		assert.Error(t, m.Validate())
	})
}

func TestPlatform_Name(t *testing.T) {
	p := &Platform{OS: "linux", Arch: "x64"}
	assert.Equal(t, "linux-x64", p.Name())
}

func TestToolchain_MajorMinor(t *testing.T) {
	assert.Equal(t, "8.0", (&Toolchain{Version: "8.0.100"}).MajorMinor())
	assert.Equal(t, "8.0", (&Toolchain{Version: "8.0"}).MajorMinor())
	assert.Equal(t, "8", (&Toolchain{Version: "8"}).MajorMinor())
}

func TestModel_ToolchainFor(t *testing.T) {
	m := validModel()

	t.Run("default toolchain", func(t *testing.T) {
		tc := m.ToolchainFor(m.Platforms[0])
		assert.Equal(t, "8.0.100", tc.Version)
	})

	t.Run("per-platform override", func(t *testing.T) {
		m.Platforms[1].ToolchainVersion = "8.0.204"
		tc := m.ToolchainFor(m.Platforms[1])
		assert.Equal(t, "8.0.204", tc.Version)
		assert.Equal(t, "dotnet", tc.Name)
	})
}
