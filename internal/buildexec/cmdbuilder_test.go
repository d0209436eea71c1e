package buildexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shipgridgo/internal/cachekey"
)

func TestLockfileResolver_ResolvePlan(t *testing.T) {
	dir := t.TempDir()
	lock := `{
		"packages": [
			{"id": "newtonsoft.json", "version": "13.0.3"},
			{"id": "serilog", "version": "3.1.1"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packages.lock.json"), []byte(lock), 0o644))

	resolver := &LockfileResolver{}
	plan, err := resolver.ResolvePlan(context.Background(), Request{
		ProjectFile: filepath.Join(dir, "tool.csproj"),
	})
	require.NoError(t, err)
	assert.Equal(t, []cachekey.ResolvedPackage{
		{ID: "newtonsoft.json/13.0.3"},
		{ID: "serilog/3.1.1"},
	}, plan)
}

func TestLockfileResolver_MissingLockFile(t *testing.T) {
	resolver := &LockfileResolver{}
	_, err := resolver.ResolvePlan(context.Background(), Request{
		ProjectFile: filepath.Join(t.TempDir(), "tool.csproj"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read lock file")
}

func TestLockfileResolver_CustomLockFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deps.lock"), []byte(`{"packages":[{"id":"a","version":"1.0.0"}]}`), 0o644))

	resolver := &LockfileResolver{LockFileName: "deps.lock"}
	plan, err := resolver.ResolvePlan(context.Background(), Request{
		ProjectFile: filepath.Join(dir, "tool.csproj"),
	})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "a/1.0.0", plan[0].ID)
}

func TestBinaryFileName(t *testing.T) {
	assert.Equal(t, "primary-cli", binaryFileName("primary-cli", "linux"))
	assert.Equal(t, "primary-cli.exe", binaryFileName("primary-cli", "win"))
}
