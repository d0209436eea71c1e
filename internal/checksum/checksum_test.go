package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestWrite_SidecarFormat(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, "tool_1.2.3_linux_x64.zip", []byte("archive bytes"))

	record, sidecar, err := Write(archive)
	require.NoError(t, err)
	assert.Equal(t, archive+".sha256", sidecar)
	assert.Equal(t, "tool_1.2.3_linux_x64.zip", record.ArchiveName)

	want := sha256.Sum256([]byte("archive bytes"))
	assert.Equal(t, hex.EncodeToString(want[:]), record.SHA256)

	data, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Equal(t, record.SHA256+"  tool_1.2.3_linux_x64.zip\n", string(data))
}

func TestVerify_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, "tool_1.2.3_osx_arm64.zip", []byte("payload"))

	_, sidecar, err := Write(archive)
	require.NoError(t, err)

	assert.NoError(t, Verify(sidecar))
}

func TestVerify_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, "tool_1.2.3_win_x64.zip", []byte("payload"))

	record, sidecar, err := Write(archive)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(archive, []byte("tampered"), 0o644))

	err = Verify(sidecar)
	require.Error(t, err)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "tool_1.2.3_win_x64.zip", mismatch.ArchiveName)
	assert.Equal(t, record.SHA256, mismatch.Recorded)
	assert.NotEqual(t, mismatch.Recorded, mismatch.Computed)
}

func TestVerify_MalformedSidecar(t *testing.T) {
	dir := t.TempDir()
	sidecar := filepath.Join(dir, "broken.sha256")
	require.NoError(t, os.WriteFile(sidecar, []byte("not a checksum line"), 0o644))

	err := Verify(sidecar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 columns")
}

func TestWrite_Idempotent(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, "tool_1.2.3_linux_arm64.tar.gz", []byte("stable content"))

	first, _, err := Write(archive)
	require.NoError(t, err)
	second, sidecar, err := Write(archive)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoError(t, Verify(sidecar))
}

func TestVerifyAll(t *testing.T) {
	dir := t.TempDir()
	a := writeArchive(t, dir, "a.zip", []byte("a"))
	b := writeArchive(t, dir, "b.zip", []byte("b"))

	_, sidecarA, err := Write(a)
	require.NoError(t, err)
	_, sidecarB, err := Write(b)
	require.NoError(t, err)

	require.NoError(t, VerifyAll([]string{sidecarA, sidecarB}))

	require.NoError(t, os.WriteFile(b, []byte("changed"), 0o644))
	assert.Error(t, VerifyAll([]string{sidecarA, sidecarB}))
}
