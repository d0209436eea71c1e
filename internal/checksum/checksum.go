// Package checksum writes sha256 sidecar files for release archives and
// verifies them back before anything downstream is allowed to trust them.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Record pairs a finalized archive with its sha256 digest.
type Record struct {
	ArchiveName string
	SHA256      string
}

// MismatchError reports a sidecar whose recorded digest no longer matches
// its archive. It is fatal and blocks publication.
type MismatchError struct {
	ArchiveName string
	Recorded    string
	Computed    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %q: sidecar records %s, archive hashes to %s", e.ArchiveName, e.Recorded, e.Computed)
}

// FileSHA256 computes the hex sha256 digest of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Write computes the archive's digest and emits the conventional two-column
// sidecar (`<hex>  <filename>`) next to it as "<archive>.sha256".
func Write(archivePath string) (Record, string, error) {
	sum, err := FileSHA256(archivePath)
	if err != nil {
		return Record{}, "", err
	}
	name := filepath.Base(archivePath)
	sidecar := archivePath + ".sha256"
	line := fmt.Sprintf("%s  %s\n", sum, name)
	if err := os.WriteFile(sidecar, []byte(line), 0o644); err != nil {
		return Record{}, "", fmt.Errorf("failed to write checksum sidecar: %w", err)
	}
	return Record{ArchiveName: name, SHA256: sum}, sidecar, nil
}

// Verify re-reads a sidecar and re-hashes the archive it references, which
// must live in the same directory. A parse failure or digest mismatch is
// returned as an error; a mismatch specifically as *MismatchError.
func Verify(sidecarPath string) error {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return fmt.Errorf("failed to read checksum sidecar: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return fmt.Errorf("malformed checksum sidecar %q: expected 2 columns, got %d", sidecarPath, len(fields))
	}
	recorded, name := fields[0], fields[1]

	archivePath := filepath.Join(filepath.Dir(sidecarPath), name)
	computed, err := FileSHA256(archivePath)
	if err != nil {
		return err
	}
	if computed != recorded {
		return &MismatchError{ArchiveName: name, Recorded: recorded, Computed: computed}
	}
	return nil
}

// VerifyAll verifies every sidecar path given; the first failure aborts.
func VerifyAll(sidecarPaths []string) error {
	for _, p := range sidecarPaths {
		if err := Verify(p); err != nil {
			return err
		}
	}
	return nil
}
