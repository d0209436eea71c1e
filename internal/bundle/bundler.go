// Package bundle assembles release archives from built binaries. Naming
// and formats are platform-conditional: Linux ships both zip and tar.gz
// (legacy installers expect zip, newer ones prefer tar), macOS and Windows
// ship zip only.
package bundle

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/config"
	"github.com/vk/shipgridgo/internal/ctxlog"
)

// Archive is one finalized release archive on disk.
type Archive struct {
	Path   string
	Format string // "zip" or "tar.gz"
	Kind   artifact.Kind
}

// BaseName returns the canonical archive base name
// {binaryKind}_{version}_{os}_{arch}, without the format extension.
func BaseName(kind artifact.Kind, version, osName, arch string) string {
	return fmt.Sprintf("%s_%s_%s_%s", kind, version, osName, arch)
}

// Formats returns the archive formats produced for an operating system.
func Formats(osName string) []string {
	if osName == "linux" {
		return []string{"zip", "tar.gz"}
	}
	return []string{"zip"}
}

// Bundler assembles archives into a destination directory.
type Bundler struct{}

// Bundle produces one archive per (binary kind, format) for the platform.
// Each archive contains exactly its binary; signature bundles are appended
// later by the publisher, once they exist.
func (b *Bundler) Bundle(ctx context.Context, set artifact.Set, versionValue string, p *config.Platform, destDir string) ([]Archive, error) {
	logger := ctxlog.FromContext(ctx).With("platform", p.Name())
	if err := set.Validate(); err != nil {
		return nil, err
	}

	var archives []Archive
	for _, kind := range artifact.Kinds {
		a := set[kind]
		base := BaseName(kind, versionValue, p.OS, p.Arch)
		for _, format := range Formats(p.OS) {
			path := filepath.Join(destDir, base+"."+format)
			if err := writeArchive(path, format, []string{a.Path}); err != nil {
				return nil, fmt.Errorf("failed to assemble %q: %w", path, err)
			}
			logger.Debug("Archive assembled.", "archive", filepath.Base(path))
			archives = append(archives, Archive{Path: path, Format: format, Kind: kind})
		}
	}
	return archives, nil
}
