package bundle

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/version"
)

// VersionReporter asks a built binary for its self-reported version line.
type VersionReporter interface {
	ReportedVersion(ctx context.Context, binaryPath string) (string, error)
}

// CommandVersionReporter invokes the binary itself with its version
// subcommand.
type CommandVersionReporter struct{}

// ReportedVersion implements VersionReporter.
func (CommandVersionReporter) ReportedVersion(ctx context.Context, binaryPath string) (string, error) {
	out, err := exec.CommandContext(ctx, binaryPath, "version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to query %q for its version: %w", binaryPath, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// VerifyEmbeddedVersion runs the primary binary and asserts its
// self-reported version line equals the expected embedded string. A
// mismatch means the version metadata was not actually refreshed for this
// build and must block publication.
func VerifyEmbeddedVersion(ctx context.Context, reporter VersionReporter, primaryPath, expected string) error {
	reported, err := reporter.ReportedVersion(ctx, primaryPath)
	if err != nil {
		return err
	}
	if err := version.VerifyEmbedded(reported, expected); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Embedded version verified.", "version", expected)
	return nil
}
