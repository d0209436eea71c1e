package notary

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// SignOptions controls one code-signing invocation.
type SignOptions struct {
	// KeychainService names the job-scoped keychain holding the certificate.
	KeychainService string
	// Identity is the signing identity to apply.
	Identity string
	// RelaxLibraryValidation disables the dynamic-library verification
	// entitlement. Needed for the Intel (x64) variant of the primary
	// binary, whose base system performs a dyld check absent on arm64.
	RelaxLibraryValidation bool
}

// Signer applies a code signature to a single binary.
type Signer interface {
	Sign(ctx context.Context, binaryPath string, opts SignOptions) error
}

// relaxedEntitlements is the entitlements plist applied when library
// validation must be disabled.
const relaxedEntitlements = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>com.apple.security.cs.disable-library-validation</key>
	<true/>
</dict>
</plist>
`

// CommandSigner shells out to the platform's code-signing tool.
type CommandSigner struct {
	// Executable defaults to "codesign" when empty.
	Executable string
}

// Sign implements Signer.
func (s *CommandSigner) Sign(ctx context.Context, binaryPath string, opts SignOptions) error {
	executable := s.Executable
	if executable == "" {
		executable = "codesign"
	}

	args := []string{
		"--force", "--timestamp",
		"--options", "runtime",
		"--keychain", opts.KeychainService,
		"--sign", opts.Identity,
	}
	if opts.RelaxLibraryValidation {
		entitlements := filepath.Join(os.TempDir(), "relaxed-entitlements.plist")
		if err := os.WriteFile(entitlements, []byte(relaxedEntitlements), 0o644); err != nil {
			return fmt.Errorf("failed to write entitlements file: %w", err)
		}
		defer os.Remove(entitlements)
		args = append(args, "--entitlements", entitlements)
	}
	args = append(args, binaryPath)

	cmd := exec.CommandContext(ctx, executable, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("code signing of %q failed: %w\n%s", binaryPath, err, out)
	}
	return nil
}
