// Package version computes the release version for a pipeline run and owns
// the contract for the version string a built binary must report about itself.
package version

import (
	"fmt"
	"regexp"
	"strings"
)

// tagRefPattern matches refs that identify a release, e.g. "refs/tags/v1.2.3".
var tagRefPattern = regexp.MustCompile(`^refs/tags/v\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

// ReleaseVersion identifies the version a pipeline run is building.
type ReleaseVersion struct {
	// Value is the tag name without its leading "v" for tag-triggered runs,
	// or the full commit identifier otherwise.
	Value string
	// SourceRef is the git ref that triggered the run.
	SourceRef string
	// CommitPrefix12 is the first 12 characters of the commit identifier.
	CommitPrefix12 string
}

// IsTagRef reports whether ref names a version tag.
func IsTagRef(ref string) bool {
	return tagRefPattern.MatchString(ref)
}

// Compute derives the release version from the triggering ref and commit.
// The second return value reports whether the run is tag-triggered.
func Compute(ref, commit string) (ReleaseVersion, bool) {
	prefix := commit
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	v := ReleaseVersion{SourceRef: ref, CommitPrefix12: prefix}
	if IsTagRef(ref) {
		v.Value = strings.TrimPrefix(strings.TrimPrefix(ref, "refs/tags/"), "v")
		return v, true
	}
	v.Value = commit
	return v, false
}

// EmbeddedString is the exact self-reported version string a freshly built
// primary binary must print. toolchain is the major.minor of the compiling
// toolchain, e.g. "8.0".
func EmbeddedString(tool string, v ReleaseVersion, toolchain string) string {
	return fmt.Sprintf("%s version %s (revision %s compiled with %s)", tool, v.Value, v.CommitPrefix12, toolchain)
}

// MismatchError reports a binary whose embedded version string does not match
// the version the pipeline is releasing. It signals stale version metadata and
// must block publication.
type MismatchError struct {
	Reported string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("embedded version mismatch: binary reported %q, expected %q", e.Reported, e.Expected)
}

// VerifyEmbedded compares a binary's self-reported version line against the
// expected embedded string.
func VerifyEmbedded(reported, expected string) error {
	if strings.TrimSpace(reported) != expected {
		return &MismatchError{Reported: strings.TrimSpace(reported), Expected: expected}
	}
	return nil
}
