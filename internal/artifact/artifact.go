// Package artifact defines the binaries a platform build produces and the
// naming shared by bundling, signing and publication.
package artifact

import "fmt"

// Kind identifies one of the three binaries every successful build emits.
type Kind string

const (
	// PrimaryCLI is the user-facing command line tool.
	PrimaryCLI Kind = "primary-cli"
	// DiagnosticTool is the support/diagnostics companion binary.
	DiagnosticTool Kind = "diagnostic-tool"
	// IndexTool is the index maintenance companion binary.
	IndexTool Kind = "index-tool"
)

// Kinds lists all binary kinds in stable order.
var Kinds = []Kind{PrimaryCLI, DiagnosticTool, IndexTool}

// Artifact is one built binary on disk.
type Artifact struct {
	Name     string
	Platform string
	Kind     Kind
	Path     string
}

// Set is the complete binary output of one platform build, keyed by kind.
type Set map[Kind]Artifact

// Validate checks that the set holds exactly the three expected binaries.
func (s Set) Validate() error {
	if len(s) != len(Kinds) {
		return fmt.Errorf("expected %d binaries, got %d", len(Kinds), len(s))
	}
	for _, k := range Kinds {
		a, ok := s[k]
		if !ok {
			return fmt.Errorf("missing binary for kind %q", k)
		}
		if a.Path == "" {
			return fmt.Errorf("binary for kind %q has no path", k)
		}
	}
	return nil
}
