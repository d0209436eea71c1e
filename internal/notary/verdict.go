package notary

import (
	"fmt"
	"strings"
)

// acceptedMarker is the explicit acceptance marker in a textual verdict.
// The notarization service's machine-readable exit status has proven
// unreliable for this outcome, so the structured status field is trusted
// only when it carries this exact value, and the free-text log is searched
// for "status: Accepted" as the fallback.
const acceptedMarker = "Accepted"

// Verdict is the terminal response of a notarization submission.
type Verdict struct {
	// SubmissionID identifies the submission at the remote service.
	SubmissionID string
	// Status is the structured status field, when the service returned one.
	Status string
	// Log is the verbatim textual verdict.
	Log string
}

// RejectedError is a notarization verdict without the acceptance marker.
// The verdict is carried verbatim so the job failure surfaces exactly what
// the service said.
type RejectedError struct {
	Verdict *Verdict
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("notarization rejected (status %q): %s", e.Verdict.Status, strings.TrimSpace(e.Verdict.Log))
}

// Classify maps a verdict to ACCEPTED or REJECTED. Acceptance requires the
// explicit marker: a structured status equal to "Accepted", or, when the
// status field is absent, a "status: Accepted" line in the textual log.
// Everything else is REJECTED, including nominally-successful responses
// that lack the marker.
func Classify(v *Verdict) (State, error) {
	if v.Status == acceptedMarker {
		return Accepted, nil
	}
	if v.Status == "" && strings.Contains(v.Log, "status: "+acceptedMarker) {
		return Accepted, nil
	}
	return Rejected, &RejectedError{Verdict: v}
}
