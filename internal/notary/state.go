package notary

import "fmt"

// State is a stage of the signing/notarization state machine.
type State int32

const (
	Unsigned State = iota
	KeychainProvisioned
	Signed
	Submitted
	Accepted
	Rejected
)

// String returns the state's canonical name.
func (s State) String() string {
	switch s {
	case Unsigned:
		return "UNSIGNED"
	case KeychainProvisioned:
		return "KEYCHAIN_PROVISIONED"
	case Signed:
		return "SIGNED"
	case Submitted:
		return "SUBMITTED"
	case Accepted:
		return "ACCEPTED"
	case Rejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// IsTerminal reports whether the machine has reached a verdict.
func (s State) IsTerminal() bool {
	return s == Accepted || s == Rejected
}

// allowedTransition encodes the only legal path through the machine:
// UNSIGNED -> KEYCHAIN_PROVISIONED -> SIGNED -> SUBMITTED -> {ACCEPTED|REJECTED}.
func allowedTransition(from, to State) bool {
	switch from {
	case Unsigned:
		return to == KeychainProvisioned
	case KeychainProvisioned:
		return to == Signed
	case Signed:
		return to == Submitted
	case Submitted:
		return to == Accepted || to == Rejected
	default:
		return false
	}
}
