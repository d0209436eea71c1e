// Package notary is the macOS-only signing and notarization state machine.
// It is entered only for tag-triggered builds on the macOS platform:
// UNSIGNED -> KEYCHAIN_PROVISIONED -> SIGNED -> SUBMITTED -> {ACCEPTED|REJECTED}.
package notary

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/vk/shipgridgo/internal/artifact"
	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/secrets"
)

// SigningError is a certificate/keychain setup or signing failure. Fatal to
// the job, never retried.
type SigningError struct {
	Stage string
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed during %s: %v", e.Stage, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// KeychainRef is what the machine needs from a provisioned keychain.
type KeychainRef interface {
	Service() string
	Teardown() error
}

// ProvisionFunc materializes a job-scoped keychain from secret material.
type ProvisionFunc func(ctx context.Context, material *secrets.Material, idleLifetime time.Duration) (KeychainRef, error)

// defaultProvision is the OS-keyring-backed provisioner.
func defaultProvision(ctx context.Context, material *secrets.Material, idleLifetime time.Duration) (KeychainRef, error) {
	return ProvisionKeychain(ctx, material, idleLifetime)
}

// intelArch is the pipeline's architecture name for Intel, matching the
// runtime identifiers the platform matrix is written in.
const intelArch = "x64"

// Machine drives one platform job's binaries through signing and
// notarization.
type Machine struct {
	signer       Signer
	client       SubmitClient
	identity     string
	idleLifetime time.Duration

	// Provision overrides keychain provisioning; nil means the OS keyring.
	Provision ProvisionFunc

	state atomic.Int32
}

// NewMachine creates a signing/notarization machine in the UNSIGNED state.
// identity is the signing identity presented to the code-signing tool.
func NewMachine(signer Signer, client SubmitClient, identity string) *Machine {
	return &Machine{signer: signer, client: client, identity: identity}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// transition validates and applies a state change. An invalid transition is
// a programming error, so it panics.
func (m *Machine) transition(ctx context.Context, to State) {
	from := m.State()
	if !allowedTransition(from, to) {
		panic(fmt.Sprintf("notary: illegal transition %s -> %s", from, to))
	}
	m.state.Store(int32(to))
	ctxlog.FromContext(ctx).Debug("Signing state changed.", "from", from.String(), "to", to.String())
}

// Run signs the three binaries and notarizes them, blocking until the
// remote verdict is terminal. arch is the platform's architecture, which
// decides the relaxed-entitlement variant. On success the machine ends in
// ACCEPTED; any other outcome is fatal to the job.
func (m *Machine) Run(ctx context.Context, set artifact.Set, arch string, material *secrets.Material) (*Verdict, error) {
	logger := ctxlog.FromContext(ctx)

	if err := material.RequireSigning(); err != nil {
		return nil, &SigningError{Stage: "credential check", Err: err}
	}

	provision := m.Provision
	if provision == nil {
		provision = defaultProvision
	}
	keychain, err := provision(ctx, material, m.idleLifetime)
	if err != nil {
		return nil, &SigningError{Stage: "keychain provisioning", Err: err}
	}
	defer keychain.Teardown()
	m.transition(ctx, KeychainProvisioned)

	for _, kind := range artifact.Kinds {
		a := set[kind]
		opts := SignOptions{
			KeychainService: keychain.Service(),
			Identity:        m.identity,
			// Only the primary binary's Intel ("x64") variant needs the
			// relaxed library-validation entitlement.
			RelaxLibraryValidation: kind == artifact.PrimaryCLI && arch == intelArch,
		}
		if err := m.signer.Sign(ctx, a.Path, opts); err != nil {
			return nil, &SigningError{Stage: fmt.Sprintf("signing %s", kind), Err: err}
		}
		logger.Debug("Binary signed.", "kind", string(kind), "relaxed_entitlement", opts.RelaxLibraryValidation)
	}
	m.transition(ctx, Signed)

	archivePath, err := submissionArchive(set)
	if err != nil {
		return nil, &SigningError{Stage: "submission archiving", Err: err}
	}
	defer os.Remove(archivePath)

	m.transition(ctx, Submitted)
	verdict, err := m.client.Submit(ctx, archivePath, material)
	if err != nil {
		return nil, fmt.Errorf("notarization submission did not reach a verdict: %w", err)
	}

	terminal, classifyErr := Classify(verdict)
	m.transition(ctx, terminal)
	if classifyErr != nil {
		return verdict, classifyErr
	}
	logger.Info("Notarization accepted.", "submission_id", verdict.SubmissionID)
	return verdict, nil
}

// submissionArchive zips the signed binaries for upload to the
// notarization service.
func submissionArchive(set artifact.Set) (string, error) {
	f, err := os.CreateTemp("", "notary-submission-*.zip")
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, kind := range artifact.Kinds {
		a := set[kind]
		in, err := os.Open(a.Path)
		if err != nil {
			w.Close()
			return "", err
		}
		entry, err := w.Create(filepath.Base(a.Path))
		if err == nil {
			_, err = io.Copy(entry, in)
		}
		in.Close()
		if err != nil {
			w.Close()
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}
