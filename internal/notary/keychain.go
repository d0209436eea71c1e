package notary

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"

	"github.com/vk/shipgridgo/internal/ctxlog"
	"github.com/vk/shipgridgo/internal/secrets"
)

// defaultIdleLifetime bounds how long a provisioned keychain may sit unused
// before it tears itself down. Defense in depth: if the job dies without
// cleanup the certificate still disappears.
const defaultIdleLifetime = 20 * time.Minute

// Keychain is a job-scoped credential store holding the signing certificate
// for the duration of one signing run.
type Keychain struct {
	// service is the unique per-job keyring service name.
	service string

	mu       sync.Mutex
	torn     bool
	idleStop *time.Timer
}

// entries stored under the job-scoped service name.
var keychainEntries = []string{"signing-certificate", "certificate-password"}

// ProvisionKeychain materializes the signing certificate from secret
// material into a fresh job-scoped keychain with a bounded idle lifetime.
func ProvisionKeychain(ctx context.Context, material *secrets.Material, idleLifetime time.Duration) (*Keychain, error) {
	logger := ctxlog.FromContext(ctx)
	if idleLifetime <= 0 {
		idleLifetime = defaultIdleLifetime
	}

	k := &Keychain{service: fmt.Sprintf("shipgrid-job-%s", uuid.NewString())}

	if err := keyring.Set(k.service, "signing-certificate", base64.StdEncoding.EncodeToString(material.SigningCertificate)); err != nil {
		return nil, fmt.Errorf("failed to store signing certificate: %w", err)
	}
	if err := keyring.Set(k.service, "certificate-password", material.CertificatePassword); err != nil {
		_ = k.Teardown()
		return nil, fmt.Errorf("failed to store certificate password: %w", err)
	}

	k.idleStop = time.AfterFunc(idleLifetime, func() {
		_ = k.Teardown()
	})
	logger.Debug("Job-scoped keychain provisioned.", "service", k.service, "idle_lifetime", idleLifetime)
	return k, nil
}

// Service returns the keychain's unique service name, handed to the signer
// so it can reference the provisioned certificate.
func (k *Keychain) Service() string {
	return k.service
}

// Teardown deletes every entry of the job-scoped keychain. Safe to call
// more than once; only the first call does work.
func (k *Keychain) Teardown() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.torn {
		return nil
	}
	k.torn = true
	if k.idleStop != nil {
		k.idleStop.Stop()
	}

	var firstErr error
	for _, entry := range keychainEntries {
		if err := keyring.Delete(k.service, entry); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to delete keychain entry %q: %w", entry, err)
		}
	}
	return firstErr
}
