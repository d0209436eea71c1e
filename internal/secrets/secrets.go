// Package secrets loads the sensitive material a release run needs:
// signing certificate, keychain and notarization credentials, and the
// pipeline identity token. Values come from the environment (the CI path)
// with a fallback to the OS keyring for local runs.
package secrets

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used for the local-development fallback.
const keyringService = "shipgridgo"

// Material is the complete secret bundle for a tag-triggered run.
type Material struct {
	// SigningCertificate is the decoded PKCS#12 signing certificate.
	SigningCertificate []byte
	// CertificatePassword unlocks the certificate file.
	CertificatePassword string
	// KeychainPassword protects the job-scoped keychain.
	KeychainPassword string

	NotaryUser     string
	NotaryPassword string
	// TeamID is the platform vendor's team identifier.
	TeamID string

	// IdentityToken identifies this pipeline to the transparency-log
	// signing service; the expected signer identity is derived from it.
	IdentityToken string

	// ReleaseToken authenticates against the release-hosting API.
	ReleaseToken string
}

// env names for each field.
const (
	envSigningCert  = "SHIPGRID_SIGNING_CERT_B64"
	envCertPassword = "SHIPGRID_CERT_PASSWORD"
	envKeychainPass = "SHIPGRID_KEYCHAIN_PASSWORD"
	envNotaryUser   = "SHIPGRID_NOTARY_USER"
	envNotaryPass   = "SHIPGRID_NOTARY_PASSWORD"
	envTeamID       = "SHIPGRID_TEAM_ID"
	envIdentity     = "SHIPGRID_IDENTITY_TOKEN"
	envReleaseToken = "SHIPGRID_RELEASE_TOKEN"
)

// Load reads the secret material. Each value is taken from its environment
// variable first, then from the OS keyring under the shipgridgo service.
// Missing values are left empty; callers that require a field validate it
// at the point of use, so non-signing runs don't need any secrets at all.
func Load() (*Material, error) {
	m := &Material{
		CertificatePassword: lookup(envCertPassword, "cert-password"),
		KeychainPassword:    lookup(envKeychainPass, "keychain-password"),
		NotaryUser:          lookup(envNotaryUser, "notary-user"),
		NotaryPassword:      lookup(envNotaryPass, "notary-password"),
		TeamID:              lookup(envTeamID, "team-id"),
		IdentityToken:       lookup(envIdentity, "identity-token"),
		ReleaseToken:        lookup(envReleaseToken, "release-token"),
	}

	if encoded := lookup(envSigningCert, "signing-cert"); encoded != "" {
		cert, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode signing certificate: %w", err)
		}
		m.SigningCertificate = cert
	}
	return m, nil
}

// lookup reads an env var, falling back to the OS keyring.
func lookup(envName, keyringUser string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	if v, err := keyring.Get(keyringService, keyringUser); err == nil {
		return v
	}
	return ""
}

// RequireSigning validates that every field a signing/notarization run
// needs is present.
func (m *Material) RequireSigning() error {
	if len(m.SigningCertificate) == 0 {
		return fmt.Errorf("signing certificate is not configured (%s)", envSigningCert)
	}
	if m.CertificatePassword == "" || m.KeychainPassword == "" {
		return fmt.Errorf("certificate or keychain password is not configured")
	}
	if m.NotaryUser == "" || m.NotaryPassword == "" || m.TeamID == "" {
		return fmt.Errorf("notarization credentials are not configured")
	}
	return nil
}

// RequireRelease validates the fields a tag-triggered publication needs.
func (m *Material) RequireRelease() error {
	if m.ReleaseToken == "" {
		return fmt.Errorf("release API token is not configured (%s)", envReleaseToken)
	}
	return nil
}
