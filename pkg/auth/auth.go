// Package auth provides bearer-token authentication for the transcript MCP
// server. A presented credential resolves to a subject, the principal the
// saved-transcript store is scoped by. Tokens are static, configured at
// process start; there is no issuance, refresh, or revocation surface.
package auth

import (
	"context"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
)

// Authenticator resolves a presented credential to a subject identifier.
type Authenticator interface {
	// Authenticate validates the credential and returns the subject it maps
	// to. An absent or unknown credential fails with Unauthenticated.
	Authenticate(ctx context.Context, credential string) (string, error)

	// Type returns the authentication scheme identifier (e.g. "bearer", "none").
	Type() string
}

// StaticTokenAuthenticator validates bearer tokens against a fixed
// token → subject table loaded from configuration.
type StaticTokenAuthenticator struct {
	subjects map[string]string
}

// NewStaticTokenAuthenticator creates an authenticator over the given
// token → subject table. The table is copied; later mutation of the argument
// has no effect.
func NewStaticTokenAuthenticator(tokens map[string]string) *StaticTokenAuthenticator {
	subjects := make(map[string]string, len(tokens))
	for token, subject := range tokens {
		subjects[token] = subject
	}
	return &StaticTokenAuthenticator{subjects: subjects}
}

// Type returns the authentication scheme identifier.
func (a *StaticTokenAuthenticator) Type() string {
	return "bearer"
}

// Authenticate validates a bearer token and returns its subject.
func (a *StaticTokenAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", mcperrors.Unauthenticated("missing bearer token")
	}

	subject, ok := a.subjects[credential]
	if !ok {
		return "", mcperrors.Unauthenticated("unknown token")
	}

	return subject, nil
}

// AllowAllAuthenticator maps every request, credentialed or not, to one fixed
// subject. Used for local single-user deployments and the stdio transport,
// where the pipe itself is the trust boundary.
type AllowAllAuthenticator struct {
	subject string
}

// NewAllowAllAuthenticator creates an authenticator that accepts everything
// as the given subject. An empty subject defaults to "local".
func NewAllowAllAuthenticator(subject string) *AllowAllAuthenticator {
	if subject == "" {
		subject = "local"
	}
	return &AllowAllAuthenticator{subject: subject}
}

// Type returns the authentication scheme identifier.
func (a *AllowAllAuthenticator) Type() string {
	return "none"
}

// Authenticate accepts any credential and returns the fixed subject.
func (a *AllowAllAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	return a.subject, nil
}
