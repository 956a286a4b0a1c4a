package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/user/docugen/internal/redact"
)

type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

type oidcAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's signing keys and returns a verifier
// for ID tokens issued to cfg.ClientID.
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, strings.TrimSpace(cfg.IssuerURL))
	if err != nil {
		return nil, err
	}
	return provider.Verifier(&oidc.Config{ClientID: strings.TrimSpace(cfg.ClientID)}), nil
}

// WithOIDCAuth accepts ID tokens checked by v alongside the shared-secret
// tokens.
func WithOIDCAuth(v *oidc.IDTokenVerifier) Option {
	return func(s *Server) {
		if v != nil {
			s.oidcAuth = &oidcAuthenticator{verifier: v}
		}
	}
}

func (s *Server) resolveOIDCPrincipal(r *http.Request) (authPrincipal, bool) {
	if s.oidcAuth == nil {
		return authPrincipal{}, false
	}
	raw, ok := bearerToken(r)
	if !ok {
		return authPrincipal{}, false
	}
	idToken, err := s.oidcAuth.verifier.Verify(r.Context(), raw)
	if err != nil {
		slog.Debug("oidc token rejected", "error", redact.Error(err))
		return authPrincipal{}, false
	}
	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return authPrincipal{}, false
	}
	p := authPrincipal{
		Subject: claimString(claims, "email", "preferred_username", "sub"),
		Role:    strings.ToLower(claimString(claims, "docugen_role", "role")),
	}
	if p.Subject == "" {
		p.Subject = "oidc-user"
	}
	if p.Role == "" {
		p.Role = RoleReadOnly
	}
	return p, true
}

func claimString(claims map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
