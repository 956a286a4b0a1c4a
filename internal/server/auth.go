package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/docugen/internal/redact"
)

// Roles carried in the "role" claim. Anything other than RoleReadOnly may
// submit batches.
const (
	RoleEditor   = "editor"
	RoleReadOnly = "readonly"
)

type authPrincipal struct {
	Subject string
	Role    string
}

type ctxKey string

const (
	ctxPrincipalKey ctxKey = "auth_principal"
)

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		p, err := s.resolvePrincipal(r, time.Now())
		if err != nil {
			writeError(w, http.StatusUnauthorized, redact.Error(err), "UNAUTHORIZED")
			return
		}
		if p.Role == RoleReadOnly && isWriteMethod(r.Method) {
			writeError(w, http.StatusForbidden, "token role does not allow writes", "FORBIDDEN")
			return
		}
		ctx := context.WithValue(r.Context(), ctxPrincipalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) authPrincipal {
	if v, ok := ctx.Value(ctxPrincipalKey).(authPrincipal); ok {
		return v
	}
	return authPrincipal{Subject: "anonymous", Role: RoleEditor}
}

// resolvePrincipal accepts a shared-secret token first and falls back to
// the OIDC verifier when one is configured.
func (s *Server) resolvePrincipal(r *http.Request, now time.Time) (authPrincipal, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return authPrincipal{}, fmt.Errorf("missing bearer token")
	}
	var err error
	if s.cfg.Auth.JWTSecret != "" {
		var p authPrincipal
		if p, err = s.resolveSharedSecretPrincipal(raw, now); err == nil {
			return p, nil
		}
	}
	if p, ok := s.resolveOIDCPrincipal(r); ok {
		return p, nil
	}
	if err == nil {
		err = fmt.Errorf("invalid token")
	}
	return authPrincipal{}, err
}

func (s *Server) resolveSharedSecretPrincipal(raw string, now time.Time) (authPrincipal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithTimeFunc(func() time.Time { return now.UTC() }),
		jwt.WithExpirationRequired(),
	}
	if iss := strings.TrimSpace(s.cfg.Auth.Issuer); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(s.cfg.Auth.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}
	secret := []byte(s.cfg.Auth.JWTSecret)
	c := tokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return authPrincipal{}, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return authPrincipal{}, fmt.Errorf("invalid token")
	}
	role := strings.ToLower(strings.TrimSpace(c.Role))
	if role == "" {
		role = RoleEditor
	}
	return authPrincipal{Subject: c.Subject, Role: role}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
