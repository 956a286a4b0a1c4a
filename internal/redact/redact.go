// Package redact strips credentials and identifiers from text before it is
// logged or returned to a caller.
package redact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

var secretKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"id_token":      true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"client_secret": true,
	"password":      true,
	"private_key":   true,
	"secret":        true,
	"token":         true,
}

var (
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*`)
	// "access_token": "..." and access_token=... forms.
	jsonFieldPattern = regexp.MustCompile(`(?i)("(?:access_token|refresh_token|id_token|api_key|apikey|client_secret|password|private_key|secret|token|authorization)"\s*:\s*)"[^"]*"`)
	queryPattern     = regexp.MustCompile(`(?i)\b(access_token|refresh_token|api_key|apikey|key|token|client_secret)=([^&\s"']+)`)
	googleKeyPattern = regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{35}\b`)
	oauthPattern     = regexp.MustCompile(`\bya29\.[0-9A-Za-z\-_.]+`)
	skKeyPattern     = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}\b`)
	uuidPattern      = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
)

// String returns s with bearer tokens, API keys, OAuth access tokens,
// UUID-like identifiers and credential-bearing JSON fields replaced.
func String(s string) string {
	if s == "" {
		return ""
	}
	s = jsonFieldPattern.ReplaceAllString(s, `${1}"`+placeholder+`"`)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+placeholder)
	s = queryPattern.ReplaceAllString(s, "${1}="+placeholder)
	s = googleKeyPattern.ReplaceAllString(s, placeholder)
	s = oauthPattern.ReplaceAllString(s, placeholder)
	s = skKeyPattern.ReplaceAllString(s, placeholder)
	s = uuidPattern.ReplaceAllString(s, placeholder)
	return s
}

// Any walks decoded JSON values and masks values stored under secret keys.
func Any(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			if isSecretKey(key) {
				out[key] = placeholder
				continue
			}
			out[key] = Any(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, val := range typed {
			if isSecretKey(key) {
				out[key] = placeholder
				continue
			}
			out[key] = String(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = Any(val)
		}
		return out
	case string:
		return String(typed)
	default:
		return value
	}
}

// JSON redacts a raw JSON document. Undecodable input is treated as text.
func JSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return String(strings.TrimSpace(string(raw)))
	}
	return Any(payload)
}

// Error returns err's message redacted, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(fmt.Sprint(err))
}

func isSecretKey(key string) bool {
	return secretKeys[strings.ToLower(strings.TrimSpace(key))]
}
