// Package auth holds the authentication policies used by channels and subscriptions.
//
// Two independent policies exist:
//   - VerificationConfig describes how a Source verifies inbound requests. The same
//     value drives the headers a Channel attaches when publishing.
//   - DestinationAuthMethod describes how the backend authenticates its deliveries
//     to a subscriber URL.
package auth

import (
	"encoding/base64"
	"strings"
)

// Inbound verification kinds accepted for publishing.
const (
	KindAPIKey    = "api_key"
	KindBasicAuth = "basic_auth"
)

// KindNone is reported for a Source with no verification set.
const KindNone = "none"

// DefaultAPIKeyHeader is used when an api_key verification names no header.
const DefaultAPIKeyHeader = "Authorization"

// VerificationConfig is the inbound verification set on a Source.
// A nil *VerificationConfig means no verification.
type VerificationConfig struct {
	Type    string               `json:"type"`
	Configs *VerificationConfigs `json:"configs,omitempty"`
}

// VerificationConfigs carries the credential payload for a verification kind.
type VerificationConfigs struct {
	HeaderKey string `json:"header_key,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
}

// APIKey returns an api_key verification. An empty headerKey means DefaultAPIKeyHeader.
func APIKey(headerKey, key string) *VerificationConfig {
	return &VerificationConfig{
		Type:    KindAPIKey,
		Configs: &VerificationConfigs{HeaderKey: headerKey, APIKey: key},
	}
}

// BasicAuth returns a basic_auth verification.
func BasicAuth(username, password string) *VerificationConfig {
	return &VerificationConfig{
		Type:    KindBasicAuth,
		Configs: &VerificationConfigs{Username: username, Password: password},
	}
}

// Kind returns the verification type, or KindNone for nil.
func (v *VerificationConfig) Kind() string {
	if v == nil || v.Type == "" {
		return KindNone
	}
	return v.Type
}

// BuildInboundVerification returns the verification to store on a Source for the
// configured publish auth. It is an identity transform returning a copy.
func BuildInboundVerification(v *VerificationConfig) *VerificationConfig {
	if v == nil {
		return nil
	}
	out := &VerificationConfig{Type: v.Type}
	if v.Configs != nil {
		configs := *v.Configs
		out.Configs = &configs
	}
	return out
}

// PublishHeaders returns a copy of base with the credentials required by v applied.
// Only the exact kinds KindAPIKey and KindBasicAuth inject headers.
func PublishHeaders(v *VerificationConfig, base map[string]string) map[string]string {
	headers := make(map[string]string, len(base)+1)
	for k, val := range base {
		headers[k] = val
	}
	if v == nil {
		return headers
	}

	var configs VerificationConfigs
	if v.Configs != nil {
		configs = *v.Configs
	}

	switch v.Type {
	case KindAPIKey:
		header := configs.HeaderKey
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		headers[header] = configs.APIKey
	case KindBasicAuth:
		token := base64.StdEncoding.EncodeToString([]byte(configs.Username + ":" + configs.Password))
		headers["Authorization"] = "Basic " + token
	}
	return headers
}

// KindsMatch reports whether a and b have the same type, compared case-insensitively.
// Credential payloads are ignored. A nil config only matches another nil config.
func KindsMatch(a, b *VerificationConfig) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.EqualFold(a.Type, b.Type)
}
