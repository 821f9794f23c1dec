package auth

// Destination auth method kinds understood by the backend.
const (
	MethodHookdeckSignature = "HOOKDECK_SIGNATURE"
	MethodBasicAuth         = "BASIC_AUTH"
	MethodAPIKey            = "API_KEY"
	MethodBearerToken       = "BEARER_TOKEN"
	MethodCustomSignature   = "CUSTOM_SIGNATURE"
)

// DefaultMethod is applied by the backend when a destination is created without one.
const DefaultMethod = MethodHookdeckSignature

// DestinationAuthMethod describes how deliveries to a subscriber URL are authenticated.
type DestinationAuthMethod struct {
	Type   string                       `json:"type"`
	Config *DestinationAuthMethodConfig `json:"config,omitempty"`
}

// DestinationAuthMethodConfig carries the credential payload for a method.
type DestinationAuthMethodConfig struct {
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	Key           string `json:"key,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	To            string `json:"to,omitempty"`
	Token         string `json:"token,omitempty"`
	SigningSecret string `json:"signing_secret,omitempty"`
}

// HookdeckSignature returns the backend's native signature method.
func HookdeckSignature() *DestinationAuthMethod {
	return &DestinationAuthMethod{Type: MethodHookdeckSignature}
}

// DestinationBasicAuth returns a BASIC_AUTH method.
func DestinationBasicAuth(username, password string) *DestinationAuthMethod {
	return &DestinationAuthMethod{
		Type:   MethodBasicAuth,
		Config: &DestinationAuthMethodConfig{Username: username, Password: password},
	}
}

// DestinationAPIKey returns an API_KEY method sending apiKey under key.
// to is "header" or "query"; empty defaults to "header".
func DestinationAPIKey(key, apiKey, to string) *DestinationAuthMethod {
	if to == "" {
		to = "header"
	}
	return &DestinationAuthMethod{
		Type:   MethodAPIKey,
		Config: &DestinationAuthMethodConfig{Key: key, APIKey: apiKey, To: to},
	}
}

// DestinationBearerToken returns a BEARER_TOKEN method.
func DestinationBearerToken(token string) *DestinationAuthMethod {
	return &DestinationAuthMethod{
		Type:   MethodBearerToken,
		Config: &DestinationAuthMethodConfig{Token: token},
	}
}

// DestinationCustomSignature returns a CUSTOM_SIGNATURE method signing with secret under header key.
func DestinationCustomSignature(key, secret string) *DestinationAuthMethod {
	return &DestinationAuthMethod{
		Type:   MethodCustomSignature,
		Config: &DestinationAuthMethodConfig{Key: key, SigningSecret: secret},
	}
}
