package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishHeadersAPIKey(t *testing.T) {
	base := map[string]string{"Content-Type": "application/json"}

	headers := PublishHeaders(APIKey("x-api-key", "secret"), base)

	assert.Equal(t, "secret", headers["x-api-key"])
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.NotContains(t, base, "x-api-key", "base headers must not be mutated")
}

func TestPublishHeadersAPIKeyDefaultsToAuthorization(t *testing.T) {
	headers := PublishHeaders(APIKey("", "secret"), nil)
	assert.Equal(t, map[string]string{"Authorization": "secret"}, headers)
}

func TestPublishHeadersBasicAuth(t *testing.T) {
	headers := PublishHeaders(BasicAuth("user", "pass"), nil)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	assert.Equal(t, want, headers["Authorization"])
}

func TestPublishHeadersPassThrough(t *testing.T) {
	base := map[string]string{"X-Trace": "1"}

	assert.Equal(t, base, PublishHeaders(nil, base))
	// tag matching is exact, so an upper-case kind injects nothing
	assert.Equal(t, base, PublishHeaders(&VerificationConfig{Type: "API_KEY", Configs: &VerificationConfigs{APIKey: "k"}}, base))
}

func TestKindsMatch(t *testing.T) {
	cases := []struct {
		name string
		a, b *VerificationConfig
		want bool
	}{
		{"same kind", APIKey("a", "1"), APIKey("b", "2"), true},
		{"case insensitive", &VerificationConfig{Type: "API_KEY"}, APIKey("", ""), true},
		{"different kind", APIKey("", "k"), BasicAuth("u", "p"), false},
		{"nil vs set", nil, BasicAuth("u", "p"), false},
		{"both nil", nil, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindsMatch(tc.a, tc.b))
		})
	}
}

func TestBuildInboundVerificationCopies(t *testing.T) {
	in := BasicAuth("u", "p")

	out := BuildInboundVerification(in)
	require.NotNil(t, out)
	assert.Equal(t, in, out)

	out.Configs.Password = "changed"
	assert.Equal(t, "p", in.Configs.Password)
	assert.Nil(t, BuildInboundVerification(nil))
}

func TestKind(t *testing.T) {
	var v *VerificationConfig
	assert.Equal(t, KindNone, v.Kind())
	assert.Equal(t, KindBasicAuth, BasicAuth("", "").Kind())
}
