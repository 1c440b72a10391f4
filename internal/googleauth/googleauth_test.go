package googleauth

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"avatarpipe/internal/config"
	"avatarpipe/internal/pkg/errors"
)

func TestHTTPClientRequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Google
		key  string
	}{
		{"client id", config.Google{}, "GOOGLE_CLIENT_ID"},
		{"secret", config.Google{ClientID: "id"}, "GOOGLE_CLIENT_SECRET"},
		{"refresh token", config.Google{ClientID: "id", ClientSecret: "s"}, "GOOGLE_REFRESH_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HTTPClient(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
			assert.Equal(t, tt.key, errors.GetFields(err)["key"])
		})
	}

	c, err := HTTPClient(context.Background(), config.Google{ClientID: "id", ClientSecret: "s", RefreshToken: "r"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestOAuthConfigScopes(t *testing.T) {
	c := OAuthConfig(config.Google{ClientID: "id"}, "http://127.0.0.1:1/callback")
	assert.Len(t, c.Scopes, 4)
	assert.Equal(t, "http://127.0.0.1:1/callback", c.RedirectURL)
}

func TestAPIError(t *testing.T) {
	rejected := APIError(&googleapi.Error{Code: http.StatusForbidden, Message: "insufficient scope"}, "google-sheets", "sheets.append", "append row")
	assert.True(t, errors.IsCode(rejected, errors.CodeVendorRejection))
	assert.Equal(t, http.StatusForbidden, errors.GetFields(rejected)["status"])
	assert.Equal(t, http.StatusForbidden, StatusCode(rejected))

	transport := APIError(fmt.Errorf("connection reset by peer"), "google-sheets", "sheets.append", "append row")
	assert.True(t, errors.IsTransient(transport))
	assert.Zero(t, StatusCode(transport))

	assert.NoError(t, APIError(nil, "x", "op", "msg"))
}
