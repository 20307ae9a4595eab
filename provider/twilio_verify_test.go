package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stepauth "github.com/pilab-dev/stepauth"
)

func TestTwilioVerifyClient_RequestVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/Services/VA123/Verifications", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "api-key", user)
		assert.Equal(t, "api-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.PostForm.Get("To"))
		assert.Equal(t, "sms", r.PostForm.Get("Channel"))

		w.Write([]byte(`{"sid":"VE7f3","status":"pending"}`))
	}))
	defer srv.Close()

	client := NewTwilioVerifyClient(srv.URL, "VA123", "api-key", "api-secret", nil)
	sid, err := client.RequestVerification(context.Background(), "+15551234567", "sms")
	require.NoError(t, err)
	assert.Equal(t, "VE7f3", sid)
}

func TestTwilioVerifyClient_ConfirmVerification(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/Services/VA123/VerificationCheck", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "12345", r.PostForm.Get("Code"))
			w.Write([]byte(`{"sid":"VE7f3","status":"approved"}`))
		}))
		defer srv.Close()

		client := NewTwilioVerifyClient(srv.URL, "VA123", "api-key", "api-secret", nil)
		status, err := client.ConfirmVerification(context.Background(), "+15551234567", "12345")
		require.NoError(t, err)
		assert.Equal(t, "approved", status)
	})

	t.Run("provider outage", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewTwilioVerifyClient(srv.URL, "VA123", "api-key", "api-secret", nil)
		_, err := client.ConfirmVerification(context.Background(), "+15551234567", "12345")
		assert.True(t, errors.Is(err, stepauth.ErrProviderUnavailable))
	})
}
