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
	"github.com/pilab-dev/stepauth/domain"
)

func TestAuthyClient_RegisterUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/protected/json/users/new", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get(apiKeyHeader))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice@example.com", r.PostForm.Get("user[email]"))
		assert.Equal(t, "1", r.PostForm.Get("user[country_code]"))
		assert.Equal(t, "5551234567", r.PostForm.Get("user[cellphone]"))

		w.Write([]byte(`{"user":{"id":209}, "success":true}`))
	}))
	defer srv.Close()

	client := NewAuthyClient(srv.URL, "test-key", nil)
	id, err := client.RegisterUser(context.Background(), "alice@example.com", "1", "5551234567")
	require.NoError(t, err)
	assert.Equal(t, "209", id)
}

func TestAuthyClient_SendOTP(t *testing.T) {
	tests := []struct {
		name     string
		channel  OTPChannel
		wantPath string
	}{
		{"sms channel", ChannelSMS, "/protected/json/sms/209"},
		{"voice channel", ChannelVoice, "/protected/json/call/209"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, "true", r.URL.Query().Get("force"))
				w.Write([]byte(`{"success":true,"message":"SMS token was sent"}`))
			}))
			defer srv.Close()

			client := NewAuthyClient(srv.URL, "test-key", nil)
			res, err := client.SendOTP(context.Background(), "209", tt.channel, true)
			require.NoError(t, err)
			assert.True(t, res.Success)
		})
	}
}

func TestAuthyClient_VerifyOTP(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/protected/json/verify/000111/209", r.URL.Path)
			// Authy encodes success as the string "true" on this endpoint.
			w.Write([]byte(`{"success":"true","message":"Token is valid."}`))
		}))
		defer srv.Close()

		client := NewAuthyClient(srv.URL, "test-key", nil)
		res, err := client.VerifyOTP(context.Background(), "209", "000111")
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("provider error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewAuthyClient(srv.URL, "test-key", nil)
		_, err := client.VerifyOTP(context.Background(), "209", "000111")
		require.Error(t, err)
		assert.True(t, errors.Is(err, stepauth.ErrProviderUnavailable))
	})
}

func TestAuthyClient_CreateApprovalRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/onetouch/json/users/209/approval_requests", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "120", r.PostForm.Get("seconds_to_expire"))
		assert.Equal(t, "Login requested for Account Security account.", r.PostForm.Get("message"))
		assert.Equal(t, "alice", r.PostForm.Get("details[Username]"))
		assert.NotEmpty(t, r.PostForm.Get("hidden_details[ip_address]"))

		w.Write([]byte(`{"approval_request":{"uuid":"abc-123"},"success":true}`))
	}))
	defer srv.Close()

	client := NewAuthyClient(srv.URL, "test-key", nil)
	uuid, err := client.CreateApprovalRequest(context.Background(), "209", ApprovalDetails{
		Visible: map[string]string{"Username": "alice"},
		Hidden:  map[string]string{"ip_address": "203.0.113.7"},
		Message: "Login requested for Account Security account.",
	}, 120)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", uuid)
}

func TestAuthyClient_ApprovalStatus(t *testing.T) {
	tests := []struct {
		body string
		want domain.ApprovalStatus
	}{
		{`{"approval_request":{"uuid":"abc-123","status":"pending"}}`, domain.ApprovalPending},
		{`{"approval_request":{"uuid":"abc-123","status":"approved"}}`, domain.ApprovalApproved},
		{`{"approval_request":{"uuid":"abc-123","status":"denied"}}`, domain.ApprovalDenied},
		{`{"approval_request":{"uuid":"abc-123","status":"expired"}}`, domain.ApprovalExpired},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/onetouch/json/approval_requests/abc-123", r.URL.Path)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewAuthyClient(srv.URL, "test-key", nil)
			status, err := client.ApprovalStatus(context.Background(), "abc-123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}

	t.Run("unknown status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"approval_request":{"uuid":"abc-123","status":"weird"}}`))
		}))
		defer srv.Close()

		client := NewAuthyClient(srv.URL, "test-key", nil)
		_, err := client.ApprovalStatus(context.Background(), "abc-123")
		assert.True(t, errors.Is(err, stepauth.ErrProviderUnavailable))
	})
}
