package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smallbiznis-referral/pkg/config"

	"github.com/stretchr/testify/require"
)

func newConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.SMS.BaseURL = url
	cfg.SMS.APIKey = "key"
	cfg.SMS.From = "ACME"
	cfg.SMS.Timeout = 2 * time.Second
	return cfg
}

func TestSendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "ACME", req.From)
		require.Equal(t, "+15550001", req.To)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sm_1","status":"delivered"}`))
	}))
	defer srv.Close()

	res, err := New(newConfig(srv.URL)).Send(context.Background(), "+15550001", "hello")
	require.NoError(t, err)
	require.Equal(t, "sm_1", res.MessageID)
	require.True(t, res.Delivered)
}

func TestSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid number"}`))
	}))
	defer srv.Close()

	_, err := New(newConfig(srv.URL)).Send(context.Background(), "bad", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid number")
}

func TestSendNotConfigured(t *testing.T) {
	_, err := New(newConfig("")).Send(context.Background(), "+1", "x")
	require.ErrorIs(t, err, ErrNotConfigured)
}
