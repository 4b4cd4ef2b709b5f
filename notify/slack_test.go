package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlack_PostsPrefixedText(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second)
	require.IsType(t, &Slack{}, n)
	require.NoError(t, n.Send(context.Background(), "paused: volatility"))
	assert.Equal(t, "🤖 Captain Grid Bot\npaused: volatility", got["text"])
}

func TestSlack_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlack(srv.URL, time.Second).Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	assert.NotPanics(t, func() { BestEffort(context.Background(), NewSlack(srv.URL, time.Second), "hi") })
}

func TestNew_EmptyWebhookIsNop(t *testing.T) {
	n := New("", time.Second)
	assert.Equal(t, Nop{}, n)
	assert.NoError(t, n.Send(context.Background(), "ignored"))
	assert.NotPanics(t, func() { BestEffort(context.Background(), nil, "ignored") })
}
