package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sports-academy-api/pkg/config"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	client, err := NewClient(config.NotifierConfig{APIURL: url, Token: "token", SenderID: "12345", MaxRetries: retries}, nil)
	require.NoError(t, err)
	client.initial = time.Millisecond
	return client
}

func TestClientSendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		var req sendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "919876543210", req.To)
		assert.Equal(t, "Hi Asha", req.Text.Body)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL, 0).Send(context.Background(), Message{To: "+91 98765-43210", Body: "Hi Asha", Type: TypeGeneral})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "wamid.1", res.MessageID)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.2"}]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL, 3).Send(context.Background(), Message{To: "911", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", res.MessageID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Send(context.Background(), Message{To: "911", Body: "x"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid recipient", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.NotifierConfig{}, nil)
	require.Error(t, err)
}

func TestConsoleSender(t *testing.T) {
	s := NewConsoleSender(nil)
	res, err := s.Send(context.Background(), Message{To: "+91", Body: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, s.Sent(), 1)

	_, err = s.Send(context.Background(), Message{Body: "no recipient"})
	require.Error(t, err)
}
