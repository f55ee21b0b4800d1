package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestyPostsJSON(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	svc := NewResty(srv.URL)
	err := svc.Post(context.Background(), map[string]interface{}{"request_id": "r1", "frames": 5})
	require.NoError(t, err)

	assert.Equal(t, "r1", got["request_id"])
	assert.Equal(t, float64(5), got["frames"])
}

func TestRestyReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewResty(srv.URL).Post(context.Background(), map[string]interface{}{})
	assert.ErrorContains(t, err, "502")
}

func TestFakeRecords(t *testing.T) {
	svc := NewFake()
	require.NoError(t, svc.Post(context.Background(), map[string]interface{}{"a": 1}))
	assert.Len(t, svc.Payloads, 1)
}
