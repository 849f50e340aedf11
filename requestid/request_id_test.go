package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	// create a request ID
	requestID := uuid.NewString()
	ctx := NewContext(context.Background(), requestID)
	assert.Equal(t, requestID, FromContext(ctx))
	assert.Empty(t, FromContext(context.Background()))
}

func TestTransport(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(XRequestIDHeader))
	}))
	defer srv.Close()
	client := &http.Client{Transport: Transport(nil)}

	epoch := uuid.NewString()
	req, err := http.NewRequestWithContext(NewContext(context.Background(), epoch), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Empty(t, req.Header.Get(XRequestIDHeader))

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(XRequestIDHeader, "fixed")
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Len(t, seen, 3)
	assert.Equal(t, epoch, seen[0])
	_, err = uuid.Parse(seen[1])
	assert.NoError(t, err)
	assert.Equal(t, "fixed", seen[2])
}
