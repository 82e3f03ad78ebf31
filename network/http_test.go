package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHttp_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/net_info":
			w.Write([]byte(`{"result":{"peers":[]}}`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h := NewHttp()

	bz, err := h.Get(context.Background(), srv.URL+"/net_info")
	require.Nil(t, err)
	require.Equal(t, `{"result":{"peers":[]}}`, string(bz))

	_, err = h.Get(context.Background(), srv.URL+"/missing")
	require.NotNil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Get(ctx, srv.URL+"/slow")
	require.NotNil(t, err)
}
