package linkcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckFallsBackToGet(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		switch {
		case r.URL.Path == "/no-head" && r.Method == http.MethodHead:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.URL.Path == "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := New()

	res := c.Check(context.Background(), srv.URL+"/no-head")
	require.True(t, res.Reachable)
	require.Equal(t, http.MethodGet, res.Method)
	require.Equal(t, []string{http.MethodHead, http.MethodGet}, methods)

	res = c.Check(context.Background(), srv.URL+"/missing")
	require.False(t, res.Reachable)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, http.MethodHead, res.Method)
}

func TestCheckAllKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/bad", srv.URL + "/c", "http://127.0.0.1:1/unreachable"}
	out := New().CheckAll(context.Background(), urls)
	require.Len(t, out, 4)
	for i, u := range urls {
		require.Equal(t, u, out[i].URL)
	}
	require.True(t, out[0].Reachable)
	require.False(t, out[1].Reachable)
	require.True(t, out[2].Reachable)
	require.False(t, out[3].Reachable)
	require.NotEmpty(t, out[3].Error)
}
