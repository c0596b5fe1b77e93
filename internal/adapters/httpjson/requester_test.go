package httpjson

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequesterSetsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRequester("secret", 0)
	req, err := r.NewRequest(context.Background(), http.MethodPost, srv.URL, strings.NewReader("{}"))
	require.NoError(t, err)

	resp, err := r.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "secret", got.Get("Authorization"))
	require.Equal(t, UserAgent, got.Get("User-Agent"))
	require.Equal(t, "application/json", got.Get("Content-Type"))
	require.Equal(t, "application/json", got.Get("Accept"))
}

func TestRequesterReturnsStatusError(t *testing.T) {
	tests := []struct {
		code      int
		temporary bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, " upstream says no ", tt.code)
			}))
			defer srv.Close()

			r := NewRequester("", 0)
			req, err := r.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
			require.Empty(t, req.Header.Get("Authorization"))
			require.Empty(t, req.Header.Get("Content-Type"))

			_, err = r.Do(req)
			var se *StatusError
			require.True(t, errors.As(err, &se))
			require.Equal(t, tt.code, se.Code)
			require.Equal(t, "upstream says no", se.Body)
			require.Equal(t, tt.temporary, se.Temporary())
		})
	}
}
