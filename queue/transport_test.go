package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_PostsSyncMutations(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotKey  string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.URL+"/", StaticToken("secret-token"))
	m := Mutation{
		ID:          uuid.New(),
		Kind:        KindSync,
		ProfileName: "work",
		Payload:     map[string]any{"view": "list"},
		FullSync:    true,
	}
	require.NoError(t, transport.Send(context.Background(), m))

	require.Equal(t, "/api/profiles", gotPath)
	require.Equal(t, "Bearer secret-token", gotAuth)
	require.Equal(t, m.ID.String(), gotKey)
	require.Equal(t, map[string]any{
		"profiles": map[string]any{"work": map[string]any{"view": "list"}},
		"fullSync": true,
	}, gotBody)
}

func TestHTTPTransport_PostsEveryProfileOfAFullSync(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewHTTPTransport(server.URL, nil).Send(context.Background(), Mutation{
		ID:   uuid.New(),
		Kind: KindSync,
		Profiles: map[string]map[string]any{
			"home": {"theme": "dark"},
			"work": {"view": "list"},
		},
		FullSync: true,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"profiles": map[string]any{
			"home": map[string]any{"theme": "dark"},
			"work": map[string]any{"view": "list"},
		},
		"fullSync": true,
	}, gotBody)
}

func TestHTTPTransport_PostsSaveMutations(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.URL, nil)
	err := transport.Send(context.Background(), Mutation{Kind: KindSave, Payload: map[string]any{"theme": "dark"}})
	require.NoError(t, err)
	require.Equal(t, "/api/profile", gotPath)
	require.Equal(t, map[string]any{"theme": "dark"}, gotBody)
}

func TestHTTPTransport_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
	}{
		{status: http.StatusServiceUnavailable, permanent: false},
		{status: http.StatusTooManyRequests, permanent: false},
		{status: http.StatusRequestTimeout, permanent: false},
		{status: http.StatusBadRequest, permanent: true},
		{status: http.StatusConflict, permanent: true},
		{status: http.StatusNotImplemented, permanent: true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			err := NewHTTPTransport(server.URL, nil).Send(context.Background(), Mutation{Kind: KindSave})
			require.Error(t, err)
			require.Equal(t, tc.permanent, errors.Is(err, ErrPermanent))

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			require.Equal(t, tc.status, statusErr.StatusCode)
			require.Equal(t, "nope", statusErr.Body)
		})
	}
}

func TestHTTPTransport_UnreachableServerIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewHTTPTransport(url, nil).Send(context.Background(), Mutation{Kind: KindSave})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrPermanent))
}

func TestHTTPTransport_UnknownKindIsPermanent(t *testing.T) {
	err := NewHTTPTransport("http://127.0.0.1:0", nil).Send(context.Background(), Mutation{Kind: "drop"})
	require.ErrorIs(t, err, ErrPermanent)
	require.ErrorIs(t, err, ErrUnknownKind)
}
