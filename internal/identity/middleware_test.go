package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareAttachesActor(t *testing.T) {
	want := uuid.New()

	var got uuid.UUID
	var ok bool
	handler := Middleware(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, ok = ActorID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, " "+want.String()+" ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestMiddlewareAnonymousWithoutHeader(t *testing.T) {
	var ok bool
	handler := Middleware(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, ok = ActorID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, ok)
}

func TestMiddlewareMalformedHeaderIsAnonymous(t *testing.T) {
	var ok bool
	handler := Middleware(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, ok = ActorID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "not-a-uuid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, ok)
}
