package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roamline/trip-api/internal/core"
	"github.com/roamline/trip-api/internal/mocks"
)

func sessionEcho(t *testing.T, sessions core.SessionStore) http.Handler {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", userID)
		w.WriteHeader(http.StatusOK)
	})
	return RequireSession(sessions, slog.Default())(inner)
}

func TestRequireSession_BearerToken(t *testing.T) {
	sessions := mocks.NewMockSessionStore(gomock.NewController(t))
	sessions.EXPECT().UserID(gomock.Any(), "abc").Return("user-1", nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	sessionEcho(t, sessions).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Header().Get("X-User"))
}

func TestRequireSession_Cookie(t *testing.T) {
	sessions := mocks.NewMockSessionStore(gomock.NewController(t))
	sessions.EXPECT().UserID(gomock.Any(), "cookie-token").Return("user-2", nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	rec := httptest.NewRecorder()
	sessionEcho(t, sessions).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-2", rec.Header().Get("X-User"))
}

func TestRequireSession_HeaderWinsOverCookie(t *testing.T) {
	sessions := mocks.NewMockSessionStore(gomock.NewController(t))
	sessions.EXPECT().UserID(gomock.Any(), "header-token").Return("user-3", nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	rec := httptest.NewRecorder()
	sessionEcho(t, sessions).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-3", rec.Header().Get("X-User"))
}

func TestRequireSession_NoToken(t *testing.T) {
	sessions := mocks.NewMockSessionStore(gomock.NewController(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sessionEcho(t, sessions).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSession_StoreFailure(t *testing.T) {
	sessions := mocks.NewMockSessionStore(gomock.NewController(t))
	sessions.EXPECT().UserID(gomock.Any(), "abc").Return("", errors.New("redis down"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	sessionEcho(t, sessions).ServeHTTP(rec, req)

	// Backend failures read as unauthorized to the client.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := Recover(slog.Default())(panicky)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
