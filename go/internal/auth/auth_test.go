package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestIssueAndParse(t *testing.T) {
	token, err := Issue(secret, Identity{UserID: "u1", Team: "A", Admin: true}, time.Hour)
	require.NoError(t, err)

	id, err := Parse(secret, token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Team: "A", Admin: true}, id)
}

func TestParse_Rejects(t *testing.T) {
	good, err := Issue(secret, Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Team: "A"}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret []byte
		token  string
	}{
		{"wrong secret", []byte("other"), good},
		{"expired", secret, expired},
		{"no subject", secret, noSubject},
		{"garbage", secret, "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssue_EmptySecret(t *testing.T) {
	_, err := Issue(nil, Identity{UserID: "u1"}, 0)
	assert.Error(t, err)
}

func TestIdentity_CanActFor(t *testing.T) {
	assert.True(t, Identity{Admin: true}.CanActFor("A"))
	assert.True(t, Identity{Team: "A"}.CanActFor("A"))
	assert.False(t, Identity{Team: "A"}.CanActFor("B"))
	assert.False(t, Identity{}.CanActFor(""))
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(id.UserID + "/" + id.Team))
	})
}

func TestMiddleware(t *testing.T) {
	token, err := Issue(secret, Identity{UserID: "u1", Team: "A"}, time.Hour)
	require.NoError(t, err)
	h := Middleware(secret, false)(echoIdentity())

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1/A", rec.Body.String())
	})

	t.Run("query param", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"missing token","code":"UNAUTHENTICATED"}`, rec.Body.String())
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Middleware(nil, true)(echoIdentity()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous/", rec.Body.String())
	})
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(echoIdentity())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	h.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), Identity{UserID: "u1", Team: "A"})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), Identity{UserID: "boss", Admin: true})))
	assert.Equal(t, http.StatusOK, rec.Code)
}
