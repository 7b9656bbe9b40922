package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, rawToken string) (*models.Claims, error) {
	args := m.Called(rawToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Claims), args.Error(1)
}

func newTestLogger() *logger.Logger {
	return logger.NewLoggerWithWriter(nil)
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Token abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "bearer abc")
	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestHS256VerifierRoundTrip(t *testing.T) {
	v, err := NewHS256Verifier("secret")
	require.NoError(t, err)

	token, err := v.Sign(models.Claims{Subject: "owner-a", Name: "Ana", Email: "ana@example.com"}, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", claims.Subject)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, "ana@example.com", claims.Email)

	sub, err := ExtractUserIDFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", sub)
}

func TestHS256VerifierRejectsBadTokens(t *testing.T) {
	v, _ := NewHS256Verifier("secret")
	other, _ := NewHS256Verifier("other-secret")

	forged, err := other.Sign(models.Claims{Subject: "owner-a"}, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), forged)
	assert.Error(t, err)

	expired, err := v.Sign(models.Claims{Subject: "owner-a"}, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.Error(t, err)

	_, err = NewHS256Verifier("")
	assert.Error(t, err)
}

func TestMiddlewareInjectsUserID(t *testing.T) {
	verifier := new(MockVerifier)
	verifier.On("Verify", "good").Return(&models.Claims{Subject: "owner-a", Email: "a@example.com"}, nil)
	verifier.On("Verify", "bad").Return(nil, errors.New("signature mismatch"))

	var seen string
	var seenClaims models.Claims
	h := Middleware(verifier, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		seenClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "owner-a", seen)
	assert.Equal(t, "a@example.com", seenClaims.Email)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserIDEmptyWithoutIdentity(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
	assert.Equal(t, "owner-b", UserID(WithUserID(context.Background(), "owner-b")))
}

func TestCachingVerifierHitsNextOnce(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	next := new(MockVerifier)
	next.On("Verify", "tok").Return(&models.Claims{Subject: "owner-a"}, nil).Once()

	c := NewCachingVerifier(next, client, time.Minute, newTestLogger())

	for i := 0; i < 3; i++ {
		claims, err := c.Verify(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "owner-a", claims.Subject)
	}
	next.AssertNumberOfCalls(t, "Verify", 1)

	mr.FastForward(2 * time.Minute)
	next.On("Verify", "tok").Return(&models.Claims{Subject: "owner-a"}, nil).Once()
	_, err = c.Verify(context.Background(), "tok")
	require.NoError(t, err)
	next.AssertNumberOfCalls(t, "Verify", 2)
}

func TestCachingVerifierDoesNotCacheFailures(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	next := new(MockVerifier)
	next.On("Verify", "bad").Return(nil, errors.New("nope"))

	c := NewCachingVerifier(next, client, time.Minute, newTestLogger())
	_, err = c.Verify(context.Background(), "bad")
	assert.Error(t, err)
	_, err = c.Verify(context.Background(), "bad")
	assert.Error(t, err)
	next.AssertNumberOfCalls(t, "Verify", 2)
	assert.Empty(t, mr.Keys())
}

func TestCachingVerifierSharesConcurrentMisses(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	next := new(MockVerifier)
	next.On("Verify", "tok").Return(&models.Claims{Subject: "owner-a"}, nil).After(50 * time.Millisecond).Once()

	c := NewCachingVerifier(next, client, time.Minute, newTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims, err := c.Verify(context.Background(), "tok")
			assert.NoError(t, err)
			if assert.NotNil(t, claims) {
				assert.Equal(t, "owner-a", claims.Subject)
			}
		}()
	}
	wg.Wait()
	next.AssertNumberOfCalls(t, "Verify", 1)
}

func TestOptionalMiddleware(t *testing.T) {
	verifier := new(MockVerifier)
	verifier.On("Verify", "good").Return(&models.Claims{Subject: "owner-a"}, nil)
	verifier.On("Verify", "bad").Return(nil, errors.New("expired"))

	var seen string
	h := OptionalMiddleware(verifier, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	for token, want := range map[string]string{"good": "owner-a", "bad": "", "": ""} {
		seen = "unset"
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, seen, "token %q", token)
	}
}
