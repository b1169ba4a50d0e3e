package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// echoCaller writes the authenticated caller and the body it received.
var echoCaller = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("X-Caller", Caller(r.Context()))
	w.Write(body)
})

func signedRequest(t *testing.T, signer *crypto.Signer, method, path string, body []byte, ts time.Time) *http.Request {
	t.Helper()
	sig, err := signer.SignRequest(method, path, body, ts.Unix())
	require.NoError(t, err)
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	r.Header.Set(HeaderAddress, signer.Address())
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	r.Header.Set(HeaderSignature, sig)
	return r
}

func TestSignature(t *testing.T) {
	signer, err := crypto.NewSigner(testKey)
	require.NoError(t, err)
	now := time.Unix(1_760_000_000, 0)
	h := Signature(time.Minute, func() time.Time { return now }, nil)(echoCaller)
	body := []byte(`{"side":"a","value_in":"1000000"}`)

	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedRequest(t, signer, http.MethodPost, "/api/markets/g1/buy", body, now))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, signer.Address(), rec.Header().Get("X-Caller"))
		assert.Equal(t, string(body), rec.Body.String())
	})

	t.Run("replayed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedRequest(t, signer, http.MethodPost, "/api/markets/g1/buy", body, now))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"request already used","code":"unauthorized"}`, rec.Body.String())
	})

	t.Run("same request with a new timestamp", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedRequest(t, signer, http.MethodPost, "/api/markets/g1/buy", body, now.Add(time.Second)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedRequest(t, signer, http.MethodPost, "/api/markets/g1/buy", body, now.Add(-2*time.Minute)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "outside allowed window")
	})

	t.Run("different path", func(t *testing.T) {
		r := signedRequest(t, signer, http.MethodPost, "/api/markets/g1/buy", body, now)
		r.URL.Path = "/api/markets/g1/sell"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets/g1/buy", bytes.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"missing request signature","code":"unauthorized"}`, rec.Body.String())
	})

	t.Run("reads are anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Caller"))
	})
}

type failingGuard struct{}

func (failingGuard) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestSignatureReplayGuardDown(t *testing.T) {
	signer, err := crypto.NewSigner(testKey)
	require.NoError(t, err)
	now := time.Unix(1_760_000_000, 0)
	h := Signature(time.Minute, func() time.Time { return now }, failingGuard{})(echoCaller)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, signer, http.MethodPost, "/api/faucet", nil, now))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMemoryReplayGuard(t *testing.T) {
	g := NewMemoryReplayGuard()
	now := time.Unix(1_760_000_000, 0)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := g.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = g.Claim(ctx, "k", time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = g.Claim(ctx, "k", time.Minute)
	assert.True(t, ok, "expired keys can be claimed again")

	// Sweeps drop expired keys.
	now = now.Add(2 * time.Minute)
	for i := 0; i < sweepEvery; i++ {
		_, _ = g.Claim(ctx, strconv.Itoa(i), time.Second)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	assert.NotContains(t, g.seen, "k")
}

func TestTrustedCallerNormalizes(t *testing.T) {
	h := TrustedCaller()(echoCaller)
	r := httptest.NewRequest(http.MethodPost, "/api/faucet", nil)
	r.Header.Set(HeaderAddress, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", rec.Header().Get("X-Caller"))
}

func TestAPIKey(t *testing.T) {
	h := APIKey([]string{"k1", "k2"})(echoCaller)

	cases := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"bearer", "/api/markets", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK},
		{"header", "/api/markets", map[string]string{"X-API-Key": "k1"}, http.StatusOK},
		{"wrong key", "/api/markets", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"missing", "/api/markets", nil, http.StatusUnauthorized},
		{"health is open", "/api/health", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	APIKey(nil)(echoCaller).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingLimiter) Wait(context.Context, string) error { return nil }

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RateLimit(NewMemoryLimiter(2, time.Hour), 2, time.Hour, logger)(echoCaller)

	do := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		r.Header.Set(HeaderAddress, addr)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("0xAAA").Code)
	assert.Equal(t, http.StatusOK, do("0xaaa").Code)
	rec := do("0xAaA")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do("0xBBB").Code)

	open := RateLimit(failingLimiter{}, 1, time.Minute, logger)(echoCaller)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryLimiterWait(t *testing.T) {
	l := NewMemoryLimiter(1, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "k"))
	assert.Error(t, l.Wait(ctx, "k"))
}

func TestLoggingSetsRequestID(t *testing.T) {
	h := Logging(slog.New(slog.NewTextHandler(io.Discard, nil)))(echoCaller)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(echoCaller)
	r := httptest.NewRequest(http.MethodOptions, "/api/markets/g1/buy", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.Header.Set("Access-Control-Request-Headers", HeaderSignature)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
