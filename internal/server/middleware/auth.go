package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/crypto"
	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// Request signing headers. The signature covers method, path, body and
// timestamp (see crypto.SignRequest).
const (
	HeaderAddress   = "X-SX-Address"
	HeaderTimestamp = "X-SX-Timestamp"
	HeaderSignature = "X-SX-Signature"
)

// maxSignedBody bounds the body read for signature checks.
const maxSignedBody = 1 << 20

type ctxKey int

const callerKey ctxKey = iota

// WithCaller returns ctx carrying the authenticated caller address.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// Caller returns the authenticated caller address, or "" for anonymous
// requests.
func Caller(ctx context.Context) string {
	s, _ := ctx.Value(callerKey).(string)
	return s
}

// APIKey returns middleware that validates API requests using either a Bearer
// token in the Authorization header or a static key in the X-API-Key header.
// If keys is empty, the middleware passes all requests through (disabled).
func APIKey(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 || r.URL.Path == "/api/health" {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			for _, k := range keys {
				// Constant-time comparison to prevent timing attacks.
				if subtle.ConstantTimeCompare([]byte(token), []byte(k)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeUnauthorized(w, "invalid authentication token")
		})
	}
}

// Signature returns middleware that authenticates mutating requests by the
// secp256k1 signature in the X-SX-* headers and stores the recovered address
// as the caller. Read-only requests pass through anonymously.
//
// Each signed request is accepted once: guard remembers it until its
// timestamp leaves the skew window. A nil guard uses a MemoryReplayGuard.
// Clients repeating an identical request must sign it with a new timestamp.
func Signature(maxSkew time.Duration, now func() time.Time, guard domain.ReplayGuard) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	if guard == nil {
		guard = NewMemoryReplayGuard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			signed, err := verifySignature(r, maxSkew, now())
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			// A timestamp stays acceptable for up to twice the skew.
			fresh, err := guard.Claim(r.Context(), signed.replayKey(), 2*maxSkew)
			if err != nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"replay check unavailable","code":"unavailable"}`))
				return
			}
			if !fresh {
				writeUnauthorized(w, "request already used")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), signed.caller)))
		})
	}
}

// TrustedCaller takes the caller from the X-SX-Address header without
// verification. It is meant for local development with signature auth off.
func TrustedCaller() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if addr := strings.TrimSpace(r.Header.Get(HeaderAddress)); addr != "" {
				if normalized := crypto.NormalizeAddress(addr); normalized != "" {
					addr = normalized
				}
				r = r.WithContext(WithCaller(r.Context(), addr))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// signedCall is what a verified signature covers.
type signedCall struct {
	caller string
	method string
	path   string
	ts     int64
	body   []byte
}

// replayKey digests the signed content rather than the signature bytes, so a
// re-encoded signature over the same request maps to the same key.
func (s signedCall) replayKey() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n%d\n", strings.ToLower(s.caller), s.method, s.path, s.ts)
	h.Write(s.body)
	return hex.EncodeToString(h.Sum(nil))
}

func verifySignature(r *http.Request, maxSkew time.Duration, now time.Time) (signedCall, error) {
	var out signedCall
	sig := r.Header.Get(HeaderSignature)
	tsRaw := r.Header.Get(HeaderTimestamp)
	if sig == "" || tsRaw == "" {
		return out, errors.New("missing request signature")
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return out, errors.New("invalid signature timestamp")
	}
	if skew := now.Sub(time.Unix(ts, 0)); skew > maxSkew || skew < -maxSkew {
		return out, errors.New("signature timestamp outside allowed window")
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
		if err != nil {
			return out, errors.New("unreadable request body")
		}
		if len(body) > maxSignedBody {
			return out, errors.New("request body too large")
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	addr, err := crypto.RecoverRequestSigner(r.Method, r.URL.Path, body, ts, sig)
	if err != nil {
		return out, errors.New("invalid request signature")
	}
	if claimed := r.Header.Get(HeaderAddress); claimed != "" && !strings.EqualFold(claimed, addr) {
		return out, errors.New("signature does not match address")
	}
	return signedCall{caller: addr, method: r.Method, path: r.URL.Path, ts: ts, body: body}, nil
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `","code":"unauthorized"}`))
}
