package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/server/middleware"
	"github.com/alanyoungcy/sportsxchange/internal/service"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error","code":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// errorStatus maps domain errors to a status and a stable code. Order
// matters: the first match wins.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrInvalidSide, http.StatusBadRequest, "invalid_side"},
	{domain.ErrInvalidMarket, http.StatusBadRequest, "invalid_market"},
	{domain.ErrInvalidCurve, http.StatusBadRequest, "invalid_curve"},
	{domain.ErrSlippageExceeded, http.StatusUnprocessableEntity, "slippage_exceeded"},
	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{domain.ErrInsufficientSupply, http.StatusUnprocessableEntity, "insufficient_supply"},
	{domain.ErrInsufficientPoolValue, http.StatusUnprocessableEntity, "insufficient_pool_value"},
	{domain.ErrNoWinningTokens, http.StatusUnprocessableEntity, "no_winning_tokens"},
	{domain.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{domain.ErrTradingHalted, http.StatusConflict, "trading_halted"},
	{domain.ErrTradingNotHalted, http.StatusConflict, "trading_not_halted"},
	{domain.ErrAlreadyHalted, http.StatusConflict, "already_halted"},
	{domain.ErrAlreadyResolved, http.StatusConflict, "already_resolved"},
	{domain.ErrMarketNotResolved, http.StatusConflict, "market_not_resolved"},
	{domain.ErrNoWinner, http.StatusConflict, "no_winner"},
	{domain.ErrMarketNotActive, http.StatusConflict, "market_not_active"},
	{domain.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
	{domain.ErrWrongMarketKind, http.StatusConflict, "wrong_market_kind"},
	{domain.ErrLockHeld, http.StatusServiceUnavailable, "market_busy"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// writeDomainError translates err into a response. Unknown errors are logged
// and reported as 500 without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.status == http.StatusServiceUnavailable || e.status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "1")
			}
			writeError(w, e.status, e.code, e.err.Error())
			return
		}
	}
	logger.ErrorContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal", "failed to "+op)
}

// decodeBody reads a JSON body into dst and validates its struct tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request", "request body is empty")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), rule))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// requireCaller returns the authenticated caller or writes a 401.
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := middleware.Caller(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "request is not signed")
		return "", false
	}
	return caller, true
}

// parseListOpts extracts standard pagination parameters from the query string.
// since and until accept RFC 3339 timestamps.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	var opts domain.ListOpts

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid offset %q", v)
		}
		opts.Offset = n
	}
	for name, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return opts, fmt.Errorf("invalid %s %q", name, v)
			}
			*dst = &t
		}
	}
	return service.ClampPage(opts), nil
}

// parseSide reads a side from the query string.
func parseSide(r *http.Request) (domain.Side, error) {
	return domain.ParseSide(r.URL.Query().Get("side"))
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
