package ratelimit

import (
	"encoding/json"
	"net/http"

	"admission-gateway/middleware/ratelimit/domain"
)

type errorBody struct {
	Success    bool        `json:"success"`
	Error      errorDetail `json:"error"`
	RetryAfter int         `json:"retryAfter"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor traduz o motivo da negação: ban/lockout → 403, cota/burst → 429.
func StatusFor(reason domain.Reason) int {
	if reason.Forbidden() {
		return http.StatusForbidden
	}
	return http.StatusTooManyRequests
}

// setRateLimitHeaders escreve a cota do sujeito. Reset "0" indica bloqueio
// sem expiração (ban).
func setRateLimitHeaders(h http.Header, dec domain.Decision) {
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	h.Set("X-RateLimit-Reset", epochMillis(dec.ResetAt))
}

func writeDenied(w http.ResponseWriter, dec domain.Decision) {
	secs := retryAfterSeconds(dec.RetryAfter)
	if secs > 0 {
		w.Header().Set("Retry-After", formatInt(secs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(dec.Reason))
	_ = json.NewEncoder(w).Encode(errorBody{
		Success: false,
		Error: errorDetail{
			Code:    string(dec.Reason),
			Message: dec.Reason.Message(),
		},
		RetryAfter: secs,
	})
}
