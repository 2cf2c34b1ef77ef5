package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	playvalidator "github.com/go-playground/validator/v10"

	"walletcore.com/internal/domain/entity"
	webhookauth "walletcore.com/internal/infrastructure/validator"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request body")

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw sends pre-encoded JSON untouched.
func writeRaw(w http.ResponseWriter, code int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func httpStatusForErr(err error) int {
	var validationErrs playvalidator.ValidationErrors
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, errMalformedBody),
		errors.As(err, &validationErrs),
		errors.Is(err, entity.ErrMissingUser),
		errors.Is(err, entity.ErrMissingCurrency),
		errors.Is(err, entity.ErrMissingAmount),
		errors.Is(err, entity.ErrMissingIdempotencyKey),
		errors.Is(err, entity.ErrInvalidAmount),
		errors.Is(err, entity.ErrUnsupportedCurrency),
		errors.Is(err, entity.ErrInvalidEnum):
		return http.StatusBadRequest
	case errors.Is(err, webhookauth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrCardNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, entity.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

func publicErrMessage(code int, err error) string {
	switch {
	case code == http.StatusServiceUnavailable:
		return "service temporarily unavailable, retry"
	case code >= 500:
		return "internal error"
	case code == http.StatusUnauthorized:
		return "unauthorized"
	case code == http.StatusPaymentRequired:
		return "insufficient_funds"
	}
	var validationErrs playvalidator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}
