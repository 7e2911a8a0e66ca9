package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

// encodable is implemented by response types with a hand-written jx encoder.
// The evaluation endpoints sit on the checkout hot path and skip reflection.
type encodable interface {
	Encode(e *jx.Encoder)
}

// writeEncodable writes a jx-encoded JSON response.
func writeEncodable(w http.ResponseWriter, status int, v encodable) {
	e := &jx.Encoder{}
	v.Encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeJSON writes a reflection-encoded JSON response for the admin surface.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeError maps a domain error onto the HTTP taxonomy: validation errors
// are 400, unknown entities 404, conflicts (duplicates, invalid transitions,
// exhausted caps, in-use deletions) 409, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var (
		promoValidation  *promotion.ValidationError
		couponValidation *coupon.ValidationError
		transition       *promotion.InvalidTransitionError
		rejection        *coupon.RejectionError
	)

	switch {
	case errors.As(err, &promoValidation),
		errors.As(err, &couponValidation),
		errors.Is(err, coupon.ErrBatchTooLarge):
		status = http.StatusBadRequest
		message = err.Error()

	case errors.Is(err, promotion.ErrNotFound), errors.Is(err, coupon.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()

	case errors.As(err, &transition),
		errors.Is(err, promotion.ErrInUse),
		errors.Is(err, coupon.ErrDuplicateCode),
		errors.Is(err, promotion.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrLimitReached):
		status = http.StatusConflict
		message = err.Error()

	case errors.As(err, &rejection):
		status = http.StatusUnprocessableEntity
		message = rejection.Reason.Message()
	}

	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeBadRequest reports a malformed request body.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: message})
}
