package httptransport

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fracvault/internal/reclaim"
	"fracvault/pkg/platform/sentinel"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError centralizes domain error translation so every handler renders the
// same JSON envelope.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Printf("internal error: %v", err)
	}
	writeErrorMessage(w, status, err.Error())
}

func statusFor(err error) int {
	var rejected *reclaim.RejectedError
	switch {
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sentinel.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, reclaim.ErrProofUnavailable),
		errors.Is(err, reclaim.ErrWalletNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, reclaim.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, reclaim.ErrInvalidVaultState),
		errors.Is(err, reclaim.ErrNotEligible),
		errors.Is(err, reclaim.ErrEscrowPeriodActive):
		return http.StatusConflict
	case errors.Is(err, reclaim.ErrTransactionTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reclaim.ErrSubmissionFailed):
		return http.StatusBadGateway
	case errors.Is(err, reclaim.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
