package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/profilehub/mypts/internal/repos/accounts"
	"github.com/profilehub/mypts/internal/repos/referrals"
	"github.com/profilehub/mypts/internal/repos/transactions"
	"github.com/profilehub/mypts/internal/services/ledger"
	"github.com/profilehub/mypts/internal/services/referral"
	"github.com/profilehub/mypts/internal/services/supply"
	"github.com/profilehub/mypts/internal/services/transfer"
)

// HandlerProvider wraps the core services and exposes HTTP handlers for the
// external collaborators: request handlers, the payment gateway webhook, and
// the admin/ops layer.
type HandlerProvider struct {
	ledger   *ledger.Service
	transfer *transfer.Service
	supply   *supply.Service
	referral *referral.Service
}

func NewHandler(l *ledger.Service, t *transfer.Service, s *supply.Service, r *referral.Service) *HandlerProvider {
	return &HandlerProvider{ledger: l, transfer: t, supply: s, referral: r}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)

		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error onto an HTTP status. Amount and
// balance errors are caller-actionable; hub invariant breaches are not.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, supply.ErrInvalidAmount),
		errors.Is(err, transfer.ErrSameAccount),
		errors.Is(err, transfer.ErrMissingReference):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, accounts.ErrAccountNotFound),
		errors.Is(err, referrals.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, accounts.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient balance")
	case errors.Is(err, supply.ErrInsufficientCirculatingSupply):
		writeError(w, http.StatusConflict, "insufficient circulating supply")
	case errors.Is(err, transactions.ErrDuplicateReference):
		writeError(w, http.StatusConflict, "duplicate reference")
	case errors.Is(err, supply.ErrConservationViolation),
		errors.Is(err, supply.ErrHubHalted):
		writeError(w, http.StatusServiceUnavailable, "supply hub unavailable")
	default:
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseProfileID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "profileId")
	if id == "" {
		return "", fmt.Errorf("missing profileId")
	}

	return id, nil
}

// decodeBody reads a size-capped JSON body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}

		return fmt.Errorf("invalid JSON")
	}

	return nil
}

var validTypes = map[transactions.Type]bool{
	transactions.TypeBuy:                   true,
	transactions.TypeSell:                  true,
	transactions.TypeWithdraw:              true,
	transactions.TypeEarn:                  true,
	transactions.TypeDonationSent:          true,
	transactions.TypeDonationReceived:      true,
	transactions.TypePurchaseProduct:       true,
	transactions.TypeReceiveProductPayment: true,
	transactions.TypeRefund:                true,
	transactions.TypeExpire:                true,
	transactions.TypeAdjustment:            true,
	transactions.TypeAdminWithdrawal:       true,
}

func parseTxType(s string) (transactions.Type, error) {
	t := transactions.Type(s)
	if !validTypes[t] {
		return "", fmt.Errorf("invalid transaction type")
	}

	return t, nil
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

type txResponse struct {
	ID                   uuid.UUID  `json:"id"`
	ProfileID            string     `json:"profileId"`
	Type                 string     `json:"type"`
	Amount               int64      `json:"amount"`
	BalanceAfter         int64      `json:"balanceAfter"`
	Status               string     `json:"status"`
	Description          string     `json:"description,omitempty"`
	ReferenceID          string     `json:"referenceId,omitempty"`
	RelatedTransactionID *uuid.UUID `json:"relatedTransactionId,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func toTxResponse(txn transactions.Transaction) txResponse {
	resp := txResponse{
		ID:           txn.ID,
		ProfileID:    txn.ProfileID,
		Type:         string(txn.Type),
		Amount:       txn.Amount,
		BalanceAfter: txn.BalanceAfter,
		Status:       string(txn.Status),
		Description:  txn.Description,
		ReferenceID:  txn.ReferenceID,
		CreatedAt:    txn.CreatedAt,
	}

	if txn.RelatedTransactionID.Valid {
		related := txn.RelatedTransactionID.UUID
		resp.RelatedTransactionID = &related
	}

	return resp
}
