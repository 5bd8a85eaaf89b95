package api

import (
	"net/http"
)

// GetBalanceHandler handles GET /profiles/{profileId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profileId in path")
		return
	}

	acc, err := h.ledger.Account(r.Context(), profileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profileId":      acc.ProfileID,
		"balance":        acc.Balance,
		"lifetimeEarned": acc.LifetimeEarned,
		"lifetimeSpent":  acc.LifetimeSpent,
	})
}

// HistoryHandler handles GET /profiles/{profileId}/transactions
func (h *HandlerProvider) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profileId in path")
		return
	}

	limit, offset := parsePagination(r)

	var txns []txResponse

	if rawType := r.URL.Query().Get("type"); rawType != "" {
		txType, err := parseTxType(rawType)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid type")
			return
		}

		records, err := h.ledger.HistoryByType(r.Context(), profileID, txType, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		for _, txn := range records {
			txns = append(txns, toTxResponse(txn))
		}
	} else {
		records, err := h.ledger.History(r.Context(), profileID, limit, offset)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		for _, txn := range records {
			txns = append(txns, toTxResponse(txn))
		}
	}

	if txns == nil {
		txns = []txResponse{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

type mutationRequest struct {
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CreditHandler handles POST /profiles/{profileId}/credit
func (h *HandlerProvider) CreditHandler(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profileId in path")
		return
	}

	var req mutationRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txType, err := parseTxType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	txn, err := h.ledger.Credit(r.Context(), profileID, req.Amount, txType, req.Description, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTxResponse(txn))
}

// DebitHandler handles POST /profiles/{profileId}/debit
func (h *HandlerProvider) DebitHandler(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profileId in path")
		return
	}

	var req mutationRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txType, err := parseTxType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	txn, err := h.ledger.Debit(r.Context(), profileID, req.Amount, txType, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTxResponse(txn))
}

type transferRequest struct {
	FromProfileID string `json:"fromProfileId"`
	ToProfileID   string `json:"toProfileId"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
}

// TransferHandler handles POST /transfers
func (h *HandlerProvider) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.FromProfileID == "" || req.ToProfileID == "" {
		writeError(w, http.StatusBadRequest, "fromProfileId and toProfileId required")
		return
	}

	txn, err := h.transfer.Transfer(r.Context(), req.FromProfileID, req.ToProfileID, req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTxResponse(txn))
}

type purchaseRequest struct {
	ProfileID   string `json:"profileId"`
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"referenceId"`
}

// PurchaseHandler handles POST /purchases, the payment gateway webhook.
// Safe to deliver more than once for the same referenceId.
func (h *HandlerProvider) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "profileId required")
		return
	}

	txn, err := h.transfer.Purchase(r.Context(), req.ProfileID, req.Amount, req.ReferenceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTxResponse(txn))
}
