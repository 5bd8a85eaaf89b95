package api

import (
	"net/http"

	"github.com/profilehub/mypts/internal/repos/hub"
)

func hubStateResponse(st hub.State) map[string]int64 {
	return map[string]int64{
		"totalSupply":       st.TotalSupply,
		"reserveSupply":     st.ReserveSupply,
		"circulatingSupply": st.CirculatingSupply,
	}
}

// HubStateHandler handles GET /hub
func (h *HandlerProvider) HubStateHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.supply.State(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hubStateResponse(st))
}

// HubLogHandler handles GET /hub/log
func (h *HandlerProvider) HubLogHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	entries, err := h.supply.Log(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(entries))

	for _, entry := range entries {
		out = append(out, map[string]any{
			"id":        entry.ID,
			"kind":      string(entry.Kind),
			"amount":    entry.Amount,
			"reason":    entry.Reason,
			"state":     hubStateResponse(entry.State),
			"createdAt": entry.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

type hubMutationRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// HubIssueHandler handles POST /hub/issue, the admin mint path.
func (h *HandlerProvider) HubIssueHandler(w http.ResponseWriter, r *http.Request) {
	var req hubMutationRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.supply.Issue(r.Context(), req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hubStateResponse(st))
}

// HubWithdrawHandler handles POST /hub/withdraw, moving circulating points
// back into the reserve.
func (h *HandlerProvider) HubWithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req hubMutationRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.supply.MoveToReserve(r.Context(), req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hubStateResponse(st))
}
