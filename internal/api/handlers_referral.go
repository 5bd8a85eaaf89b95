package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// InitializeCodeHandler handles POST /referrals/{profileId}/code
func (h *HandlerProvider) InitializeCodeHandler(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profileId in path")
		return
	}

	code, err := h.referral.InitializeCode(r.Context(), profileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"profileId":    profileID,
		"referralCode": code,
	})
}

// ValidateCodeHandler handles GET /referrals/codes/{code}
func (h *HandlerProvider) ValidateCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code in path")
		return
	}

	profileID, ok, err := h.referral.ValidateCode(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if !ok {
		writeError(w, http.StatusNotFound, "unknown referral code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"profileId": profileID})
}

type referralRequest struct {
	ReferredProfileID string `json:"referredProfileId"`
	ReferrerProfileID string `json:"referrerProfileId"`
}

// ProcessReferralHandler handles POST /referrals
func (h *HandlerProvider) ProcessReferralHandler(w http.ResponseWriter, r *http.Request) {
	var req referralRequest

	err := decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ReferredProfileID == "" || req.ReferrerProfileID == "" {
		writeError(w, http.StatusBadRequest, "referredProfileId and referrerProfileId required")
		return
	}

	err = h.referral.ProcessReferral(r.Context(), req.ReferredProfileID, req.ReferrerProfileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReferralNodeHandler handles GET /referrals/{profileId}
func (h *HandlerProvider) ReferralNodeHandler(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseProfileID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profileId in path")
		return
	}

	node, err := h.referral.Node(r.Context(), profileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rewards, err := h.referral.Rewards(r.Context(), profileID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rewardsOut := make([]map[string]any, 0, len(rewards))

	for _, rw := range rewards {
		rewardsOut = append(rewardsOut, map[string]any{
			"kind":      rw.Kind,
			"amount":    rw.Amount,
			"status":    string(rw.Status),
			"createdAt": rw.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profileId":           node.ProfileID,
		"referralCode":        node.ReferralCode,
		"referredBy":          node.ReferredBy,
		"totalReferrals":      node.TotalReferrals,
		"successfulReferrals": node.SuccessfulReferrals,
		"milestoneLevel":      node.MilestoneLevel,
		"earnedPoints":        node.EarnedPoints,
		"pendingPoints":       node.PendingPoints,
		"rewards":             rewardsOut,
	})
}
