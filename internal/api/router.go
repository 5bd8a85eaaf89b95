package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/profilehub/mypts/internal/services/ledger"
	"github.com/profilehub/mypts/internal/services/referral"
	"github.com/profilehub/mypts/internal/services/supply"
	"github.com/profilehub/mypts/internal/services/transfer"
)

// NewRouter constructs the router with all endpoints registered.
func NewRouter(l *ledger.Service, t *transfer.Service, s *supply.Service, rf *referral.Service) http.Handler {
	h := NewHandler(l, t, s, rf)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/profiles/{profileId}/balance", h.GetBalanceHandler)
	r.Get("/profiles/{profileId}/transactions", h.HistoryHandler)
	r.Post("/profiles/{profileId}/credit", h.CreditHandler)
	r.Post("/profiles/{profileId}/debit", h.DebitHandler)

	r.Post("/transfers", h.TransferHandler)
	r.Post("/purchases", h.PurchaseHandler)

	r.Get("/hub", h.HubStateHandler)
	r.Get("/hub/log", h.HubLogHandler)
	r.Post("/hub/issue", h.HubIssueHandler)
	r.Post("/hub/withdraw", h.HubWithdrawHandler)

	r.Post("/referrals", h.ProcessReferralHandler)
	r.Get("/referrals/codes/{code}", h.ValidateCodeHandler)
	r.Post("/referrals/{profileId}/code", h.InitializeCodeHandler)
	r.Get("/referrals/{profileId}", h.ReferralNodeHandler)

	return r
}
