package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/profilehub/mypts/internal/services/ledger"
	"github.com/profilehub/mypts/internal/services/referral"
	"github.com/profilehub/mypts/internal/services/supply"
	"github.com/profilehub/mypts/internal/services/transfer"
)

// NewServer creates and returns a configured *http.Server for the point-economy API.
func NewServer(port uint16, l *ledger.Service, t *transfer.Service, s *supply.Service, rf *referral.Service) *http.Server {
	mux := NewRouter(l, t, s, rf)

	addr := fmt.Sprintf(":%d", port)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
