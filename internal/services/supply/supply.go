// Package supply owns the global MyPts supply figures. All mutations run
// against the singleton hub_state row under a row lock, are written to the
// hub_log audit trail, and re-verify the conservation invariant
// (reserve + circulating == total) before committing.
package supply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/profilehub/mypts/internal/infra/metrics"
	"github.com/profilehub/mypts/internal/infra/pgutils"
	"github.com/profilehub/mypts/internal/repos/hub"
	pghub "github.com/profilehub/mypts/internal/repos/hub/postgres"
)

var (
	ErrInvalidAmount                 = errors.New("invalid amount")
	ErrInsufficientCirculatingSupply = errors.New("insufficient circulating supply")
	// ErrConservationViolation means the hub arithmetic no longer adds up.
	// It is never auto-corrected; the service halts instead.
	ErrConservationViolation = errors.New("supply conservation violation")
	// ErrHubHalted is returned by every mutation after a conservation
	// violation until the process is restarted over repaired state.
	ErrHubHalted = errors.New("supply hub halted")
)

type Service struct {
	db     *sql.DB
	repo   hub.Hub
	halted atomic.Bool
}

func New(dbx *sql.DB) *Service {
	return &Service{
		db:   dbx,
		repo: pghub.New(dbx),
	}
}

// Issue mints new points into the reserve. There is no supply cap.
func (s *Service) Issue(ctx context.Context, amount int64, reason string) (hub.State, error) {
	return s.mutate(ctx, hub.KindIssue, amount, func(tx *sql.Tx, st *hub.State) error {
		st.TotalSupply += amount
		st.ReserveSupply += amount

		return s.log(tx, hub.KindIssue, amount, reason, *st)
	})
}

// MoveToCirculation releases points from the reserve into circulating supply.
//
// When the reserve cannot cover the amount, the shortfall is minted first.
// This is a deliberate mint-on-demand policy: circulation is never blocked by
// reserve exhaustion, unlike a strict fixed-supply model. Both the auto-issue
// and the move are logged separately.
func (s *Service) MoveToCirculation(ctx context.Context, amount int64, reason string) (hub.State, error) {
	return s.mutate(ctx, hub.KindCirculate, amount, func(tx *sql.Tx, st *hub.State) error {
		if st.ReserveSupply < amount {
			shortfall := amount - st.ReserveSupply

			st.TotalSupply += shortfall
			st.ReserveSupply += shortfall

			err := s.log(tx, hub.KindIssue, shortfall, "auto-issue for: "+reason, *st)
			if err != nil {
				return err
			}
		}

		st.ReserveSupply -= amount
		st.CirculatingSupply += amount

		return s.log(tx, hub.KindCirculate, amount, reason, *st)
	})
}

// MoveToReserve pulls points out of circulation back into the reserve, the
// withdrawal path.
func (s *Service) MoveToReserve(ctx context.Context, amount int64, reason string) (hub.State, error) {
	return s.mutate(ctx, hub.KindReserve, amount, func(tx *sql.Tx, st *hub.State) error {
		if st.CirculatingSupply < amount {
			return fmt.Errorf("pre-check reserve move: %w", ErrInsufficientCirculatingSupply)
		}

		st.CirculatingSupply -= amount
		st.ReserveSupply += amount

		return s.log(tx, hub.KindReserve, amount, reason, *st)
	})
}

func (s *Service) State(ctx context.Context) (hub.State, error) {
	st, err := s.repo.State(ctx)
	if err != nil {
		return hub.State{}, fmt.Errorf("hub state: %w", err)
	}

	return st, nil
}

func (s *Service) Log(ctx context.Context, limit, offset int) ([]hub.LogEntry, error) {
	entries, err := s.repo.Log(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("hub log: %w", err)
	}

	return entries, nil
}

// mutate runs one hub mutation: halt check, amount validation, lock, apply,
// conservation check, state write-back.
func (s *Service) mutate(ctx context.Context, kind hub.Kind, amount int64, fn func(tx *sql.Tx, st *hub.State) error) (hub.State, error) {
	if amount <= 0 {
		return hub.State{}, ErrInvalidAmount
	}

	if s.halted.Load() {
		return hub.State{}, ErrHubHalted
	}

	var out hub.State

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		st, err := s.repo.LockState(tx)
		if err != nil {
			return fmt.Errorf("lock hub state: %w", err)
		}

		err = fn(tx, &st)
		if err != nil {
			return err
		}

		if st.ReserveSupply+st.CirculatingSupply != st.TotalSupply {
			return fmt.Errorf(
				"%w: reserve=%d circulating=%d total=%d",
				ErrConservationViolation, st.ReserveSupply, st.CirculatingSupply, st.TotalSupply,
			)
		}

		err = s.repo.UpdateState(tx, st)
		if err != nil {
			return fmt.Errorf("update hub state: %w", err)
		}

		out = st

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConservationViolation) {
			// Halt the hub; every further mutation fails fast until an
			// operator repairs the state and restarts the process.
			s.halted.Store(true)
			slog.Error("supply conservation violated, hub halted", "error", err)
		}

		return hub.State{}, fmt.Errorf("hub mutation: %w", err)
	}

	metrics.HubMutationsTotal.WithLabelValues(string(kind)).Inc()

	return out, nil
}

func (s *Service) log(tx *sql.Tx, kind hub.Kind, amount int64, reason string, st hub.State) error {
	err := s.repo.AppendLog(tx, hub.LogEntry{
		ID:        uuid.New(),
		Kind:      kind,
		Amount:    amount,
		Reason:    reason,
		State:     st,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("log hub mutation: %w", err)
	}

	return nil
}
