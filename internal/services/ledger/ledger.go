package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/profilehub/mypts/internal/infra/metrics"
	"github.com/profilehub/mypts/internal/infra/pgutils"
	"github.com/profilehub/mypts/internal/repos/accounts"
	pgaccounts "github.com/profilehub/mypts/internal/repos/accounts/postgres"
	"github.com/profilehub/mypts/internal/repos/transactions"
	pgtransactions "github.com/profilehub/mypts/internal/repos/transactions/postgres"
)

var ErrInvalidAmount = errors.New("invalid amount")

// SuccessThreshold is the balance a referred profile must reach for the
// referral to count as successful.
const SuccessThreshold int64 = 1000

// ThresholdNotifier receives threshold-crossing events after the triggering
// credit has committed. Implementations must not block; delivery is
// best-effort by contract.
//
// The referral side implements this through the notify worker. Keeping the
// interface here (on the consumer) breaks the ledger<->referral dependency
// cycle structurally.
type ThresholdNotifier interface {
	ThresholdCrossed(profileID string)
}

type Service struct {
	db       *sql.DB
	accounts accounts.Accounts
	txns     transactions.Transactions
	notifier ThresholdNotifier
}

func New(dbx *sql.DB) *Service {
	return &Service{
		db:       dbx,
		accounts: pgaccounts.New(dbx),
		txns:     pgtransactions.New(dbx),
	}
}

// SetThresholdNotifier wires the threshold port. It is injected after
// construction because the notifier's handler needs this service to issue
// milestone credits; call it once during startup, before serving traffic.
func (s *Service) SetThresholdNotifier(n ThresholdNotifier) {
	s.notifier = n
}

// Credit runs the full flow in a single DB transaction:
//
// 1) Find-or-create the account.
// 2) Lock the account row (FOR UPDATE).
// 3) Apply the balance and lifetime-earned increase.
// 4) Append the transaction record.
//
// After commit, a balance that crossed SuccessThreshold upward is reported to
// the threshold notifier.
func (s *Service) Credit(ctx context.Context, profileID string, amount int64, txType transactions.Type, description, referenceID string) (transactions.Transaction, error) {
	if amount <= 0 {
		return transactions.Transaction{}, ErrInvalidAmount
	}

	var txn transactions.Transaction

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.accounts.Ensure(tx, profileID)
		if err != nil {
			return fmt.Errorf("ensure account: %w", err)
		}

		acc, err := s.accounts.LockForUpdate(tx, profileID)
		if err != nil {
			return fmt.Errorf("lock and get account: %w", err)
		}

		now := time.Now().UTC()

		err = s.accounts.ApplyCredit(tx, profileID, amount, now)
		if err != nil {
			return fmt.Errorf("apply credit: %w", err)
		}

		txn = transactions.Transaction{
			ID:           uuid.New(),
			ProfileID:    profileID,
			Type:         txType,
			Amount:       amount,
			BalanceAfter: acc.Balance + amount,
			Status:       transactions.StatusCompleted,
			Description:  description,
			ReferenceID:  referenceID,
			CreatedAt:    now,
		}

		err = s.txns.Insert(tx, txn)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("credit: %w", err)
	}

	metrics.TransactionsTotal.WithLabelValues(string(txType)).Inc()
	s.notifyIfCrossed(profileID, txn.BalanceAfter-amount, txn.BalanceAfter)

	return txn, nil
}

// Debit mirrors Credit with the sign flipped. The account must already exist,
// and the locked balance must cover the amount. The transaction record stores
// the amount as negative.
func (s *Service) Debit(ctx context.Context, profileID string, amount int64, txType transactions.Type, description string) (transactions.Transaction, error) {
	if amount <= 0 {
		return transactions.Transaction{}, ErrInvalidAmount
	}

	var txn transactions.Transaction

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		acc, err := s.accounts.LockForUpdate(tx, profileID)
		if err != nil {
			return fmt.Errorf("lock and get account: %w", err)
		}

		// pre-check against the locked balance
		if acc.Balance < amount {
			return fmt.Errorf("pre-check debit: %w", accounts.ErrInsufficientBalance)
		}

		now := time.Now().UTC()

		err = s.accounts.ApplyDebit(tx, profileID, amount, now)
		if err != nil {
			return fmt.Errorf("apply debit: %w", err)
		}

		txn = transactions.Transaction{
			ID:           uuid.New(),
			ProfileID:    profileID,
			Type:         txType,
			Amount:       -amount,
			BalanceAfter: acc.Balance - amount,
			Status:       transactions.StatusCompleted,
			Description:  description,
			CreatedAt:    now,
		}

		err = s.txns.Insert(tx, txn)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("debit: %w", err)
	}

	metrics.TransactionsTotal.WithLabelValues(string(txType)).Inc()

	return txn, nil
}

// Account returns the current account state (no locks; suitable for reads).
func (s *Service) Account(ctx context.Context, profileID string) (accounts.Account, error) {
	acc, err := s.accounts.Get(ctx, profileID)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}

func (s *Service) History(ctx context.Context, profileID string, limit, offset int) ([]transactions.Transaction, error) {
	txns, err := s.txns.History(ctx, profileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return txns, nil
}

func (s *Service) HistoryByType(ctx context.Context, profileID string, txType transactions.Type, limit, offset int) ([]transactions.Transaction, error) {
	txns, err := s.txns.HistoryByType(ctx, profileID, txType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("history by type: %w", err)
	}

	return txns, nil
}

func (s *Service) notifyIfCrossed(profileID string, prev, next int64) {
	if s.notifier == nil {
		return
	}

	if prev < SuccessThreshold && next >= SuccessThreshold {
		s.notifier.ThresholdCrossed(profileID)
	}
}
