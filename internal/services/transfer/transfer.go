// Package transfer orchestrates the multi-account operations of the point
// economy: donations between profiles and purchases delivered by the payment
// gateway.
package transfer

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
	"github.com/profilehub/mypts/internal/repos/hub"
	"github.com/profilehub/mypts/internal/repos/transactions"
	pgtransactions "github.com/profilehub/mypts/internal/repos/transactions/postgres"
	"github.com/profilehub/mypts/internal/services/ledger"
)

var ErrSameAccount = errors.New("sender and receiver are the same account")
var ErrMissingReference = errors.New("external payment reference required")

// Supply is the slice of the supply hub the purchase path needs.
type Supply interface {
	MoveToCirculation(ctx context.Context, amount int64, reason string) (hub.State, error)
}

type Service struct {
	db       *sql.DB
	accounts accounts.Accounts
	txns     transactions.Transactions
	ledger   *ledger.Service
	supply   Supply
	notifier ledger.ThresholdNotifier
}

func New(dbx *sql.DB, ledgerSvc *ledger.Service, supply Supply) *Service {
	return &Service{
		db:       dbx,
		accounts: pgaccounts.New(dbx),
		txns:     pgtransactions.New(dbx),
		ledger:   ledgerSvc,
		supply:   supply,
	}
}

// SetThresholdNotifier wires the same threshold port the ledger uses, for the
// receiving side of transfers.
func (s *Service) SetThresholdNotifier(n ledger.ThresholdNotifier) {
	s.notifier = n
}

// Transfer moves amount from one profile to another and returns the sender's
// transaction; the receiver's record is cross-linked via
// RelatedTransactionID. The whole operation is one DB transaction: sender
// debit, receiver creation if needed, receiver credit, and both log records
// commit together or not at all.
//
// The sender must already hold an account; the receiver is created lazily
// with a zero balance.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount int64, description string) (transactions.Transaction, error) {
	if amount <= 0 {
		return transactions.Transaction{}, ledger.ErrInvalidAmount
	}

	if fromID == toID {
		return transactions.Transaction{}, ErrSameAccount
	}

	var (
		sent         transactions.Transaction
		receiverPrev int64
	)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.accounts.Exists(tx, fromID)
		if err != nil {
			return fmt.Errorf("check sender exists: %w", err)
		}

		err = s.accounts.Ensure(tx, toID)
		if err != nil {
			return fmt.Errorf("ensure receiver: %w", err)
		}

		// Lock both rows in profile-id order so two opposing transfers
		// cannot deadlock.
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}

		locked := map[string]accounts.Account{}

		for _, id := range []string{first, second} {
			acc, err := s.accounts.LockForUpdate(tx, id)
			if err != nil {
				return fmt.Errorf("lock account %s: %w", id, err)
			}

			locked[id] = acc
		}

		sender := locked[fromID]
		receiver := locked[toID]
		receiverPrev = receiver.Balance

		if sender.Balance < amount {
			return fmt.Errorf("pre-check transfer: %w", accounts.ErrInsufficientBalance)
		}

		now := time.Now().UTC()

		err = s.accounts.ApplyDebit(tx, fromID, amount, now)
		if err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}

		err = s.accounts.ApplyCredit(tx, toID, amount, now)
		if err != nil {
			return fmt.Errorf("credit receiver: %w", err)
		}

		sentID := uuid.New()
		receivedID := uuid.New()

		sent = transactions.Transaction{
			ID:                   sentID,
			ProfileID:            fromID,
			Type:                 transactions.TypeDonationSent,
			Amount:               -amount,
			BalanceAfter:         sender.Balance - amount,
			Status:               transactions.StatusCompleted,
			Description:          description,
			RelatedTransactionID: uuid.NullUUID{UUID: receivedID, Valid: true},
			CreatedAt:            now,
		}

		received := transactions.Transaction{
			ID:                   receivedID,
			ProfileID:            toID,
			Type:                 transactions.TypeDonationReceived,
			Amount:               amount,
			BalanceAfter:         receiver.Balance + amount,
			Status:               transactions.StatusCompleted,
			Description:          description,
			RelatedTransactionID: uuid.NullUUID{UUID: sentID, Valid: true},
			CreatedAt:            now,
		}

		err = s.txns.Insert(tx, sent)
		if err != nil {
			return fmt.Errorf("insert sender transaction: %w", err)
		}

		err = s.txns.Insert(tx, received)
		if err != nil {
			return fmt.Errorf("insert receiver transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("transfer: %w", err)
	}

	metrics.TransactionsTotal.WithLabelValues(string(transactions.TypeDonationSent)).Inc()
	metrics.TransactionsTotal.WithLabelValues(string(transactions.TypeDonationReceived)).Inc()

	// Only the receiver can cross the threshold upward here.
	if s.notifier != nil &&
		receiverPrev < ledger.SuccessThreshold && receiverPrev+amount >= ledger.SuccessThreshold {
		s.notifier.ThresholdCrossed(toID)
	}

	return sent, nil
}

// Purchase credits the buyer for a completed external payment and moves the
// points into circulation. It is idempotent on the external reference: a
// re-delivered payment event returns the already-recorded transaction without
// touching any balance.
func (s *Service) Purchase(ctx context.Context, buyerID string, amount int64, externalRef string) (transactions.Transaction, error) {
	if externalRef == "" {
		return transactions.Transaction{}, ErrMissingReference
	}

	existing, ok, err := s.txns.ByReference(ctx, externalRef)
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("purchase lookup: %w", err)
	}

	if ok {
		return existing, nil
	}

	txn, err := s.ledger.Credit(ctx, buyerID, amount, transactions.TypeBuy, "purchase "+externalRef, externalRef)
	if err != nil {
		// A concurrent delivery of the same reference can win the unique
		// index race; treat its row as ours.
		if errors.Is(err, transactions.ErrDuplicateReference) {
			existing, ok, lerr := s.txns.ByReference(ctx, externalRef)
			if lerr == nil && ok {
				return existing, nil
			}
		}

		return transactions.Transaction{}, fmt.Errorf("purchase credit: %w", err)
	}

	_, err = s.supply.MoveToCirculation(ctx, amount, "purchase "+externalRef)
	if err != nil {
		return transactions.Transaction{}, fmt.Errorf("purchase circulate: %w", err)
	}

	return txn, nil
}
