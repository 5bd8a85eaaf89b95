package transactions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateReference = errors.New("duplicate transaction reference")

// Type classifies a balance mutation. The set is shared with the wider
// platform; this core only writes a subset but must round-trip all of them.
type Type string

const (
	TypeBuy                   Type = "BUY_MYPTS"
	TypeSell                  Type = "SELL_MYPTS"
	TypeWithdraw              Type = "WITHDRAW_MYPTS"
	TypeEarn                  Type = "EARN_MYPTS"
	TypeDonationSent          Type = "DONATION_SENT"
	TypeDonationReceived      Type = "DONATION_RECEIVED"
	TypePurchaseProduct       Type = "PURCHASE_PRODUCT"
	TypeReceiveProductPayment Type = "RECEIVE_PRODUCT_PAYMENT"
	TypeRefund                Type = "REFUND"
	TypeExpire                Type = "EXPIRE"
	TypeAdjustment            Type = "ADJUSTMENT"
	TypeAdminWithdrawal       Type = "ADMIN_WITHDRAWAL"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReserved  Status = "RESERVED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// Transaction is an immutable log entry; rows are appended, never updated.
// Amount is signed: credits positive, debits negative. BalanceAfter always
// equals the previous balance plus Amount.
type Transaction struct {
	ID                   uuid.UUID
	ProfileID            string
	Type                 Type
	Amount               int64
	BalanceAfter         int64
	Status               Status
	Description          string
	ReferenceID          string
	RelatedTransactionID uuid.NullUUID
	CreatedAt            time.Time
}

type Transactions interface {
	Insert(tx *sql.Tx, txn Transaction) error
	// ByReference finds the transaction recorded for an external payment
	// reference; ok is false when none exists.
	ByReference(ctx context.Context, referenceID string) (Transaction, bool, error)
	History(ctx context.Context, profileID string, limit, offset int) ([]Transaction, error)
	HistoryByType(ctx context.Context, profileID string, txType Type, limit, offset int) ([]Transaction, error)
}
