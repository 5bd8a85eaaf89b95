package hub

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Kind tags a hub_log entry with the mutation that produced it.
type Kind string

const (
	KindIssue     Kind = "ISSUE"
	KindCirculate Kind = "MOVE_TO_CIRCULATION"
	KindReserve   Kind = "MOVE_TO_RESERVE"
)

// State is the singleton supply record. ReserveSupply + CirculatingSupply
// must equal TotalSupply after every mutation.
type State struct {
	TotalSupply       int64
	ReserveSupply     int64
	CirculatingSupply int64
}

// LogEntry is an append-only audit record of one hub mutation, carrying the
// state the hub was left in.
type LogEntry struct {
	ID        uuid.UUID
	Kind      Kind
	Amount    int64
	Reason    string
	State     State
	CreatedAt time.Time
}

type Hub interface {
	// LockState takes a row lock on the singleton state row.
	LockState(tx *sql.Tx) (State, error)
	UpdateState(tx *sql.Tx, st State) error
	AppendLog(tx *sql.Tx, entry LogEntry) error
	State(ctx context.Context) (State, error)
	Log(ctx context.Context, limit, offset int) ([]LogEntry, error)
}
