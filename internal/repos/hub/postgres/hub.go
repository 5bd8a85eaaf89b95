package hub

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/profilehub/mypts/internal/repos/hub"
)

var _ hub.Hub = (*hubRepo)(nil)

type hubRepo struct{ db *sql.DB }

func New(db *sql.DB) *hubRepo {
	return &hubRepo{db: db}
}

func (r *hubRepo) LockState(tx *sql.Tx) (hub.State, error) {
	var st hub.State

	err := tx.QueryRow(`
		SELECT total_supply, reserve_supply, circulating_supply
		FROM hub_state
		WHERE id = 1
		FOR UPDATE
	`).Scan(&st.TotalSupply, &st.ReserveSupply, &st.CirculatingSupply)
	if err != nil {
		return hub.State{}, fmt.Errorf("lock/get hub state: %w", err)
	}

	return st, nil
}

func (r *hubRepo) UpdateState(tx *sql.Tx, st hub.State) error {
	_, err := tx.Exec(`
		UPDATE hub_state
		SET total_supply = $1,
		    reserve_supply = $2,
		    circulating_supply = $3
		WHERE id = 1
	`, st.TotalSupply, st.ReserveSupply, st.CirculatingSupply)
	if err != nil {
		return fmt.Errorf("update hub state: %w", err)
	}

	return nil
}

func (r *hubRepo) AppendLog(tx *sql.Tx, entry hub.LogEntry) error {
	_, err := tx.Exec(`
		INSERT INTO hub_log
			(id, kind, amount, reason, total_supply, reserve_supply, circulating_supply, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.Kind, entry.Amount, entry.Reason,
		entry.State.TotalSupply, entry.State.ReserveSupply, entry.State.CirculatingSupply,
		entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append hub log: %w", err)
	}

	return nil
}

func (r *hubRepo) State(ctx context.Context) (hub.State, error) {
	var st hub.State

	err := r.db.QueryRowContext(ctx, `
		SELECT total_supply, reserve_supply, circulating_supply
		FROM hub_state
		WHERE id = 1
	`).Scan(&st.TotalSupply, &st.ReserveSupply, &st.CirculatingSupply)
	if err != nil {
		return hub.State{}, fmt.Errorf("get hub state: %w", err)
	}

	return st, nil
}

func (r *hubRepo) Log(ctx context.Context, limit, offset int) ([]hub.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, amount, reason, total_supply, reserve_supply, circulating_supply, created_at
		FROM hub_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query hub log: %w", err)
	}
	defer rows.Close()

	var out []hub.LogEntry

	for rows.Next() {
		var entry hub.LogEntry

		err = rows.Scan(
			&entry.ID, &entry.Kind, &entry.Amount, &entry.Reason,
			&entry.State.TotalSupply, &entry.State.ReserveSupply, &entry.State.CirculatingSupply,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan hub log entry: %w", err)
		}

		out = append(out, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate hub log: %w", err)
	}

	return out, nil
}
