package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxFunc receives the transactional executor. Returning an error rolls back.
type TxFunc func(exec sqlx.ExtContext) error

// TxManager scopes multi-statement work in a single database transaction.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a manager using the default isolation level.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx runs fn inside a transaction. The transaction is always committed or
// rolled back before WithTx returns, including when fn panics.
func (m *TxManager) WithTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone && err != nil {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
