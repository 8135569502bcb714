package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"storefront-service/internal/entity"
	"storefront-service/internal/sharding"
)

// AttemptRepository is the checkout ledger, sharded by quote id.
type AttemptRepository struct {
	dbShards []*sql.DB
	router   *sharding.ShardRouter
}

func NewAttemptRepository(dbShards []*sql.DB, router *sharding.ShardRouter) *AttemptRepository {
	return &AttemptRepository{dbShards, router}
}

func (r *AttemptRepository) shard(quoteID string) *sql.DB {
	return r.dbShards[r.router.GetShard(quoteID)]
}

// SaveAttempt appends event to the ledger. Replayed events (same event id) are
// ignored.
func (r *AttemptRepository) SaveAttempt(ctx context.Context, event entity.CheckoutEvent) error {
	query := `INSERT INTO checkout_attempts (event_id, quote_id, user_id, order_id, gateway_order_id, kind, stage, message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.shard(event.QuoteID).ExecContext(ctx, query,
		event.ID, event.QuoteID, event.UserID, event.OrderID, event.GatewayOrderID,
		event.Kind, event.Stage, event.Message, event.CreatedAt)
	if isDuplicateKey(err) {
		return nil
	}
	return err
}

// ListAttempts returns the ledger of quoteID, oldest first.
func (r *AttemptRepository) ListAttempts(ctx context.Context, quoteID string) ([]entity.CheckoutEvent, error) {
	query := `SELECT event_id, quote_id, user_id, order_id, gateway_order_id, kind, stage, message, created_at FROM checkout_attempts WHERE quote_id = ? ORDER BY created_at, id`

	rows, err := r.shard(quoteID).QueryContext(ctx, query, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []entity.CheckoutEvent
	for rows.Next() {
		var e entity.CheckoutEvent
		err := rows.Scan(&e.ID, &e.QuoteID, &e.UserID, &e.OrderID, &e.GatewayOrderID, &e.Kind, &e.Stage, &e.Message, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
