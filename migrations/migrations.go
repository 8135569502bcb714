package migrations

import (
	"database/sql"
	"time"
)

// AutoMigrateCheckoutAttempts creates the checkout_attempts table on every
// shard if it does not exist.
func AutoMigrateCheckoutAttempts(retries int, dbs ...*sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS checkout_attempts (
			id INT AUTO_INCREMENT PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL UNIQUE,
			quote_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			order_id VARCHAR(64) NOT NULL DEFAULT '',
			gateway_order_id VARCHAR(64) NOT NULL DEFAULT '',
			kind VARCHAR(32) NOT NULL,
			stage VARCHAR(48) NOT NULL,
			message TEXT NOT NULL,
			created_at DATETIME(3) NOT NULL,
			INDEX idx_checkout_attempts_quote (quote_id, created_at)
		);
	`
	for _, db := range dbs {
		var err error
		for i := 0; i <= retries; i++ {
			if _, err = db.Exec(query); err == nil {
				break
			}
			time.Sleep(1 * time.Second)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
