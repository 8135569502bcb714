package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"storefront-service/internal/sharding"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, isDuplicateKey(dup))
	assert.True(t, isDuplicateKey(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1146}))
	assert.False(t, isDuplicateKey(errors.New("boom")))
	assert.False(t, isDuplicateKey(nil))
}

func TestShardIsStablePerQuote(t *testing.T) {
	shards := []*sql.DB{new(sql.DB), new(sql.DB), new(sql.DB)}
	repo := NewAttemptRepository(shards, sharding.NewShardRouter(len(shards)))

	first := repo.shard("665f1c2e9b1d4a0012ab34cd")
	for i := 0; i < 10; i++ {
		assert.Same(t, first, repo.shard("665f1c2e9b1d4a0012ab34cd"))
	}
}
