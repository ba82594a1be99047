package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vyaparai/vyaparai/internal/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record stores the response of a completed submission so a retry with the
// same key replays it instead of re-applying the operation.
type Record struct {
	Key       string         `gorm:"primaryKey;type:text"`
	Result    datatypes.JSON `gorm:"type:jsonb;not null"`
	ExpiresAt time.Time      `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Record) TableName() string { return "idempotency_keys" }

// Store is a TTL-bounded idempotency key/value store. Put must be an atomic
// conditional insert so two concurrent identical requests cannot both record
// a result.
type Store interface {
	// Check returns the recorded result for key, if present and not expired.
	Check(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Put records result under key for ttl. An existing fresh record wins:
	// the first recorded result stays authoritative.
	Put(ctx context.Context, key string, result any, ttl time.Duration) error
}

type store struct {
	db  *gorm.DB
	clk clock.Clock
}

func NewStore(db *gorm.DB, clk clock.Clock) Store {
	return &store{db: db, clk: clk}
}

func (s *store) Check(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var record Record
	err := s.db.WithContext(ctx).Raw(
		`SELECT key, result, expires_at, created_at FROM idempotency_keys WHERE key = ?`,
		key,
	).Scan(&record).Error
	if err != nil {
		return nil, false, fmt.Errorf("check idempotency key: %w", err)
	}
	if record.Key == "" {
		return nil, false, nil
	}

	// Expiry is lazy: an expired record is dropped on read so the key
	// becomes reusable.
	if !record.ExpiresAt.After(s.clk.Now()) {
		if err := s.db.WithContext(ctx).Exec(
			`DELETE FROM idempotency_keys WHERE key = ? AND expires_at = ?`,
			key, record.ExpiresAt,
		).Error; err != nil {
			return nil, false, fmt.Errorf("expire idempotency key: %w", err)
		}
		return nil, false, nil
	}

	return json.RawMessage(record.Result), true, nil
}

func (s *store) Put(ctx context.Context, key string, result any, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal idempotency result: %w", err)
	}

	now := s.clk.Now()
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO idempotency_keys (key, result, expires_at, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		key,
		datatypes.JSON(payload),
		now.Add(ttl),
		now,
	).Error
}
