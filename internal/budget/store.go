package budget

import (
	"context"
	"errors"

	"github.com/Proton-105/budget-bot/internal/domain"
)

// ErrRecordNotFound indicates that the user has no budget record.
var ErrRecordNotFound = errors.New("budget record not found")

// Store is the durable per-user record storage the service depends on.
// Put always writes the full record; handlers decide which fields change.
type Store interface {
	Get(ctx context.Context, userID int64) (*domain.Record, error)
	Put(ctx context.Context, record *domain.Record) error
	Delete(ctx context.Context, userID int64) error
}
