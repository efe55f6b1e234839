// Package ledger persists processing results and provides the dedup gate
// that keeps a message from being processed twice.
package ledger

import (
	"context"

	"github.com/stoneage-tools/ap-inbox/internal/model"
)

// Ledger is the persistence interface for processed messages. Get and Find
// return nil without error when no record exists.
type Ledger interface {
	// Has reports whether a message has already been processed.
	Has(ctx context.Context, messageID string) (bool, error)

	// Put records a processing result. Writing the same message twice is
	// an upsert, keeping the newest result.
	Put(ctx context.Context, result *model.ProcessingResult) error

	// Get fetches a result by Graph message ID.
	Get(ctx context.Context, messageID string) (*model.ProcessingResult, error)

	// Find fetches a result by Graph message ID or RFC 5322 message ID,
	// tolerating a missing angle-bracket wrapping on the latter.
	Find(ctx context.Context, id string) (*model.ProcessingResult, error)

	// Recent returns the newest results, most recent first.
	Recent(ctx context.Context, limit int) ([]*model.ProcessingResult, error)

	Close() error
}
