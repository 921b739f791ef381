package ports

import "context"

// SnapshotStore persists the latest encoded value of shared-store keys so a
// restarted controller has data before the first upstream call completes.
type SnapshotStore interface {
	// Save overwrites the payload for key.
	Save(ctx context.Context, key string, payload []byte) error
	// Load MUST return types.ErrNotFound if key was never saved.
	Load(ctx context.Context, key string) ([]byte, error)

	Keys(ctx context.Context) ([]string, error)

	// ClearAll purges every snapshot. Used in tests only.
	ClearAll(ctx context.Context) error
}
