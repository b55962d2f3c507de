package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
	"github.com/Synergy-kakaotrack/moa-be/internal/store"
)

// Writer persists digests so that exactly one row exists per subject key, even
// when another writer races the first insert.
type Writer struct {
	store  store.DigestStore
	logger *slog.Logger
}

// NewWriter creates a Writer. A nil logger uses slog.Default().
func NewWriter(s store.DigestStore, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: s, logger: logger}
}

// Upsert updates the row for key, inserting it if missing. A duplicate insert
// is resolved by reloading and updating the winner's row.
func (w *Writer) Upsert(ctx context.Context, key model.SubjectKey, dw model.DigestWrite) (*model.Digest, error) {
	existing, err := w.store.FindDigest(ctx, key)
	switch {
	case err == nil:
		return w.store.UpdateDigest(ctx, existing.ID, dw)
	case !errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("find digest: %w", err)
	}

	d, err := w.store.InsertDigest(ctx, key, dw)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, model.ErrDuplicate) {
		return nil, fmt.Errorf("insert digest: %w", err)
	}

	w.logger.Warn("digest insert race, retrying as update", "key", key.String())
	existing, err = w.store.FindDigest(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("digest %s vanished after duplicate insert: %w", key, model.ErrInvariant)
	}
	if err != nil {
		return nil, fmt.Errorf("reload digest: %w", err)
	}
	return w.store.UpdateDigest(ctx, existing.ID, dw)
}
