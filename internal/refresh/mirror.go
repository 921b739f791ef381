package refresh

import (
	"context"
	"errors"

	"github.com/EvanBelcher/nba-led-scoreboard/internal/ports"
	"github.com/EvanBelcher/nba-led-scoreboard/internal/types"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// Mirror copies store values to a ports.SnapshotStore as zstd-compressed JSON.
type Mirror struct {
	snapshots ports.SnapshotStore
}

func NewMirror(snapshots ports.SnapshotStore) *Mirror {
	return &Mirror{snapshots: snapshots}
}

func (m *Mirror) Save(ctx context.Context, key string, v any) error {
	b, err := EncodeSnapshot(v)
	if err != nil {
		return types.Err(types.ErrSnapshotAccess, err, "encode %s", key)
	}
	if err := m.snapshots.Save(ctx, key, b); err != nil {
		return types.Err(types.ErrSnapshotAccess, err, "save %s", key)
	}
	return nil
}

// Restore loads key from the mirror into store as a T. It returns false without
// error when nothing was saved under key.
func Restore[T any](ctx context.Context, m *Mirror, store *Store, key string) (bool, error) {
	b, err := m.snapshots.Load(ctx, key)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, types.Err(types.ErrSnapshotAccess, err, "load %s", key)
	}
	var v T
	if err := DecodeSnapshot(b, &v); err != nil {
		return false, types.Err(types.ErrSnapshotAccess, err, "decode %s", key)
	}
	store.Set(key, v)
	log.WithField("key", key).Info("restored from snapshot")
	return true, nil
}

// EncodeSnapshot JSON-encodes v and compresses it.
func EncodeSnapshot(v any) ([]byte, error) {
	s, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(s, make([]byte, 0, len(s))), nil
}

// DecodeSnapshot reverses EncodeSnapshot into out.
func DecodeSnapshot(b []byte, out any) error {
	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
