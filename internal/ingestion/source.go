package ingestion

import (
	"bytes"
	"context"
	"io"

	"github.com/rpattn/salesingest/internal/storage"
)

// Source is a re-readable tabular byte source. Every Open starts a fresh pass.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// StoredSource reads an artifact back from the artifact store.
type StoredSource struct {
	Store storage.ArtifactStore
	Key   string
}

func (s StoredSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Store.Open(ctx, s.Key)
}

// BytesSource serves an in-memory file.
type BytesSource []byte

func (b BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
