package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// SettlementArchiver keeps an immutable copy of every settled market.
type SettlementArchiver interface {
	ArchiveSettlement(ctx context.Context, m Market) (string, error)
}
