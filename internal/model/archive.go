package model

import "context"

// LedgerArchive keeps pruned ledger entries in object storage. Keys are
// write-once; Exists lets a retried prune pass skip an upload that already
// landed.
type LedgerArchive interface {
	Upload(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}
