package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// PrunerConfig controls how expired ledger entries are reaped.
type PrunerConfig struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

// Pruner deletes ledger entries that expired more than Grace ago,
// optionally archiving them to object storage first.
type Pruner struct {
	ledger  model.Ledger
	archive model.LedgerArchive
	cfg     PrunerConfig
	now     func() time.Time
	logger  *logger.Logger
}

// NewPruner creates a Pruner. archive may be nil.
func NewPruner(ledger model.Ledger, archive model.LedgerArchive, cfg PrunerConfig, logger *logger.Logger) *Pruner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Pruner{
		ledger:  ledger,
		archive: archive,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Run prunes on every tick until ctx is done. A zero interval disables it.
func (p *Pruner) Run(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		p.logger.Info("Pruner: disabled")
		return nil
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.PruneOnce(ctx); err != nil {
				p.logger.Error("Pruner: pass failed",
					"error", err.Error())
			}
		}
	}
}

// PruneOnce removes one batch of expired entries and reports how many were
// deleted.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.cfg.Grace)

	entries, err := p.ledger.ListExpired(ctx, cutoff, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if p.archive != nil {
		if err := p.archiveEntries(ctx, entries); err != nil {
			return 0, err
		}
	}

	jtis := make([]string, len(entries))
	for i, e := range entries {
		jtis[i] = e.JTI
	}

	n, err := p.ledger.DeleteByJTI(ctx, jtis)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}

	p.logger.Info("Pruner: expired ledger entries deleted",
		"count", n,
		"cutoff", cutoff)
	return n, nil
}

// archiveEntries uploads the batch as JSON lines. The key is derived from
// every jti in the batch, so only an identical batch is skipped as already
// archived.
func (p *Pruner) archiveEntries(ctx context.Context, entries []model.LedgerEntry) error {
	key := archiveKey(entries)

	exists, err := p.archive.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check archive: %w", err)
	}
	if exists {
		p.logger.Debug("Pruner: batch already archived",
			"key", key)
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode ledger entry: %w", err)
		}
	}

	if err := p.archive.Upload(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("archive expired entries: %w", err)
	}

	p.logger.Debug("Pruner: archived ledger entries",
		"key", key,
		"count", len(entries))
	return nil
}

// archiveKey is ledger/<day of the first expiry>/<sha256 of the sorted jtis>.jsonl.
func archiveKey(entries []model.LedgerEntry) string {
	jtis := make([]string, len(entries))
	for i, e := range entries {
		jtis[i] = e.JTI
	}
	slices.Sort(jtis)

	h := sha256.New()
	for _, jti := range jtis {
		h.Write([]byte(jti))
		h.Write([]byte{0})
	}

	return fmt.Sprintf("ledger/%s/%s.jsonl", entries[0].ExpiresAt.UTC().Format("2006/01/02"), hex.EncodeToString(h.Sum(nil)))
}
