package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/townsquare-auth/internal/mocks"
	"github.com/dtroode/townsquare-auth/internal/model"
	"github.com/dtroode/townsquare-auth/internal/testutil"
)

func expiredEntries(n int, now time.Time) []model.LedgerEntry {
	entries := make([]model.LedgerEntry, n)
	for i := range entries {
		entries[i] = model.LedgerEntry{
			JTI:       uuid.NewString(),
			TokenType: model.TokenTypeAccess,
			SubjectID: uuid.New(),
			IssuedAt:  now.Add(-2 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		}
	}
	return entries
}

func jtisOf(entries []model.LedgerEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.JTI
	}
	return out
}

func decodeArchived(t *testing.T, data []byte) []model.LedgerEntry {
	t.Helper()
	var out []model.LedgerEntry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var e model.LedgerEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestPruner_PruneOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	entries := expiredEntries(3, now)

	ledger := mocks.NewLedger(t)
	archive := mocks.NewLedgerArchive(t)

	p := NewPruner(ledger, archive, PrunerConfig{Grace: time.Minute, BatchSize: 10}, testutil.MakeNoopLogger())
	p.now = func() time.Time { return now }

	key := archiveKey(entries)
	assert.True(t, strings.HasPrefix(key, "ledger/2026/03/04/"), key)
	assert.True(t, strings.HasSuffix(key, ".jsonl"), key)

	var archived []model.LedgerEntry
	ledger.On("ListExpired", ctx, now.Add(-time.Minute), 10).Return(entries, nil).Once()
	archive.On("Exists", ctx, key).Return(false, nil).Once()
	archive.On("Upload", ctx, key, mock.Anything).
		Run(func(args mock.Arguments) {
			archived = decodeArchived(t, args.Get(2).([]byte))
		}).
		Return(nil).Once()
	ledger.On("DeleteByJTI", ctx, jtisOf(entries)).Return(int64(3), nil).Once()

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, archived, 3)
	assert.Equal(t, entries[1].JTI, archived[1].JTI)
	assert.True(t, entries[2].ExpiresAt.Equal(archived[2].ExpiresAt))
}

func TestPruner_ArchiveKey(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	entries := expiredEntries(3, now)

	assert.Equal(t, archiveKey(entries), archiveKey([]model.LedgerEntry{entries[0], entries[2], entries[1]}))

	assert.NotEqual(t, archiveKey(entries[:2]), archiveKey(entries))
	assert.NotEqual(t, archiveKey(entries[:1]), archiveKey(entries[1:2]))
}

// A batch that was uploaded but not deleted may come back larger on the next
// pass; the newcomers must still reach the archive before they are deleted.
func TestPruner_PruneOnce_RetryWithGrownBatch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	entries := expiredEntries(3, now)
	first, grown := entries[:2], entries

	ledger := mocks.NewLedger(t)
	archive := mocks.NewLedgerArchive(t)
	p := NewPruner(ledger, archive, PrunerConfig{BatchSize: 10}, testutil.MakeNoopLogger())
	p.now = func() time.Time { return now }

	firstKey, grownKey := archiveKey(first), archiveKey(grown)
	require.NotEqual(t, firstKey, grownKey)

	uploads := map[string][]model.LedgerEntry{}
	record := func(args mock.Arguments) {
		uploads[args.String(1)] = decodeArchived(t, args.Get(2).([]byte))
	}

	// Pass one archives [A, B] and then fails to delete them.
	ledger.On("ListExpired", ctx, now, 10).Return(first, nil).Once()
	archive.On("Exists", ctx, firstKey).Return(false, nil).Once()
	archive.On("Upload", ctx, firstKey, mock.Anything).Run(record).Return(nil).Once()
	ledger.On("DeleteByJTI", ctx, jtisOf(first)).Return(int64(0), assert.AnError).Once()

	_, err := p.PruneOnce(ctx)
	require.ErrorIs(t, err, assert.AnError)

	// Pass two lists [A, B, C].
	ledger.On("ListExpired", ctx, now, 10).Return(grown, nil).Once()
	archive.On("Exists", ctx, grownKey).Return(false, nil).Once()
	archive.On("Upload", ctx, grownKey, mock.Anything).Run(record).Return(nil).Once()
	ledger.On("DeleteByJTI", ctx, jtisOf(grown)).Return(int64(3), nil).Once()

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Len(t, uploads[grownKey], 3)
	assert.Equal(t, entries[2].JTI, uploads[grownKey][2].JTI)
}

func TestPruner_PruneOnce_WithoutArchive(t *testing.T) {
	ctx := context.Background()
	entries := expiredEntries(2, time.Now())

	ledger := mocks.NewLedger(t)
	p := NewPruner(ledger, nil, PrunerConfig{}, testutil.MakeNoopLogger())

	ledger.On("ListExpired", ctx, mock.Anything, 500).Return(entries, nil).Once()
	ledger.On("DeleteByJTI", ctx, jtisOf(entries)).Return(int64(2), nil).Once()

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPruner_PruneOnce_Nothing(t *testing.T) {
	ctx := context.Background()

	ledger := mocks.NewLedger(t)
	archive := mocks.NewLedgerArchive(t)
	p := NewPruner(ledger, archive, PrunerConfig{}, testutil.MakeNoopLogger())

	ledger.On("ListExpired", ctx, mock.Anything, 500).Return(nil, nil).Once()

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPruner_PruneOnce_ArchiveFailureKeepsEntries(t *testing.T) {
	ctx := context.Background()
	entries := expiredEntries(1, time.Now())

	ledger := mocks.NewLedger(t)
	archive := mocks.NewLedgerArchive(t)
	p := NewPruner(ledger, archive, PrunerConfig{}, testutil.MakeNoopLogger())

	ledger.On("ListExpired", ctx, mock.Anything, 500).Return(entries, nil).Once()
	archive.On("Exists", ctx, mock.Anything).Return(false, nil).Once()
	archive.On("Upload", ctx, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := p.PruneOnce(ctx)
	require.ErrorIs(t, err, assert.AnError)
	ledger.AssertNotCalled(t, "DeleteByJTI", mock.Anything, mock.Anything)
}

func TestPruner_PruneOnce_AlreadyArchived(t *testing.T) {
	ctx := context.Background()
	entries := expiredEntries(2, time.Now())

	ledger := mocks.NewLedger(t)
	archive := mocks.NewLedgerArchive(t)
	p := NewPruner(ledger, archive, PrunerConfig{}, testutil.MakeNoopLogger())

	ledger.On("ListExpired", ctx, mock.Anything, 500).Return(entries, nil).Once()
	archive.On("Exists", ctx, mock.Anything).Return(true, nil).Once()
	ledger.On("DeleteByJTI", ctx, jtisOf(entries)).Return(int64(2), nil).Once()

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	archive.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestPruner_PruneOnce_ArchiveUnreachable(t *testing.T) {
	ctx := context.Background()
	entries := expiredEntries(1, time.Now())

	ledger := mocks.NewLedger(t)
	archive := mocks.NewLedgerArchive(t)
	p := NewPruner(ledger, archive, PrunerConfig{}, testutil.MakeNoopLogger())

	ledger.On("ListExpired", ctx, mock.Anything, 500).Return(entries, nil).Once()
	archive.On("Exists", ctx, mock.Anything).Return(false, assert.AnError).Once()

	_, err := p.PruneOnce(ctx)
	require.ErrorIs(t, err, assert.AnError)
	ledger.AssertNotCalled(t, "DeleteByJTI", mock.Anything, mock.Anything)
}

func TestPruner_PruneOnce_LedgerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		ledger := mocks.NewLedger(t)
		p := NewPruner(ledger, nil, PrunerConfig{}, testutil.MakeNoopLogger())
		ledger.On("ListExpired", ctx, mock.Anything, 500).Return(nil, assert.AnError).Once()

		_, err := p.PruneOnce(ctx)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("delete", func(t *testing.T) {
		entries := expiredEntries(1, time.Now())
		ledger := mocks.NewLedger(t)
		p := NewPruner(ledger, nil, PrunerConfig{}, testutil.MakeNoopLogger())
		ledger.On("ListExpired", ctx, mock.Anything, 500).Return(entries, nil).Once()
		ledger.On("DeleteByJTI", ctx, jtisOf(entries)).Return(int64(0), assert.AnError).Once()

		_, err := p.PruneOnce(ctx)
		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestPruner_Run(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		p := NewPruner(mocks.NewLedger(t), nil, PrunerConfig{}, testutil.MakeNoopLogger())
		require.NoError(t, p.Run(context.Background()))
	})

	t.Run("ticks until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ledger := mocks.NewLedger(t)
		p := NewPruner(ledger, nil, PrunerConfig{Interval: 10 * time.Millisecond}, testutil.MakeNoopLogger())

		ledger.On("ListExpired", mock.Anything, mock.Anything, 500).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, nil)

		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("pruner did not stop")
		}
	})
}
