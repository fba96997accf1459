package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"docucred/internal/document/models"
	"docucred/pkg/testutil"
)

func TestInMemoryStoreContract(t *testing.T) {
	suite.Run(t, &contractSuite{newStore: func(*testing.T) entryStore { return NewInMemory() }})
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	fp := models.ComputeFingerprint([]byte("doc"))
	edits := `{"name":"x"}`

	_, err := s.Record(ctx, &models.CacheEntry{Fingerprint: fp, UserID: testutil.TestIDs.UserID1, Fields: `{}`, Edits: &edits, CreatedAt: time.Now()})
	require.NoError(t, err)

	got, err := s.Latest(ctx, fp, testutil.TestIDs.UserID1)
	require.NoError(t, err)
	*got.Edits = "mutated"
	got.Fields = "mutated"

	again, err := s.Latest(ctx, fp, testutil.TestIDs.UserID1)
	require.NoError(t, err)
	assert.Equal(t, `{}`, again.Fields)
	assert.Equal(t, edits, *again.Edits)
}

func TestInMemoryStoreConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	fp := models.ComputeFingerprint([]byte("doc"))

	result := testutil.RunConcurrent(50, func(int) error {
		_, err := s.Record(ctx, &models.CacheEntry{Fingerprint: fp, UserID: testutil.TestIDs.UserID1, Fields: `{}`, CreatedAt: time.Now()})
		return err
	})
	assert.Equal(t, int32(50), result.Successes)

	history, err := s.History(ctx, fp, testutil.TestIDs.UserID1)
	require.NoError(t, err)
	seen := make(map[int64]bool, len(history))
	for _, e := range history {
		seen[e.ID] = true
	}
	assert.Len(t, seen, 50)
}
