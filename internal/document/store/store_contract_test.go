package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docucred/internal/document/models"
	id "docucred/pkg/domain"
	"docucred/pkg/platform/sentinel"
	"docucred/pkg/testutil"
)

type entryStore interface {
	Record(ctx context.Context, entry *models.CacheEntry) (*models.CacheEntry, error)
	Latest(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) (*models.CacheEntry, error)
	History(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) ([]*models.CacheEntry, error)
}

// contractSuite pins the behavior every backend shares.
type contractSuite struct {
	suite.Suite
	newStore func(t *testing.T) entryStore
	store    entryStore
	ctx      context.Context
	base     time.Time
	fp       models.Fingerprint
	alice    id.UserID
	bob      id.UserID
}

func (s *contractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
	s.base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.fp = models.ComputeFingerprint([]byte("aadhaar-front.png"))
	s.alice = testutil.TestIDs.UserID1
	s.bob = testutil.TestIDs.UserID2
}

func (s *contractSuite) record(userID id.UserID, fields string, edits *string, at time.Time) *models.CacheEntry {
	entry, err := s.store.Record(s.ctx, &models.CacheEntry{
		Fingerprint: s.fp,
		UserID:      userID,
		Fields:      fields,
		Edits:       edits,
		CreatedAt:   at,
	})
	s.Require().NoError(err)
	return entry
}

func (s *contractSuite) TestRecordAssignsIncreasingIDs() {
	first := s.record(s.alice, `{"name":"J"}`, nil, s.base)
	second := s.record(s.alice, `{"name":"J"}`, nil, s.base)
	s.Greater(second.ID, first.ID)
}

func (s *contractSuite) TestLatestMissing() {
	_, err := s.store.Latest(s.ctx, s.fp, s.alice)
	s.ErrorIs(err, sentinel.ErrNotFound)

	history, err := s.store.History(s.ctx, s.fp, s.alice)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *contractSuite) TestCorrectionPrecedence() {
	s.record(s.alice, `{"name":"JANE D0E"}`, nil, s.base)
	edits := `{"name":"Jane Doe"}`
	e2 := s.record(s.alice, `{"name":"JANE D0E"}`, &edits, s.base.Add(time.Second))

	latest, err := s.store.Latest(s.ctx, s.fp, s.alice)
	s.Require().NoError(err)
	s.Equal(e2.ID, latest.ID)
	s.Require().NotNil(latest.Edits)
	s.Equal(edits, *latest.Edits)
}

func (s *contractSuite) TestTimestampTieBrokenBySequence() {
	s.record(s.alice, `{"name":"first"}`, nil, s.base)
	second := s.record(s.alice, `{"name":"second"}`, nil, s.base)

	latest, err := s.store.Latest(s.ctx, s.fp, s.alice)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
}

func (s *contractSuite) TestLaterTimestampWinsOverInsertionOrder() {
	newer := s.record(s.alice, `{"name":"newer"}`, nil, s.base.Add(time.Minute))
	s.record(s.alice, `{"name":"older"}`, nil, s.base)

	latest, err := s.store.Latest(s.ctx, s.fp, s.alice)
	s.Require().NoError(err)
	s.Equal(newer.ID, latest.ID)
}

func (s *contractSuite) TestCrossUserIsolation() {
	s.record(s.alice, `{"name":"Alice"}`, nil, s.base)

	_, err := s.store.Latest(s.ctx, s.fp, s.bob)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.record(s.bob, `{"name":"Bob"}`, nil, s.base.Add(time.Hour))
	latest, err := s.store.Latest(s.ctx, s.fp, s.alice)
	s.Require().NoError(err)
	s.Equal(`{"name":"Alice"}`, latest.Fields)
}

func (s *contractSuite) TestHistoryNewestFirst() {
	e1 := s.record(s.alice, `{"v":1}`, nil, s.base)
	e2 := s.record(s.alice, `{"v":2}`, nil, s.base.Add(time.Second))
	e3 := s.record(s.alice, `{"v":3}`, nil, s.base.Add(2*time.Second))
	s.record(s.bob, `{"v":"bob"}`, nil, s.base)

	history, err := s.store.History(s.ctx, s.fp, s.alice)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal([]int64{e3.ID, e2.ID, e1.ID}, []int64{history[0].ID, history[1].ID, history[2].ID})
}
