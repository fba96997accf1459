package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docucred/internal/document/models"
	id "docucred/pkg/domain"
	"docucred/pkg/platform/sentinel"
)

// EntryRecord is the cache_entries table row.
type EntryRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Fingerprint string    `gorm:"size:64;not null;index:idx_cache_entries_lookup,priority:1"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_cache_entries_lookup,priority:2"`
	Fields      string    `gorm:"type:text;not null"`
	Edits       *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (EntryRecord) TableName() string { return "cache_entries" }

const addUserForeignKey = `
DO $$ BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_cache_entries_user') THEN
		ALTER TABLE cache_entries
			ADD CONSTRAINT fk_cache_entries_user FOREIGN KEY (user_id) REFERENCES users(id);
	END IF;
END $$;`

// PostgresStore persists entries in PostgreSQL through gorm. It only inserts.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates cache_entries and its foreign key to users. The users
// table must exist first.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&EntryRecord{}); err != nil {
		return fmt.Errorf("migrate cache_entries: %w", err)
	}
	if err := db.WithContext(ctx).Exec(addUserForeignKey).Error; err != nil {
		return fmt.Errorf("add cache_entries user foreign key: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, entry *models.CacheEntry) (*models.CacheEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry is required")
	}
	rec := EntryRecord{
		Fingerprint: entry.Fingerprint.String(),
		UserID:      uuid.UUID(entry.UserID),
		Fields:      entry.Fields,
		Edits:       entry.Edits,
		CreatedAt:   entry.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("insert cache entry: %w", err)
	}
	return rec.toModel(), nil
}

func (s *PostgresStore) Latest(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) (*models.CacheEntry, error) {
	var rec EntryRecord
	err := s.scoped(ctx, fingerprint, userID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cache entry: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find latest cache entry: %w", err)
	}
	return rec.toModel(), nil
}

func (s *PostgresStore) History(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) ([]*models.CacheEntry, error) {
	var recs []EntryRecord
	if err := s.scoped(ctx, fingerprint, userID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	out := make([]*models.CacheEntry, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toModel())
	}
	return out, nil
}

// scoped filters by owner as well as fingerprint and orders newest first.
func (s *PostgresStore) scoped(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("fingerprint = ? AND user_id = ?", fingerprint.String(), uuid.UUID(userID)).
		Order("created_at DESC").
		Order("id DESC")
}

func (r *EntryRecord) toModel() *models.CacheEntry {
	return &models.CacheEntry{
		ID:          r.ID,
		Fingerprint: models.Fingerprint(r.Fingerprint),
		UserID:      id.UserID(r.UserID),
		Fields:      r.Fields,
		Edits:       r.Edits,
		CreatedAt:   r.CreatedAt,
	}
}
