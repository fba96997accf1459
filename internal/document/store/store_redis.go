package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"docucred/internal/document/models"
	id "docucred/pkg/domain"
	"docucred/pkg/platform/sentinel"
)

const (
	redisSeqKey    = "docucred:cache:seq"
	redisKeyPrefix = "docucred:cache:"
)

// appendScript assigns the sequence ID and appends in one step, so list
// order always matches ID order. Elements are "<id>:<json>".
var appendScript = goredis.NewScript(`
local id = redis.call('INCR', KEYS[1])
redis.call('RPUSH', KEYS[2], id .. ':' .. ARGV[1])
return id
`)

type redisEntry struct {
	Fields    string    `json:"fields"`
	Edits     *string   `json:"edits,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore keeps one list per (fingerprint, user).
type RedisStore struct {
	client goredis.Cmdable
}

func NewRedis(client goredis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func entryListKey(fingerprint models.Fingerprint, userID id.UserID) string {
	return redisKeyPrefix + fingerprint.String() + ":" + userID.String()
}

func (s *RedisStore) Record(ctx context.Context, entry *models.CacheEntry) (*models.CacheEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry is required")
	}
	payload, err := json.Marshal(redisEntry{Fields: entry.Fields, Edits: entry.Edits, CreatedAt: entry.CreatedAt})
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}

	seq, err := appendScript.Run(ctx, s.client,
		[]string{redisSeqKey, entryListKey(entry.Fingerprint, entry.UserID)},
		string(payload),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("append cache entry: %w", err)
	}

	stored := cloneEntry(entry)
	stored.ID = seq
	return stored, nil
}

// Latest scans the pair's list and applies the most-recent-wins rule, so
// clock skew between writers cannot hide a newer entry behind list order.
func (s *RedisStore) Latest(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) (*models.CacheEntry, error) {
	entries, err := s.load(ctx, fingerprint, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("cache entry: %w", sentinel.ErrNotFound)
	}
	return entries[0], nil
}

func (s *RedisStore) History(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) ([]*models.CacheEntry, error) {
	return s.load(ctx, fingerprint, userID)
}

func (s *RedisStore) load(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) ([]*models.CacheEntry, error) {
	raw, err := s.client.LRange(ctx, entryListKey(fingerprint, userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read cache entries: %w", err)
	}

	out := make([]*models.CacheEntry, 0, len(raw))
	for _, element := range raw {
		entry, err := decodeRedisEntry(element)
		if err != nil {
			return nil, err
		}
		entry.Fingerprint = fingerprint
		entry.UserID = userID
		out = append(out, entry)
	}
	newestFirst(out)
	return out, nil
}

func decodeRedisEntry(element string) (*models.CacheEntry, error) {
	seqText, payload, ok := strings.Cut(element, ":")
	if !ok {
		return nil, fmt.Errorf("malformed cache entry element")
	}
	seq, err := strconv.ParseInt(seqText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cache entry id: %w", err)
	}
	var rec redisEntry
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &models.CacheEntry{
		ID:        seq,
		Fields:    rec.Fields,
		Edits:     rec.Edits,
		CreatedAt: rec.CreatedAt,
	}, nil
}
