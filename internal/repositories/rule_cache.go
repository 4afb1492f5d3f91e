package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const ruleCachePrefix = "fieldmap:rules:"

// DefaultRuleCacheTTL bounds staleness when an invalidation is missed (e.g. a
// rule edited directly in the database).
const DefaultRuleCacheTTL = 5 * time.Minute

// CachedFieldMappingRepository decorates a FieldMappingRepository with a
// per-direction Redis cache. Reads are cache-first; any rule write eagerly
// invalidates every direction key. Cache failures degrade to the underlying
// repository, never to an error.
type CachedFieldMappingRepository struct {
	inner  FieldMappingRepository
	client *redis.Client
	ttl    time.Duration
}

func NewCachedFieldMappingRepository(inner FieldMappingRepository, client *redis.Client, ttl time.Duration) *CachedFieldMappingRepository {
	if ttl <= 0 {
		ttl = DefaultRuleCacheTTL
	}
	return &CachedFieldMappingRepository{inner: inner, client: client, ttl: ttl}
}

func (r *CachedFieldMappingRepository) ListActive(ctx context.Context, direction models.SyncDirection) ([]*models.FieldMapping, error) {
	key := ruleCacheKey(direction)

	data, err := r.client.Get(ctx, key).Result()
	if err == nil {
		var mappings []*models.FieldMapping
		if jsonErr := json.Unmarshal([]byte(data), &mappings); jsonErr == nil {
			return mappings, nil
		}
		// Corrupt entry: drop it and fall through to the database.
		r.client.Del(ctx, key)
	} else if err != redis.Nil {
		log.Printf("rule cache read failed for %s: %v", direction, err)
	}

	mappings, err := r.inner.ListActive(ctx, direction)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(mappings); err == nil {
		if err := r.client.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
			log.Printf("rule cache write failed for %s: %v", direction, err)
		}
	}
	return mappings, nil
}

func (r *CachedFieldMappingRepository) Create(ctx context.Context, fm *models.FieldMapping) error {
	if err := r.inner.Create(ctx, fm); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedFieldMappingRepository) Update(ctx context.Context, fm *models.FieldMapping) error {
	if err := r.inner.Update(ctx, fm); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedFieldMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedFieldMappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FieldMapping, error) {
	return r.inner.GetByID(ctx, id)
}

// invalidate drops every direction's cached rule set. A rule marked
// bidirectional lands in multiple sets, so partial invalidation is never
// correct.
func (r *CachedFieldMappingRepository) invalidate(ctx context.Context) {
	keys := []string{
		ruleCacheKey(models.DirectionToRemote),
		ruleCacheKey(models.DirectionFromRemote),
		ruleCacheKey(models.DirectionBidirectional),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("rule cache invalidation failed: %v", err)
	}
}

func ruleCacheKey(direction models.SyncDirection) string {
	return fmt.Sprintf("%s%s", ruleCachePrefix, direction)
}
