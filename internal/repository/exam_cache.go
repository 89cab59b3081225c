package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/config"
	"github.com/stemsi/studyplan-backend/internal/model"
)

// ExamSource is the read side of the exam store that the cache wraps.
type ExamSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetByCode(ctx context.Context, code string) (*model.Exam, error)
}

// CachedExamStore is a read-through Redis cache in front of an ExamSource.
// Redis failures degrade to direct reads.
type CachedExamStore struct {
	src ExamSource
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedExamStore wraps src with a Redis cache holding exams for ttl.
func NewCachedExamStore(src ExamSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedExamStore {
	return &CachedExamStore{
		src: src,
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "exam_cache").Logger(),
	}
}

// GetByID returns the exam, loading and caching it on a miss.
func (s *CachedExamStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	if exam, ok := s.read(ctx, config.CacheKey.ExamKey(id.String())); ok {
		return exam, nil
	}

	exam, err := s.src.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, exam)
	return exam, nil
}

// GetByCode resolves the code to an id through the cache before loading.
func (s *CachedExamStore) GetByCode(ctx context.Context, code string) (*model.Exam, error) {
	id, err := s.rdb.Get(ctx, config.CacheKey.ExamCodeKey(code)).Result()
	if err == nil {
		if exam, ok := s.read(ctx, config.CacheKey.ExamKey(id)); ok && exam.ExamCode == code {
			return exam, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("exam code lookup failed, reading through")
	}

	exam, err := s.src.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.store(ctx, exam)
	return exam, nil
}

// Invalidate drops the cached exam and its code mapping.
func (s *CachedExamStore) Invalidate(ctx context.Context, exam *model.Exam) error {
	keys := []string{config.CacheKey.ExamKey(exam.ID.String())}
	if exam.ExamCode != "" {
		keys = append(keys, config.CacheKey.ExamCodeKey(exam.ExamCode))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate exam %s: %w", exam.ID, err)
	}
	return nil
}

func (s *CachedExamStore) read(ctx context.Context, key string) (*model.Exam, bool) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}

	var exam model.Exam
	if err := json.Unmarshal(data, &exam); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		s.rdb.Del(ctx, key)
		return nil, false
	}
	return &exam, true
}

func (s *CachedExamStore) store(ctx context.Context, exam *model.Exam) {
	data, err := json.Marshal(exam)
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("encode exam for cache")
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamKey(exam.ID.String()), data, s.ttl)
	if exam.ExamCode != "" {
		pipe.Set(ctx, config.CacheKey.ExamCodeKey(exam.ExamCode), exam.ID.String(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("cache write failed")
	}
}
