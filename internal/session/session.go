// Package session persists pipeline sessions and intermediate stage
// artifacts in Redis so follow-up questions and artifact fetches work across
// service instances.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timothy-han/mara/internal/cache"
	"github.com/timothy-han/mara/pkg/models"
)

var ErrNotFound = errors.New("session not found or expired")

// Store is the session access interface.
type Store interface {
	PutSession(ctx context.Context, sess *models.Session) error
	GetSession(ctx context.Context, conversationID string) (*models.Session, error)
	// AppendHistory adds turns to an existing session's history. Follow-ups
	// on one session are assumed serialized by the client; the write is
	// last-writer-wins.
	AppendHistory(ctx context.Context, conversationID string, turns ...models.Message) error

	PutArtifact(ctx context.Context, conversationID string, stage int, text string) error
	GetArtifact(ctx context.Context, resultID string) (string, error)
}

// RedisStore implements Store on top of the shared cache.
type RedisStore struct {
	cache       cache.Cache
	sessionTTL  time.Duration
	artifactTTL time.Duration
}

func NewRedisStore(c cache.Cache, sessionTTL, artifactTTL time.Duration) *RedisStore {
	return &RedisStore{
		cache:       c,
		sessionTTL:  sessionTTL,
		artifactTTL: artifactTTL,
	}
}

func (s *RedisStore) PutSession(ctx context.Context, sess *models.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.cache.Set(ctx, cache.SessionKey(sess.ConversationID), b, s.sessionTTL); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, conversationID string) (*models.Session, error) {
	b, found, err := s.cache.Get(ctx, cache.SessionKey(conversationID))
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	var sess models.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) AppendHistory(ctx context.Context, conversationID string, turns ...models.Message) error {
	sess, err := s.GetSession(ctx, conversationID)
	if err != nil {
		return err
	}
	sess.History = append(sess.History, turns...)
	// Re-put refreshes the TTL; an active conversation stays alive.
	return s.PutSession(ctx, sess)
}

func (s *RedisStore) PutArtifact(ctx context.Context, conversationID string, stage int, text string) error {
	return s.cache.Set(ctx, cache.ArtifactKey(conversationID, stage), []byte(text), s.artifactTTL)
}

func (s *RedisStore) GetArtifact(ctx context.Context, resultID string) (string, error) {
	// Artifact ids are embedded in client-visible URLs; strip traversal
	// sequences before keying into the cache.
	safe := strings.ReplaceAll(resultID, "..", "")
	b, found, err := s.cache.Get(ctx, cache.ResultKey(safe))
	if err != nil {
		return "", fmt.Errorf("fetch artifact: %w", err)
	}
	if !found {
		return "", ErrNotFound
	}
	return string(b), nil
}

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
