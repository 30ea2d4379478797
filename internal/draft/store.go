// internal/draft/store.go
package draft

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/wizard"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no usable draft exists for a session.
var ErrNotFound = stderrors.New("DRAFT_NOT_FOUND")

// Store keeps one serialized wizard state per session under
// "<keyPrefix>:<sessionID>".
type Store struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
	logger    logger.Logger
}

// NewStore builds a draft store. A zero ttl keeps drafts until deleted.
func NewStore(client redis.Cmdable, keyPrefix string, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    log.WithFields(map[string]interface{}{"component": "draft-store"}),
	}
}

func (s *Store) Key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, sessionID)
}

// Save writes the full state snapshot. Transient fields are not persisted.
func (s *Store) Save(ctx context.Context, sessionID string, st *wizard.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("encode draft: %w", err))
	}
	if err := s.client.Set(ctx, s.Key(sessionID), data, s.ttl).Err(); err != nil {
		return errors.NewDraftStorageFailedError(fmt.Errorf("save draft %s: %w", sessionID, err))
	}
	return nil
}

// Load returns the stored state. A missing key and an undecodable payload
// both yield ErrNotFound; the latter is logged and left for the next Save to
// overwrite.
func (s *Store) Load(ctx context.Context, sessionID string) (*wizard.State, error) {
	data, err := s.client.Get(ctx, s.Key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewDraftStorageFailedError(fmt.Errorf("load draft %s: %w", sessionID, err))
	}

	st := wizard.NewState(time.Now())
	if err := json.Unmarshal(data, st); err != nil {
		s.logger.Warn("discarding unreadable draft", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return nil, ErrNotFound
	}
	if st.CurrentStep < 0 || st.CurrentStep >= wizard.StepCount {
		st.CurrentStep = 0
	}
	return st.Clone(), nil
}

// Exists reports whether a draft is stored for the session.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.Key(sessionID)).Result()
	if err != nil {
		return false, errors.NewDraftStorageFailedError(err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return errors.NewDraftStorageFailedError(fmt.Errorf("delete draft %s: %w", sessionID, err))
	}
	return nil
}
