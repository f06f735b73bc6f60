package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when the driver has no live tracking session.
var ErrNoSession = errors.New("no active tracking session")

const (
	keyPrefix  = "tracking:session:"
	maxRetries = 5
)

// Session is a driver's GPS tracking session.
// It disappears on its own once no sample has arrived within the stale window.
type Session struct {
	DriverID       string   `json:"driver_id"`
	OrganizationID string   `json:"organization_id"`
	StartedAt      int64    `json:"started_at"`
	LastSampleAt   *int64   `json:"last_sample_at,omitempty"`
	LastLatitude   *float64 `json:"last_latitude,omitempty"`
	LastLongitude  *float64 `json:"last_longitude,omitempty"`
	// CurrentStop is the 0-based index of the next route stop; it only moves forward.
	CurrentStop int `json:"current_stop"`
}

// RedisStore keeps tracking sessions in Redis with a sliding TTL.
type RedisStore struct {
	client     *redis.Client
	staleAfter time.Duration
}

// NewRedisStore creates a session store.
// The redisURL should be in the format: redis://[:password@]host[:port][/database]
func NewRedisStore(redisURL string, staleAfter time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return NewRedisStoreFromClient(redis.NewClient(opts), staleAfter), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, staleAfter time.Duration) *RedisStore {
	return &RedisStore{client: client, staleAfter: staleAfter}
}

// Client exposes the underlying connection so other components can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func sessionKey(driverID string) string {
	return keyPrefix + driverID
}

// Start creates (or replaces) the driver's session.
func (s *RedisStore) Start(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.DriverID), data, s.staleAfter).Err(); err != nil {
		return fmt.Errorf("failed to store session for %s: %w", session.DriverID, err)
	}
	return nil
}

// Get returns the driver's live session or ErrNoSession.
func (s *RedisStore) Get(ctx context.Context, driverID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(driverID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session for %s: %w", driverID, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session for %s: %w", driverID, err)
	}
	return &session, nil
}

// Touch records a GPS sample and extends the session's lifetime.
func (s *RedisStore) Touch(ctx context.Context, driverID string, lat, lng float64, at int64) (*Session, error) {
	return s.update(ctx, driverID, func(session *Session) {
		session.LastSampleAt = &at
		session.LastLatitude = &lat
		session.LastLongitude = &lng
	})
}

// AdvanceStop moves the current-stop pointer forward by one.
func (s *RedisStore) AdvanceStop(ctx context.Context, driverID string) (*Session, error) {
	return s.update(ctx, driverID, func(session *Session) {
		session.CurrentStop++
	})
}

// Stop ends the session. Stopping an absent session is not an error.
func (s *RedisStore) Stop(ctx context.Context, driverID string) error {
	if err := s.client.Del(ctx, sessionKey(driverID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", driverID, err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// update applies fn under WATCH so concurrent writers for one driver never clobber each other.
func (s *RedisStore) update(ctx context.Context, driverID string, fn func(*Session)) (*Session, error) {
	key := sessionKey(driverID)
	var result Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNoSession
		}
		if err != nil {
			return err
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		fn(&session)

		encoded, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.staleAfter)
			return nil
		})
		if err == nil {
			result = session
		}
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return &result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNoSession) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to update session for %s: %w", driverID, err)
	}
	return nil, fmt.Errorf("failed to update session for %s: too much contention", driverID)
}
