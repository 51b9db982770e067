package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// recordKey is the single key the record lives under in the remote namespace.
const recordKey = "student_responses"

// RedisStore keeps the record under one fixed key in a remote Redis
// namespace. Write atomicity is the server's own: a SET either lands in
// full or not at all.
type RedisStore struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// NewRedisStore parses rawURL (redis:// or rediss://) and authenticates
// with token as the password, matching managed key-value providers that
// hand out a URL plus an access token.
func NewRedisStore(rawURL, token string, log logrus.FieldLogger) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if token != "" {
		opts.Password = token
	}

	return &RedisStore{client: redis.NewClient(opts), log: log}, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding record: %v", ErrUnavailable, err)
	}

	if err := s.client.Set(ctx, recordKey, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: SET %s: %v", ErrUnavailable, recordKey, err)
	}

	s.log.WithFields(logrus.Fields{"method": "redis", "key": recordKey}).Info("Student responses saved")
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.client.Get(ctx, recordKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrUnavailable, recordKey, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrUnavailable, recordKey, err)
	}

	s.log.WithFields(logrus.Fields{"method": "redis", "key": recordKey}).Debug("Student responses loaded")
	return &rec, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
