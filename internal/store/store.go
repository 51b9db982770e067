// Package store persists the student questionnaire record. Exactly one
// record is live at a time; a new submission overwrites the previous one.
package store

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned when the configured backend cannot be reached
// or a write did not complete. A previously stored record is never left
// half-written: both backends replace the record atomically.
var ErrUnavailable = errors.New("storage unavailable")

// Record holds the four questionnaire answers submitted by the student.
type Record struct {
	Q1 string `json:"q1"`
	Q2 string `json:"q2"`
	Q3 string `json:"q3"`
	Q4 string `json:"q4"`
}

// Store is the questionnaire persistence backend. Load returns (nil, nil)
// when no record has ever been saved; that is a normal state, not an error.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context) (*Record, error)
}

// Config selects the backend. Both RedisURL and RedisToken must be present
// for the Redis backend; anything less selects the file backend.
type Config struct {
	RedisURL   string
	RedisToken string
	FilePath   string
}

// New picks the backend once from configuration. The choice is fixed for
// the process lifetime; there is no per-call fallback between backends.
func New(cfg Config, log logrus.FieldLogger) Store {
	if cfg.RedisURL != "" && cfg.RedisToken != "" {
		rs, err := NewRedisStore(cfg.RedisURL, cfg.RedisToken, log)
		if err != nil {
			log.WithError(err).Warn("Redis configuration rejected, falling back to file storage")
		} else {
			log.WithField("method", "redis").Info("Storage backend initialized")
			return rs
		}
	} else if cfg.RedisURL != "" || cfg.RedisToken != "" {
		log.Warn("Partial Redis configuration ignored (need both URL and token), using file storage")
	}

	log.WithFields(logrus.Fields{"method": "file", "path": cfg.FilePath}).Info("Storage backend initialized")
	return NewFileStore(cfg.FilePath, log)
}
