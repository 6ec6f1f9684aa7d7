// Package store keeps exercise session records and per-user progress.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session or progress document does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is one attempt at naming a word within a session.
type SessionRecord struct {
	WordID         int     `json:"word_id"`
	Result         string  `json:"result"`
	CueLevel       int     `json:"cue_level"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	PointsEarned   int     `json:"points_earned"`
	Timestamp      string  `json:"timestamp"`
}

// NewSession is the client payload for a finished session.
type NewSession struct {
	UserID  int64           `json:"user_id"`
	Records []SessionRecord `json:"records"`
	Stats   map[string]any  `json:"stats"`
}

// Session is a stored session with its summary columns.
type Session struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	Date              time.Time       `json:"date"`
	TotalWords        int             `json:"total_words"`
	CorrectWords      int             `json:"correct_words"`
	IncorrectWords    int             `json:"incorrect_words"`
	AccuracyPercent   float64         `json:"accuracy_percent"`
	AvgResponseTimeMs float64         `json:"avg_response_time_ms"`
	TotalPoints       int             `json:"total_points"`
	Records           []SessionRecord `json:"records"`
	Stats             map[string]any  `json:"stats"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Sessions stores exercise sessions.
type Sessions interface {
	CreateSession(ctx context.Context, s NewSession) (int64, error)
	Session(ctx context.Context, id int64) (*Session, error)
	// UserSessions returns a user's sessions newest first. limit <= 0 means all.
	UserSessions(ctx context.Context, userID int64, limit int) ([]Session, error)
}

// Progress stores one free-form progress document per user.
type Progress interface {
	PutProgress(ctx context.Context, userID string, doc map[string]any) error
	Progress(ctx context.Context, userID string) (map[string]any, error)
}

// Store is a complete record store.
type Store interface {
	Sessions
	Progress
	Name() string
	HealthCheck(ctx context.Context) error
	Close()
}

// DefaultProgress is returned for users who have not stored progress yet.
func DefaultProgress() map[string]any {
	return map[string]any{
		"total_points":              0,
		"current_level":             1,
		"achievements":              []any{},
		"session_history":           []any{},
		"current_streak":            0,
		"longest_streak":            0,
		"total_exercises_completed": 0,
	}
}

// buildSession fills the summary columns from the client-reported stats and
// stamps records that carry no timestamp.
func buildSession(id int64, in NewSession, now time.Time) Session {
	stamp := now.Format(time.RFC3339)
	records := make([]SessionRecord, len(in.Records))
	copy(records, in.Records)
	for i := range records {
		if records[i].Timestamp == "" {
			records[i].Timestamp = stamp
		}
	}
	stats := in.Stats
	if stats == nil {
		stats = map[string]any{}
	}
	return Session{
		ID:                id,
		UserID:            in.UserID,
		Date:              now,
		TotalWords:        int(number(stats, "total_words")),
		CorrectWords:      int(number(stats, "correct")),
		IncorrectWords:    int(number(stats, "incorrect")),
		AccuracyPercent:   number(stats, "accuracy"),
		AvgResponseTimeMs: number(stats, "avg_response_time"),
		TotalPoints:       int(number(stats, "total_points")),
		Records:           records,
		Stats:             stats,
		CreatedAt:         now,
	}
}

// number reads a numeric stat, tolerating the int/float shapes JSON decoding produces.
func number(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
