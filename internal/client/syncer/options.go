package syncer

import (
	"time"

	"github.com/dmitrijs2005/groundwatch/internal/logging"
)

// DefaultMaxRetries is the retry ceiling used when none is configured.
const DefaultMaxRetries = 3

type Option func(*Manager)

// WithBaseURL sets the origin relative request URLs are resolved against.
func WithBaseURL(base string) Option {
	return func(m *Manager) {
		m.baseURL = base
	}
}

// WithMaxRetries sets the retry ceiling. Values below 1 are ignored.
func WithMaxRetries(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxRetries = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
