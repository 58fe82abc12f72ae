package crawl

import (
	"context"
	"time"
)

// Engine fetches a URL with a browser-like client and returns the rendered
// page. Implementations must honor ctx cancellation and cfg.Timeout.
type Engine interface {
	Fetch(ctx context.Context, url string, browser BrowserConfig, run RunConfig) (Result, error)
}

// Session is a live browser bound to one profile directory. Navigations share
// cookies and storage; closing the session persists them to the profile.
type Session interface {
	Navigate(ctx context.Context, url string, run RunConfig) (Result, error)
	Close() error
}

// SessionEngine opens long-lived browser sessions for login flows that need
// several navigations against the same window.
type SessionEngine interface {
	OpenSession(ctx context.Context, browser BrowserConfig) (Session, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration or until the context is done. Abstracted so
// the orchestrator's wait loops run instantly under test.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces request/session IDs.
type IDGenerator interface {
	NewID() (string, error)
}
