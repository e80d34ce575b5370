package event

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Owner reports whether the calling goroutine is the designated one.
type Owner interface {
	IsOwner() bool
}

// FatalHandler receives thread affinity violations. It is not expected to
// return; if it does, the offending operation is dropped.
type FatalHandler func(err *AffinityError)

// Observer receives hub activity. Implementations must be cheap and must
// not call back into the hub.
type Observer interface {
	EventEmitted(kind Kind)
	ListenerFailed(kind Kind)
	ListenerDispatched(kind Kind, took time.Duration)
	ListenersChanged(kind Kind, count int)
}

// HubOption configures a Hub.
type HubOption func(*hubConfig)

type hubConfig struct {
	owner    Owner
	fatal    FatalHandler
	logger   zerolog.Logger
	observer Observer
}

func defaultHubConfig() hubConfig {
	return hubConfig{
		logger:   zerolog.Nop(),
		observer: nopObserver{},
	}
}

// WithOwner enables the affinity check on Emit.
func WithOwner(owner Owner) HubOption {
	return func(c *hubConfig) {
		c.owner = owner
	}
}

// WithFatalHandler replaces the default fatal handler.
func WithFatalHandler(h FatalHandler) HubOption {
	return func(c *hubConfig) {
		if h != nil {
			c.fatal = h
		}
	}
}

// WithLogger sets the logger used for listener failures and violations.
func WithLogger(logger zerolog.Logger) HubOption {
	return func(c *hubConfig) {
		c.logger = logger
	}
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) HubOption {
	return func(c *hubConfig) {
		if o != nil {
			c.observer = o
		}
	}
}

// FatalExit returns the default fatal handler: it logs the violation with
// its stack at fatal level and exits with status 1.
func FatalExit(logger zerolog.Logger) FatalHandler {
	return func(err *AffinityError) {
		logger.WithLevel(zerolog.FatalLevel).
			Err(err).
			Uint64("goroutine", err.Goroutine).
			Bytes("stack", err.Stack).
			Msg("thread affinity violation")
		os.Exit(1)
	}
}

type nopObserver struct{}

func (nopObserver) EventEmitted(Kind)                      {}
func (nopObserver) ListenerFailed(Kind)                    {}
func (nopObserver) ListenerDispatched(Kind, time.Duration) {}
func (nopObserver) ListenersChanged(Kind, int)             {}
