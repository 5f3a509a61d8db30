// ABOUTME: Application controller shared by the control surfaces
// ABOUTME: Owns the parameter store, the device backend and the single active session
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mictroll/mictroll-go/internal/observe"
	"github.com/mictroll/mictroll-go/pkg/audio"
	"github.com/mictroll/mictroll-go/pkg/audio/device"
	"github.com/mictroll/mictroll-go/pkg/effects"
	"github.com/mictroll/mictroll-go/pkg/params"
	"github.com/mictroll/mictroll-go/pkg/session"
)

// ErrControllerClosed is returned by Start after Close
var ErrControllerClosed = errors.New("controller closed")

// Monitor is a session monitor the controller releases on Close
type Monitor interface {
	session.Monitor
	Close() error
}

// Config holds controller configuration
type Config struct {
	Format    audio.Format
	SinkMatch string
	Backend   device.Backend

	// Params defaults to a store holding params.Defaults()
	Params *params.Store

	Bed     session.Bed
	Monitor Monitor
	Metrics *observe.Metrics

	// NewRand seeds each session's effect chain; clock-seeded when nil
	NewRand func() effects.Rand

	// OnDeviceNotFound receives the driver install URL when the sink is missing
	OnDeviceNotFound func(installURL string)

	// OnStateChange mirrors the active session's transitions
	OnStateChange func(session.State)
}

// Status is a snapshot of the controller for display
type Status struct {
	State         session.State
	SessionID     string
	SinkIndex     int
	SinkMatch     string
	Stats         session.Stats
	Params        params.Parameters
	LastError     error
	DeviceMissing bool
}

// Controller starts and stops sessions, one at a time
type Controller struct {
	config Config
	params *params.Store

	// opMu serializes Start, Stop and Close
	opMu sync.Mutex

	mu      sync.Mutex
	current *session.Session
	lastErr error
	missing bool
	closed  bool
}

// NewController creates a controller with no session
func NewController(config Config) (*Controller, error) {
	if config.Backend == nil {
		return nil, fmt.Errorf("controller requires a device backend")
	}
	if config.Format == (audio.Format{}) {
		config.Format = audio.DefaultFormat()
	}
	if config.SinkMatch == "" {
		config.SinkMatch = device.DefaultSinkMatch
	}
	if config.Params == nil {
		config.Params = params.NewStore(params.Defaults())
	}

	return &Controller{
		config: config,
		params: config.Params,
	}, nil
}

// Params returns the shared parameter store
func (c *Controller) Params() *params.Store {
	return c.params
}

// Start launches a new session unless one is already active
func (c *Controller) Start() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.current != nil && c.current.State().Active() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	cfg := session.Config{
		Format:        c.config.Format,
		SinkMatch:     c.config.SinkMatch,
		Backend:       c.config.Backend,
		Params:        c.params,
		Bed:           c.config.Bed,
		OnStateChange: c.config.OnStateChange,
		OnError:       c.recordError,
	}
	if c.config.Monitor != nil {
		cfg.Monitor = c.config.Monitor
	}
	if c.config.NewRand != nil {
		cfg.Rand = c.config.NewRand()
	}
	if c.config.Metrics != nil {
		cfg.Observer = c.config.Metrics.SessionObserver()
	}

	s, err := session.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	c.mu.Lock()
	c.current = s
	c.lastErr = nil
	c.missing = false
	c.mu.Unlock()

	log.Printf("Starting session %s", s.ID())
	err = s.Start()
	c.recordStart(err)
	if err == nil {
		return nil
	}

	var nf *device.NotFoundError
	if errors.As(err, &nf) {
		c.mu.Lock()
		c.missing = true
		c.mu.Unlock()
		if c.config.OnDeviceNotFound != nil {
			c.config.OnDeviceNotFound(nf.InstallURL)
		}
	}
	return err
}

// Stop stops the active session and waits for its streams to close
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()

	if s == nil {
		return
	}
	s.Stop()
}

// Status returns the current state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:         session.Idle,
		SinkIndex:     -1,
		SinkMatch:     c.config.SinkMatch,
		Params:        c.params.Snapshot(),
		LastError:     c.lastErr,
		DeviceMissing: c.missing,
	}
	if c.current != nil {
		st.State = c.current.State()
		st.SessionID = c.current.ID()
		st.SinkIndex = c.current.SinkIndex()
		st.Stats = c.current.Stats()
	}
	return st
}

// Devices lists the backend's devices
func (c *Controller) Devices() ([]device.Info, error) {
	return c.config.Backend.Devices()
}

// Close stops any session and releases the monitor and the backend
func (c *Controller) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.stopLocked()

	var errs []error
	if c.config.Monitor != nil {
		if err := c.config.Monitor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close monitor: %w", err))
		}
	}
	if err := c.config.Backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close backend: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Controller) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Controller) recordStart(err error) {
	if c.config.Metrics == nil {
		return
	}
	result := observe.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, device.ErrDeviceNotFound):
		result = observe.ResultDeviceNotFound
	case errors.Is(err, session.ErrStreamOpen):
		result = observe.ResultStreamOpen
	default:
		result = observe.ResultError
	}
	c.config.Metrics.RecordSessionStart(context.Background(), result)
}
