package guidance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrSessionEnded is returned by Session.Do once Run has returned
var ErrSessionEnded = errors.New("guidance session ended")

type command struct {
	fn   func(e *Engine) error
	done chan error
}

//Session owns an Engine and feeds it fixes, ticks, control commands and delay lookups from a single goroutine
type Session struct {
	log           *log.Logger
	engine        *Engine
	source        FixSource
	sink          AnnouncementSink
	lookup        DelayLookup
	lookupEvery   time.Duration
	lookupTimeout time.Duration
	commands      chan command
	stopped       chan struct{}
}

//NewSession creates a Session. lookup may be nil, delay is then always unknown
func NewSession(log *log.Logger,
	engine *Engine,
	source FixSource,
	sink AnnouncementSink,
	lookup DelayLookup,
	lookupEvery time.Duration,
	lookupTimeout time.Duration) *Session {
	return &Session{
		log:           log,
		engine:        engine,
		source:        source,
		sink:          sink,
		lookup:        lookup,
		lookupEvery:   lookupEvery,
		lookupTimeout: lookupTimeout,
		commands:      make(chan command),
		stopped:       make(chan struct{}),
	}
}

//Do runs fn against the engine on the session goroutine, between fixes, and returns its error
func (s *Session) Do(ctx context.Context, fn func(e *Engine) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return ErrSessionEnded
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

//Run starts the engine and processes events until ctx is done or the fix source fails.
//In flight delay lookups are cancelled and their results discarded on return
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopped)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fixes := make(chan Fix)
	sourceErr := make(chan error, 1)
	go s.pumpFixes(ctx, fixes, sourceErr)

	s.sink.Publish(s.engine.Start())
	defer s.engine.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lookupTick <-chan time.Time
	if s.lookup != nil && s.lookupEvery > 0 {
		lookupTicker := time.NewTicker(s.lookupEvery)
		defer lookupTicker.Stop()
		lookupTick = lookupTicker.C
	}
	lookupResults := make(chan LookupResult, 1)
	lookupInFlight := false

	for {
		select {
		case <-ctx.Done():
			s.log.Printf("Exiting on shutdown signal")
			return nil
		case err := <-sourceErr:
			return fmt.Errorf("position source failed: %w", err)
		case f := <-fixes:
			s.sink.Publish(s.engine.HandleFix(f))
		case cmd := <-s.commands:
			cmd.done <- cmd.fn(s.engine)
		case <-ticker.C:
			s.sink.Publish(s.engine.Tick())
		case <-lookupTick:
			if lookupInFlight {
				break
			}
			lookupInFlight = true
			go s.runLookup(ctx, s.engine.LookupRequest(), lookupResults)
		case r := <-lookupResults:
			lookupInFlight = false
			s.engine.ApplyLookup(r)
		}
	}
}

//pumpFixes moves fixes from the source onto fixes until ctx is done
func (s *Session) pumpFixes(ctx context.Context, fixes chan<- Fix, sourceErr chan<- error) {
	for {
		f, err := s.source.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				sourceErr <- err
			}
			return
		}
		select {
		case fixes <- f:
		case <-ctx.Done():
			return
		}
	}
}

//runLookup performs one delay lookup bounded by lookupTimeout. A failure reports the delay as unknown
func (s *Session) runLookup(ctx context.Context, req LookupRequest, results chan<- LookupResult) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	r, err := s.lookup.Lookup(lookupCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Printf("delay lookup for %s failed: %v", req.TrainNumber, err)
		r = LookupResult{TrainNumber: req.TrainNumber}
	}
	select {
	case results <- r:
	case <-ctx.Done():
	}
}
