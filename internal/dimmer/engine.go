package dimmer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/units"
)

// minSweep guards against absurd user-supplied sweep times; anything
// shorter behaves like an instant set anyway.
const minSweep = 100 * time.Millisecond

// Engine is the per-entity transition state machine. It converts raise,
// lower and stop intents into single bridge transition commands, tracks
// interpolated brightness while a ramp is in flight, and guarantees at most
// one active transition per entity.
type Engine struct {
	bridge     Bridge
	store      *store
	staleAfter time.Duration

	now func() time.Time // swapped out in tests
}

// New creates an engine. staleAfter bounds how long a cached brightness is
// trusted before a fresh bridge read is forced; zero disables caching.
func New(bridge Bridge, staleAfter time.Duration) *Engine {
	return &Engine{
		bridge:     bridge,
		store:      newStore(),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Close cancels all pending completion timers and clears cached state.
func (e *Engine) Close() {
	e.store.close()
}

// Raise starts (or replaces) an upward ramp towards limit. sweep is the
// time a full 0-100% traversal would take; the actual transition is scaled
// to the remaining distance.
func (e *Engine) Raise(ctx context.Context, t Target, sweep time.Duration, limit float64) error {
	if limit <= 0 || limit > 100 {
		return fmt.Errorf("raise limit %.1f%% must be in (0,100]: %w", limit, units.ErrInvalidRange)
	}
	return e.transition(ctx, t, DirectionRaising, sweep, limit)
}

// Lower starts (or replaces) a downward ramp towards limit. A limit of
// exactly 0 powers the fixture off when the ramp completes; any non-zero
// limit, however small, leaves it on.
func (e *Engine) Lower(ctx context.Context, t Target, sweep time.Duration, limit float64) error {
	if limit < 0 || limit >= 100 {
		return fmt.Errorf("lower limit %.1f%% must be in [0,100): %w", limit, units.ErrInvalidRange)
	}
	return e.transition(ctx, t, DirectionLowering, sweep, limit)
}

func (e *Engine) transition(ctx context.Context, t Target, dir Direction, sweep time.Duration, limit float64) error {
	if sweep <= 0 {
		return fmt.Errorf("sweep time %s must be positive: %w", sweep, units.ErrInvalidRange)
	}
	if sweep < minSweep {
		sweep = minSweep
	}

	st := e.store.get(t)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := e.now()

	// Best-known current brightness: interpolated from an in-flight ramp,
	// else cache, else a synchronous bridge read.
	start, err := e.currentBrightnessLocked(ctx, st, now)
	if err != nil {
		return err
	}
	if st.transition == nil && !st.power {
		// A powered-off fixture ramps from 0% regardless of the
		// brightness it has stored for its next turn-on.
		start = 0
	}

	// Supersede any in-flight transition. Cancelling the timer before the
	// new command goes out prevents a stale callback from clearing the
	// record we are about to install.
	e.clearTransitionLocked(st)

	var distance float64
	if dir == DirectionRaising {
		distance = limit - start
	} else {
		distance = start - limit
	}
	if distance < units.MinStepPercent {
		// Already at or beyond the limit; entity stays idle.
		log.Debug().
			Str("entity", t.ID).
			Float64("current", start).
			Float64("limit", limit).
			Msg("Transition skipped, nothing to do")
		return nil
	}

	rate := 100 / sweep.Seconds()
	remaining := time.Duration(distance / rate * float64(time.Second))

	var power *bool
	switch {
	case dir == DirectionRaising:
		// 0% counts as off for ramp purposes, so raising always powers on.
		power = boolPtr(true)
	case limit == 0:
		power = boolPtr(false)
	}

	if err := e.bridge.WriteTransition(ctx, st.target, limit, remaining, power); err != nil {
		// Command never took effect: entity reverts to idle, cache stays
		// at its pre-call value.
		return err
	}

	rec := &TransitionRecord{
		Token:     uuid.New(),
		Direction: dir,
		Start:     start,
		StartedAt: now,
		Rate:      rate,
		Limit:     limit,
	}
	st.transition = rec
	st.timer = time.AfterFunc(remaining, func() {
		e.completeTransition(st, rec.Token)
	})
	if dir == DirectionRaising {
		st.power = true
	}

	log.Debug().
		Str("entity", t.ID).
		Str("direction", dir.String()).
		Float64("start", start).
		Float64("limit", limit).
		Dur("duration", remaining).
		Msg("Transition started")

	return nil
}

// Stop freezes the entity at its current interpolated brightness via a
// single zero-duration transition command. No-op when the entity is idle.
// Returns the brightness the entity is left at.
func (e *Engine) Stop(ctx context.Context, t Target) (float64, error) {
	st := e.store.get(t)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.transition == nil {
		return st.brightness, nil
	}

	frozen := st.transition.BrightnessAt(e.now())

	if err := e.bridge.WriteTransition(ctx, st.target, frozen, 0, nil); err != nil {
		// The ramp may or may not still be running on the fixture; either
		// way the record is stale, so drop back to idle.
		e.clearTransitionLocked(st)
		return 0, err
	}

	e.clearTransitionLocked(st)
	st.brightness = frozen
	st.fetchedAt = e.now()

	log.Debug().
		Str("entity", t.ID).
		Float64("brightness", frozen).
		Msg("Transition stopped")

	return frozen, nil
}

// completeTransition is the timer callback armed when a ramp starts. The
// token check makes a stale callback (one whose record was superseded while
// the callback waited on the lock) a no-op.
func (e *Engine) completeTransition(st *entityState, token uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.transition == nil || st.transition.Token != token {
		return
	}

	rec := st.transition
	st.transition = nil
	st.timer = nil
	st.brightness = rec.Limit
	st.fetchedAt = e.now()
	if rec.Direction == DirectionLowering && rec.Limit == 0 {
		st.power = false
	}

	log.Debug().
		Str("entity", st.target.ID).
		Float64("brightness", rec.Limit).
		Msg("Transition completed")
}

func (e *Engine) clearTransitionLocked(st *entityState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.transition = nil
}

// currentBrightnessLocked resolves the entity's best-known brightness:
// the interpolated position of an in-flight ramp, the cache when fresh,
// or a synchronous bridge read otherwise.
func (e *Engine) currentBrightnessLocked(ctx context.Context, st *entityState, now time.Time) (float64, error) {
	if st.transition != nil {
		return st.transition.BrightnessAt(now), nil
	}
	if !st.fetchedAt.IsZero() && e.staleAfter > 0 && now.Sub(st.fetchedAt) <= e.staleAfter {
		return st.brightness, nil
	}
	if err := e.refreshLocked(ctx, st); err != nil {
		return 0, err
	}
	return st.brightness, nil
}

// refreshLocked reads the entity through the bridge and replaces the cache.
func (e *Engine) refreshLocked(ctx context.Context, st *entityState) error {
	state, err := e.bridge.Read(ctx, st.target)
	if err != nil {
		return err
	}

	st.brightness = units.ClampPercent(state.Brightness)
	st.power = state.Power
	st.mirek = state.Mirek
	st.ctRange = state.CTRange
	st.fetchedAt = e.now()
	return nil
}

func boolPtr(b bool) *bool { return &b }
