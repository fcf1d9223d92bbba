package actions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/dimmer"
	"github.com/dokzlo13/dimmerd/internal/resolve"
	"github.com/dokzlo13/dimmerd/internal/units"
)

// Defaults for action fields left unset by the caller.
type Defaults struct {
	SweepTime time.Duration
}

// Service binds the five dimming actions to the transition engine and the
// target resolver. Each resolved entity executes independently on its own
// goroutine; failures are reported per entity, never as one aggregate.
type Service struct {
	engine   *dimmer.Engine
	resolver *resolve.Registry
	defaults Defaults
}

// NewService creates the action service.
func NewService(engine *dimmer.Engine, resolver *resolve.Registry, defaults Defaults) *Service {
	if defaults.SweepTime <= 0 {
		defaults.SweepTime = 5 * time.Second
	}
	return &Service{
		engine:   engine,
		resolver: resolver,
		defaults: defaults,
	}
}

// Register registers all dimming actions.
func (s *Service) Register(reg *Registry) error {
	handlers := map[string]func(ctx context.Context, args map[string]any) (map[string]any, error){
		"raise":          s.handleRaise,
		"lower":          s.handleLower,
		"stop":           s.handleStop,
		"set_attributes": s.handleSetAttributes,
		"get_attributes": s.handleGetAttributes,
	}
	for name, fn := range handlers {
		if err := reg.RegisterSimple(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) handleRaise(ctx context.Context, args map[string]any) (map[string]any, error) {
	sweep, limit, err := s.rampArgs(args, 100)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		return nil, fmt.Errorf("raise limit %.1f must be in (0,100]: %w", limit, units.ErrInvalidRange)
	}

	return s.forEachTarget(ctx, args, func(ctx context.Context, t dimmer.Target) (map[string]any, error) {
		return nil, s.engine.Raise(ctx, t, sweep, limit)
	})
}

func (s *Service) handleLower(ctx context.Context, args map[string]any) (map[string]any, error) {
	sweep, limit, err := s.rampArgs(args, 0)
	if err != nil {
		return nil, err
	}
	if limit < 0 || limit >= 100 {
		return nil, fmt.Errorf("lower limit %.1f must be in [0,100): %w", limit, units.ErrInvalidRange)
	}

	return s.forEachTarget(ctx, args, func(ctx context.Context, t dimmer.Target) (map[string]any, error) {
		return nil, s.engine.Lower(ctx, t, sweep, limit)
	})
}

func (s *Service) handleStop(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.forEachTarget(ctx, args, func(ctx context.Context, t dimmer.Target) (map[string]any, error) {
		brightness, err := s.engine.Stop(ctx, t)
		if err != nil {
			return nil, err
		}
		return map[string]any{"brightness": brightness}, nil
	})
}

func (s *Service) handleSetAttributes(ctx context.Context, args map[string]any) (map[string]any, error) {
	req := dimmer.AttributeRequest{}
	var err error
	if req.Brightness, err = optionalFloatArg(args, "brightness"); err != nil {
		return nil, err
	}
	if req.MinBrightness, err = optionalFloatArg(args, "min_brightness"); err != nil {
		return nil, err
	}
	if req.MaxBrightness, err = optionalFloatArg(args, "max_brightness"); err != nil {
		return nil, err
	}
	if req.ColorTempKelvin, err = optionalIntArg(args, "color_temp_kelvin"); err != nil {
		return nil, err
	}

	return s.forEachTarget(ctx, args, func(ctx context.Context, t dimmer.Target) (map[string]any, error) {
		return nil, s.engine.SetAttributes(ctx, t, req)
	})
}

func (s *Service) handleGetAttributes(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.forEachTarget(ctx, args, func(ctx context.Context, t dimmer.Target) (map[string]any, error) {
		attrs, err := s.engine.GetAttributes(ctx, t)
		if err != nil {
			return nil, err
		}
		result := map[string]any{"brightness": attrs.Brightness}
		if attrs.ColorTempKelvin != nil {
			result["color_temp_kelvin"] = *attrs.ColorTempKelvin
		}
		return result, nil
	})
}

func (s *Service) rampArgs(args map[string]any, defaultLimit float64) (time.Duration, float64, error) {
	sweepSeconds, err := floatArg(args, "sweep_time", s.defaults.SweepTime.Seconds())
	if err != nil {
		return 0, 0, err
	}
	if sweepSeconds <= 0 {
		return 0, 0, fmt.Errorf("sweep_time %.2f must be positive: %w", sweepSeconds, units.ErrInvalidRange)
	}

	limit, err := floatArg(args, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}

	return time.Duration(sweepSeconds * float64(time.Second)), limit, nil
}

// forEachTarget resolves the target references and runs fn once per entity,
// concurrently. The response maps entity IDs (or unresolvable references)
// to per-entity outcomes.
func (s *Service) forEachTarget(ctx context.Context, args map[string]any, fn func(ctx context.Context, t dimmer.Target) (map[string]any, error)) (map[string]any, error) {
	refs, err := targetArg(args)
	if err != nil {
		return nil, err
	}

	entities, failures := s.resolver.Resolve(refs)
	if len(entities) == 0 && len(failures) == 0 {
		return nil, fmt.Errorf("field \"target\" is empty: %w", units.ErrInvalidRange)
	}

	results := make(map[string]any, len(entities)+len(failures))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, entity := range entities {
		wg.Add(1)
		go func(entity resolve.Entity) {
			defer wg.Done()

			target := dimmer.Target{ID: entity.ID, Type: dimmer.TargetLight}
			if entity.IsGroup {
				target.Type = dimmer.TargetGroup
			}

			extra, err := fn(ctx, target)

			mu.Lock()
			defer mu.Unlock()
			results[entity.ID] = entityResult(extra, err)
		}(entity)
	}
	wg.Wait()

	for _, failure := range failures {
		log.Warn().Str("ref", failure.Ref).Msg("Target not resolved")
		results[failure.Ref] = entityResult(nil, failure.Err)
	}

	return map[string]any{"results": results}, nil
}

func entityResult(extra map[string]any, err error) map[string]any {
	result := map[string]any{"ok": err == nil}
	if err != nil {
		result["error"] = err.Error()
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}
