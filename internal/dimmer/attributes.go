package dimmer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/units"
)

// ErrUnsupportedAttribute indicates a fixture lacks the requested
// capability (currently only color temperature). The brightness portion of
// the same call still goes through; callers treat this as partial success.
var ErrUnsupportedAttribute = errors.New("attribute not supported by fixture")

// AttributeRequest carries the optional fields of a set_attributes call.
// Explicit brightness wins over min/max bounds; bounds clamp the entity's
// current brightness instead.
type AttributeRequest struct {
	Brightness      *float64
	MinBrightness   *float64
	MaxBrightness   *float64
	ColorTempKelvin *int
}

func (r AttributeRequest) empty() bool {
	return r.Brightness == nil && r.MinBrightness == nil &&
		r.MaxBrightness == nil && r.ColorTempKelvin == nil
}

// Attributes is the per-entity result of get_attributes.
type Attributes struct {
	Brightness      float64 `json:"brightness"`
	ColorTempKelvin *int    `json:"color_temp_kelvin,omitempty"`
}

// SetAttributes writes brightness and/or color temperature to an entity
// without toggling its power state, so values stick while the fixture is
// off. Group targets are written per member light for the same reason
// (a grouped broadcast would be dropped by powered-off members).
func (e *Engine) SetAttributes(ctx context.Context, t Target, req AttributeRequest) error {
	if req.empty() {
		return fmt.Errorf("set_attributes needs at least one attribute: %w", units.ErrInvalidRange)
	}
	if req.MinBrightness != nil && req.MaxBrightness != nil && *req.MinBrightness > *req.MaxBrightness {
		return fmt.Errorf("min brightness %.1f above max %.1f: %w",
			*req.MinBrightness, *req.MaxBrightness, units.ErrInvalidRange)
	}
	if req.ColorTempKelvin != nil && *req.ColorTempKelvin <= 0 {
		return fmt.Errorf("color temperature %dK: %w", *req.ColorTempKelvin, units.ErrInvalidRange)
	}

	st := e.store.get(t)
	st.mu.Lock()
	defer st.mu.Unlock()

	brightness, err := e.resolveNewBrightnessLocked(ctx, st, req)
	if err != nil {
		return err
	}

	// Color temperature is clamped into the fixture's advertised range
	// before conversion. A CT-incapable fixture yields a partial-success
	// error that must not block the brightness write.
	var mirek *int
	var ctErr error
	if req.ColorTempKelvin != nil {
		mirek, ctErr = e.resolveMirekLocked(ctx, st, *req.ColorTempKelvin)
	}

	if brightness == nil && mirek == nil {
		return ctErr
	}

	if err := e.writeAttributes(ctx, st.target, brightness, mirek); err != nil {
		return err
	}

	if brightness != nil {
		st.brightness = *brightness
		st.fetchedAt = e.now()
	}
	if mirek != nil {
		st.mirek = mirek
	}

	log.Debug().
		Str("entity", t.ID).
		Interface("brightness", brightness).
		Interface("mirek", mirek).
		Msg("Attributes written")

	return ctErr
}

// resolveNewBrightnessLocked computes the single brightness outcome of the
// request: explicit value clamped to the representable range, or the
// current brightness clamped into [min,max]. Returns nil when no brightness
// write is needed.
func (e *Engine) resolveNewBrightnessLocked(ctx context.Context, st *entityState, req AttributeRequest) (*float64, error) {
	if req.Brightness != nil {
		v := units.Clamp(*req.Brightness, units.MinStepPercent, 100)
		return &v, nil
	}
	if req.MinBrightness == nil && req.MaxBrightness == nil {
		return nil, nil
	}

	current, err := e.currentBrightnessLocked(ctx, st, e.now())
	if err != nil {
		return nil, err
	}

	lo, hi := 0.0, 100.0
	if req.MinBrightness != nil {
		lo = *req.MinBrightness
	}
	if req.MaxBrightness != nil {
		hi = *req.MaxBrightness
	}

	v := units.Clamp(current, lo, hi)
	if math.Abs(v-current) <= 0.1 {
		// Below the device's resolution; skip the no-op write.
		return nil, nil
	}
	return &v, nil
}

// resolveMirekLocked converts a kelvin request to mirek for this entity.
// Single lights must advertise a CT schema; groups have no schema of their
// own and get the full Hue gamut.
func (e *Engine) resolveMirekLocked(ctx context.Context, st *entityState, kelvin int) (*int, error) {
	ctRange := st.ctRange
	if ctRange == nil && st.target.Type == TargetLight {
		// Capability unknown until we have seen the fixture once.
		if st.fetchedAt.IsZero() {
			if err := e.refreshLocked(ctx, st); err != nil {
				return nil, err
			}
			ctRange = st.ctRange
		}
		if ctRange == nil {
			return nil, fmt.Errorf("entity %s: %w", st.target.ID, ErrUnsupportedAttribute)
		}
	}
	if ctRange == nil {
		r := units.DefaultMirekRange
		ctRange = &r
	}

	m, err := units.KelvinToMirek(units.ClampKelvin(kelvin, *ctRange), *ctRange)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (e *Engine) writeAttributes(ctx context.Context, t Target, brightness *float64, mirek *int) error {
	if t.Type != TargetGroup {
		return e.bridge.WriteExact(ctx, t.ID, brightness, mirek)
	}

	members, err := e.bridge.ResolveMembers(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, id := range members {
		if err := e.bridge.WriteExact(ctx, id, brightness, mirek); err != nil {
			return err
		}
	}
	return nil
}

// GetAttributes reads the entity's current brightness and, when available,
// color temperature. Ramping entities report their interpolated position;
// idle entities are read through the bridge when the cache is stale. Groups
// aggregate across member lights, since a grouped channel reports zero
// brightness while off and never reports CT.
func (e *Engine) GetAttributes(ctx context.Context, t Target) (Attributes, error) {
	st := e.store.get(t)
	st.mu.Lock()
	defer st.mu.Unlock()

	if t.Type == TargetGroup {
		return e.groupAttributesLocked(ctx, st)
	}

	brightness, err := e.currentBrightnessLocked(ctx, st, e.now())
	if err != nil {
		return Attributes{}, err
	}

	attrs := Attributes{Brightness: roundTenth(brightness)}
	if st.mirek != nil {
		ctRange := units.DefaultMirekRange
		if st.ctRange != nil {
			ctRange = *st.ctRange
		}
		if kelvin, err := units.MirekToKelvin(*st.mirek, ctRange); err == nil {
			attrs.ColorTempKelvin = &kelvin
		}
	}
	return attrs, nil
}

func (e *Engine) groupAttributesLocked(ctx context.Context, st *entityState) (Attributes, error) {
	members, err := e.bridge.ResolveMembers(ctx, st.target.ID)
	if err != nil {
		return Attributes{}, err
	}

	var (
		briSum   float64
		briCount int
		mirekSum int
		mirekCnt int
		lastErr  error
	)
	for _, id := range members {
		state, err := e.bridge.Read(ctx, Target{ID: id, Type: TargetLight})
		if err != nil {
			// Skip unreachable members; the rest of the group still
			// yields a usable aggregate.
			log.Debug().Err(err).Str("light", id).Msg("Member read failed")
			lastErr = err
			continue
		}
		briSum += state.Brightness
		briCount++
		if state.Mirek != nil {
			mirekSum += *state.Mirek
			mirekCnt++
		}
	}

	if briCount == 0 {
		if lastErr != nil {
			return Attributes{}, lastErr
		}
		return Attributes{}, nil
	}

	attrs := Attributes{Brightness: roundTenth(briSum / float64(briCount))}
	if mirekCnt > 0 {
		avg := int(math.Round(float64(mirekSum) / float64(mirekCnt)))
		if kelvin, err := units.MirekToKelvin(avg, units.DefaultMirekRange); err == nil {
			attrs.ColorTempKelvin = &kelvin
		}
	}

	st.brightness = attrs.Brightness
	st.fetchedAt = e.now()

	return attrs, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
