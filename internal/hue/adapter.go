package hue

import (
	"context"
	"time"

	"github.com/dokzlo13/dimmerd/internal/dimmer"
	"github.com/dokzlo13/dimmerd/internal/units"
)

// Adapter implements dimmer.Bridge on top of the CLIP client. It only
// shapes payloads and converts models; retries, caching and state tracking
// all live with the engine.
type Adapter struct {
	client *Client
}

// NewAdapter wraps a client.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

type onPayload struct {
	On bool `json:"on"`
}

type dimmingPayload struct {
	Brightness float64 `json:"brightness"`
}

type dynamicsPayload struct {
	Duration int `json:"duration"` // milliseconds
}

type mirekPayload struct {
	Mirek int `json:"mirek"`
}

type updatePayload struct {
	On               *onPayload       `json:"on,omitempty"`
	Dimming          *dimmingPayload  `json:"dimming,omitempty"`
	Dynamics         *dynamicsPayload `json:"dynamics,omitempty"`
	ColorTemperature *mirekPayload    `json:"color_temperature,omitempty"`
}

// Read fetches current fixture or group state.
func (a *Adapter) Read(ctx context.Context, t dimmer.Target) (dimmer.DeviceState, error) {
	if t.Type == dimmer.TargetGroup {
		grouped, err := a.client.GetGroupedLight(ctx, t.ID)
		if err != nil {
			return dimmer.DeviceState{}, err
		}
		state := dimmer.DeviceState{}
		if grouped.On != nil {
			state.Power = grouped.On.On
		}
		if grouped.Dimming != nil {
			state.Brightness = grouped.Dimming.Brightness
		}
		return state, nil
	}

	light, err := a.client.GetLight(ctx, t.ID)
	if err != nil {
		return dimmer.DeviceState{}, err
	}

	state := dimmer.DeviceState{}
	if light.On != nil {
		state.Power = light.On.On
	}
	if light.Dimming != nil {
		state.Brightness = light.Dimming.Brightness
	}
	if ct := light.ColorTemperature; ct != nil {
		if ct.MirekValid && ct.Mirek != nil {
			state.Mirek = ct.Mirek
		}
		if ct.MirekSchema != nil {
			state.CTRange = &units.MirekRange{
				Min: ct.MirekSchema.MirekMinimum,
				Max: ct.MirekSchema.MirekMaximum,
			}
		}
	}
	return state, nil
}

// WriteTransition issues one `dynamics` transition command. power rides in
// the same command when set; a nil power leaves the fixture's power state
// untouched, so low non-zero floors are never coerced to off.
func (a *Adapter) WriteTransition(ctx context.Context, t dimmer.Target, brightness float64, duration time.Duration, power *bool) error {
	payload := updatePayload{
		Dimming:  &dimmingPayload{Brightness: brightness},
		Dynamics: &dynamicsPayload{Duration: int(duration.Milliseconds())},
	}
	if power != nil {
		payload.On = &onPayload{On: *power}
	}
	return a.client.UpdateResource(ctx, string(t.Type), t.ID, payload)
}

// WriteExact sets brightness and/or color temperature on a light. The
// payload never carries an `on` field, which is what preserves power state.
func (a *Adapter) WriteExact(ctx context.Context, lightID string, brightness *float64, mirek *int) error {
	payload := updatePayload{}
	if brightness != nil {
		payload.Dimming = &dimmingPayload{Brightness: *brightness}
	}
	if mirek != nil {
		payload.ColorTemperature = &mirekPayload{Mirek: *mirek}
	}
	return a.client.UpdateResource(ctx, "light", lightID, payload)
}

// ResolveMembers expands a group into member light IDs.
func (a *Adapter) ResolveMembers(ctx context.Context, groupID string) ([]string, error) {
	return a.client.LightMembers(ctx, groupID)
}
