package dimmer

import (
	"context"
	"time"

	"github.com/dokzlo13/dimmerd/internal/units"
)

// TargetType distinguishes a single fixture from a group broadcast channel.
// Values match the CLIP v2 resource types so adapters can use them directly.
type TargetType string

const (
	TargetLight TargetType = "light"
	TargetGroup TargetType = "grouped_light"
)

// Target is an addressable fixture or group on the bridge.
type Target struct {
	ID   string
	Type TargetType
}

// DeviceState is a point-in-time read of a fixture through the bridge.
type DeviceState struct {
	Brightness float64 // percent, 0-100
	Power      bool
	Mirek      *int              // nil when the fixture reports no CT
	CTRange    *units.MirekRange // nil when the fixture lacks CT capability
}

// Bridge is the engine's view of the device gateway. Implementations issue
// the actual network calls; the engine never retries and treats a failed
// call as having had no effect.
type Bridge interface {
	// Read fetches the current state of a fixture or group.
	Read(ctx context.Context, t Target) (DeviceState, error)

	// WriteTransition instructs the fixture or group to move linearly to
	// brightness over duration. A zero duration applies immediately,
	// freezing any transition in flight. power, when non-nil, is carried
	// in the same command; when nil the fixture's power state is left
	// alone, so sub-1% floors are never silently turned into off.
	WriteTransition(ctx context.Context, t Target, brightness float64, duration time.Duration, power *bool) error

	// WriteExact sets brightness and/or color temperature on a single
	// light without touching its power state. Nil fields are omitted
	// from the command.
	WriteExact(ctx context.Context, lightID string, brightness *float64, mirek *int) error

	// ResolveMembers expands a group into its member light IDs.
	ResolveMembers(ctx context.Context, groupID string) ([]string, error)
}
