package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/hue"
)

// ErrTargetNotFound indicates a target reference that maps to no known
// entity. It is per-reference and never aborts the rest of a batch.
var ErrTargetNotFound = errors.New("target not found")

// Entity is a resolved addressable target: a single light or the broadcast
// channel of a room/zone.
type Entity struct {
	ID      string // CLIP resource id (light or grouped_light)
	Name    string
	IsGroup bool
	Members []string // member light ids, empty for single lights
}

// Failure pairs an unresolvable reference with its error.
type Failure struct {
	Ref string
	Err error
}

// Inventory is the slice of the bridge client the registry needs.
type Inventory interface {
	Lights(ctx context.Context) ([]hue.Light, error)
	GroupedLights(ctx context.Context) ([]hue.GroupedLight, error)
	Rooms(ctx context.Context) ([]hue.Group, error)
	Zones(ctx context.Context) ([]hue.Group, error)
	Devices(ctx context.Context) ([]hue.Device, error)
}

// Registry maps target references to entities. References match by CLIP
// resource id or, case-insensitively, by display name (the owning room or
// zone name for groups).
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]Entity
	byName map[string]Entity
}

// NewRegistry creates an empty registry; call Reload to populate it.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]Entity),
		byName: make(map[string]Entity),
	}
}

// Reload rebuilds the registry from the bridge inventory.
func (r *Registry) Reload(ctx context.Context, inv Inventory) error {
	lights, err := inv.Lights(ctx)
	if err != nil {
		return fmt.Errorf("listing lights: %w", err)
	}
	groupedLights, err := inv.GroupedLights(ctx)
	if err != nil {
		return fmt.Errorf("listing grouped lights: %w", err)
	}
	rooms, err := inv.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("listing rooms: %w", err)
	}
	zones, err := inv.Zones(ctx)
	if err != nil {
		return fmt.Errorf("listing zones: %w", err)
	}
	devices, err := inv.Devices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	deviceLights := make(map[string][]string, len(devices))
	for _, d := range devices {
		for _, svc := range d.Services {
			if svc.RType == "light" {
				deviceLights[d.ID] = append(deviceLights[d.ID], svc.RID)
			}
		}
	}

	byID := make(map[string]Entity)
	byName := make(map[string]Entity)
	add := func(e Entity) {
		byID[e.ID] = e
		if e.Name != "" {
			byName[strings.ToLower(e.Name)] = e
		}
	}

	for _, l := range lights {
		add(Entity{ID: l.ID, Name: l.Metadata.Name})
	}

	// A grouped_light carries no name of its own; borrow the owning
	// room/zone name and collect members from its children.
	containers := make(map[string]hue.Group, len(rooms)+len(zones))
	for _, g := range append(rooms, zones...) {
		containers[g.ID] = g
	}
	for _, gl := range groupedLights {
		entity := Entity{ID: gl.ID, IsGroup: true}
		if owner, ok := containers[gl.Owner.RID]; ok {
			entity.Name = owner.Metadata.Name
			for _, child := range owner.Children {
				switch child.RType {
				case "light":
					entity.Members = append(entity.Members, child.RID)
				case "device":
					entity.Members = append(entity.Members, deviceLights[child.RID]...)
				}
			}
		}
		add(entity)
	}

	r.mu.Lock()
	r.byID = byID
	r.byName = byName
	r.mu.Unlock()

	log.Debug().
		Int("lights", len(lights)).
		Int("groups", len(groupedLights)).
		Msg("Target registry reloaded")

	return nil
}

// Resolve expands target references into entities, de-duplicated and in
// first-occurrence order. Unknown references are collected as failures;
// valid ones still resolve.
func (r *Registry) Resolve(refs []string) ([]Entity, []Failure) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		entities []Entity
		failures []Failure
		seen     = make(map[string]struct{})
	)

	for _, ref := range refs {
		entity, ok := r.lookup(ref)
		if !ok {
			failures = append(failures, Failure{
				Ref: ref,
				Err: fmt.Errorf("%q: %w", ref, ErrTargetNotFound),
			})
			continue
		}
		if _, dup := seen[entity.ID]; dup {
			continue
		}
		seen[entity.ID] = struct{}{}
		entities = append(entities, entity)
	}

	return entities, failures
}

func (r *Registry) lookup(ref string) (Entity, bool) {
	if e, ok := r.byID[ref]; ok {
		return e, true
	}
	e, ok := r.byName[strings.ToLower(strings.TrimSpace(ref))]
	return e, ok
}
