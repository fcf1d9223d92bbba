package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/dokzlo13/dimmerd/internal/hue"
)

type fakeInventory struct {
	lights  []hue.Light
	grouped []hue.GroupedLight
	rooms   []hue.Group
	zones   []hue.Group
	devices []hue.Device
}

func (f *fakeInventory) Lights(context.Context) ([]hue.Light, error)               { return f.lights, nil }
func (f *fakeInventory) GroupedLights(context.Context) ([]hue.GroupedLight, error) { return f.grouped, nil }
func (f *fakeInventory) Rooms(context.Context) ([]hue.Group, error)                { return f.rooms, nil }
func (f *fakeInventory) Zones(context.Context) ([]hue.Group, error)                { return f.zones, nil }
func (f *fakeInventory) Devices(context.Context) ([]hue.Device, error)             { return f.devices, nil }

func namedLight(id, name string) hue.Light {
	l := hue.Light{ID: id}
	l.Metadata.Name = name
	return l
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	room := hue.Group{ID: "room-1"}
	room.Metadata.Name = "Office"
	room.Children = []hue.ResourceRef{
		{RID: "dev-1", RType: "device"},
		{RID: "light-desk", RType: "light"},
	}

	inv := &fakeInventory{
		lights: []hue.Light{
			namedLight("light-desk", "Desk Lamp"),
			namedLight("light-shelf", "Shelf Lamp"),
		},
		grouped: []hue.GroupedLight{
			{ID: "gl-office", Owner: hue.ResourceRef{RID: "room-1", RType: "room"}},
		},
		rooms: []hue.Group{room},
		devices: []hue.Device{
			{ID: "dev-1", Services: []hue.ResourceRef{{RID: "light-shelf", RType: "light"}}},
		},
	}

	r := NewRegistry()
	if err := r.Reload(context.Background(), inv); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	return r
}

func TestResolveByIDAndName(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		name    string
		ref     string
		wantID  string
		isGroup bool
	}{
		{"by_id", "light-desk", "light-desk", false},
		{"by_name", "Desk Lamp", "light-desk", false},
		{"name_case_insensitive", "desk lamp", "light-desk", false},
		{"group_by_room_name", "office", "gl-office", true},
		{"group_by_id", "gl-office", "gl-office", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities, failures := r.Resolve([]string{tt.ref})
			if len(failures) != 0 {
				t.Fatalf("unexpected failures: %v", failures)
			}
			if len(entities) != 1 {
				t.Fatalf("resolved %d entities, want 1", len(entities))
			}
			if entities[0].ID != tt.wantID || entities[0].IsGroup != tt.isGroup {
				t.Errorf("resolved %+v, want id=%s group=%v", entities[0], tt.wantID, tt.isGroup)
			}
		})
	}
}

func TestResolveGroupMembers(t *testing.T) {
	r := testRegistry(t)

	entities, _ := r.Resolve([]string{"Office"})
	if len(entities) != 1 {
		t.Fatalf("resolved %d entities, want 1", len(entities))
	}

	members := entities[0].Members
	if len(members) != 2 {
		t.Fatalf("members = %v, want light-shelf (via device) and light-desk", members)
	}
}

func TestResolveDeduplicatesPreservingOrder(t *testing.T) {
	r := testRegistry(t)

	entities, failures := r.Resolve([]string{"Shelf Lamp", "light-desk", "shelf lamp", "light-shelf"})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	want := []string{"light-shelf", "light-desk"}
	if len(entities) != len(want) {
		t.Fatalf("resolved %d entities, want %d", len(entities), len(want))
	}
	for i, id := range want {
		if entities[i].ID != id {
			t.Errorf("entities[%d] = %s, want %s", i, entities[i].ID, id)
		}
	}
}

func TestResolvePartialFailure(t *testing.T) {
	r := testRegistry(t)

	entities, failures := r.Resolve([]string{"Desk Lamp", "garage", "Office"})

	if len(entities) != 2 {
		t.Errorf("resolved %d entities, want 2 despite a bad ref", len(entities))
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %v, want exactly 1", failures)
	}
	if failures[0].Ref != "garage" || !errors.Is(failures[0].Err, ErrTargetNotFound) {
		t.Errorf("failure = %+v, want garage/ErrTargetNotFound", failures[0])
	}
}
