package hue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/dimmerd/internal/dimmer"
)

// newTestBridge spins up a TLS server mimicking the CLIP v2 API and returns
// a client pointed at it.
func newTestBridge(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	address := strings.TrimPrefix(server.URL, "https://")
	return NewClient(address, "test-key", 5*time.Second, 0), server
}

func clipData(items ...any) string {
	payload, _ := json.Marshal(map[string]any{"errors": []any{}, "data": items})
	return string(payload)
}

func TestRequestSendsApplicationKey(t *testing.T) {
	var gotKey string
	client, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("hue-application-key")
		w.Write([]byte(clipData()))
	})

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("application key = %q, want test-key", gotKey)
	}
}

func TestRequestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"not_found", http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			err := client.Ping(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestUnreachableBridge(t *testing.T) {
	client := NewClient("127.0.0.1:1", "key", 200*time.Millisecond, 0)

	err := client.Ping(context.Background())
	if !errors.Is(err, ErrBridgeUnreachable) {
		t.Errorf("error = %v, want ErrBridgeUnreachable", err)
	}
}

func TestLightMembersWalksOwnerChain(t *testing.T) {
	client, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip/v2/resource/grouped_light/gl-1":
			w.Write([]byte(clipData(map[string]any{
				"id":    "gl-1",
				"owner": map[string]string{"rid": "room-1", "rtype": "room"},
			})))
		case "/clip/v2/resource/room/room-1":
			w.Write([]byte(clipData(map[string]any{
				"id": "room-1",
				"children": []map[string]string{
					{"rid": "light-a", "rtype": "light"},
					{"rid": "dev-1", "rtype": "device"},
				},
			})))
		case "/clip/v2/resource/device/dev-1":
			w.Write([]byte(clipData(map[string]any{
				"id": "dev-1",
				"services": []map[string]string{
					{"rid": "zigbee-1", "rtype": "zigbee_connectivity"},
					{"rid": "light-b", "rtype": "light"},
				},
			})))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	members, err := client.LightMembers(context.Background(), "gl-1")
	if err != nil {
		t.Fatalf("LightMembers failed: %v", err)
	}

	want := []string{"light-a", "light-b"}
	if len(members) != len(want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
	for i := range want {
		if members[i] != want[i] {
			t.Errorf("members[%d] = %s, want %s", i, members[i], want[i])
		}
	}
}

func TestAdapterTransitionPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(clipData()))
	})
	adapter := NewAdapter(client)

	on := true
	target := dimmer.Target{ID: "gl-1", Type: dimmer.TargetGroup}
	err := adapter.WriteTransition(context.Background(), target, 80, 4*time.Second, &on)
	if err != nil {
		t.Fatalf("WriteTransition failed: %v", err)
	}

	if gotPath != "/clip/v2/resource/grouped_light/gl-1" {
		t.Errorf("path = %s, want grouped_light resource", gotPath)
	}
	dimming, _ := gotBody["dimming"].(map[string]any)
	if dimming["brightness"] != 80.0 {
		t.Errorf("dimming = %v, want brightness 80", dimming)
	}
	dynamics, _ := gotBody["dynamics"].(map[string]any)
	if dynamics["duration"] != 4000.0 {
		t.Errorf("dynamics = %v, want duration 4000ms", dynamics)
	}
	onField, _ := gotBody["on"].(map[string]any)
	if onField["on"] != true {
		t.Errorf("on = %v, want {\"on\":true}", onField)
	}
}

func TestAdapterExactWriteOmitsPower(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(clipData()))
	})
	adapter := NewAdapter(client)

	brightness := 25.0
	mirek := 370
	if err := adapter.WriteExact(context.Background(), "light-a", &brightness, &mirek); err != nil {
		t.Fatalf("WriteExact failed: %v", err)
	}

	if _, hasOn := gotBody["on"]; hasOn {
		t.Error("exact write carried an `on` field; power must be preserved")
	}
	ct, _ := gotBody["color_temperature"].(map[string]any)
	if ct["mirek"] != 370.0 {
		t.Errorf("color_temperature = %v, want mirek 370", ct)
	}
}
