package hue

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client talks to a Hue bridge over the CLIP v2 API.
type Client struct {
	address    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a CLIP v2 client. rps bounds how many requests per
// second are sent to the bridge (the bridge throttles around 10/s for
// lights); 0 disables limiting.
func NewClient(address, token string, timeout time.Duration, rps float64) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	// The bridge serves a self-signed certificate.
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	return &Client{
		address: address,
		token:   token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter: limiter,
	}
}

// Connect verifies the bridge is reachable and the key is accepted.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Hue bridge: %w", err)
	}
	log.Info().Str("address", c.address).Msg("Connected to Hue bridge")
	return nil
}

// Ping issues a cheap authenticated request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodGet, "resource/bridge", nil)
	return err
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Address returns the bridge address.
func (c *Client) Address() string {
	return c.address
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("https://%s/clip/v2/%s", c.address, path)
}

// request performs one CLIP call and returns the raw data array.
func (c *Client) request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridgeUnreachable, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("hue-application-key", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBridgeUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	default:
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, detail)
	}

	var result struct {
		Errors []struct {
			Description string `json:"description"`
		} `json:"errors"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%s %s: bridge error: %s", method, path, result.Errors[0].Description)
	}

	return result.Data, nil
}

func listResource[T any](ctx context.Context, c *Client, rtype string) ([]T, error) {
	data, err := c.request(ctx, http.MethodGet, "resource/"+rtype, nil)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding %s list: %w", rtype, err)
	}
	return items, nil
}

func getResource[T any](ctx context.Context, c *Client, rtype, id string) (*T, error) {
	data, err := c.request(ctx, http.MethodGet, fmt.Sprintf("resource/%s/%s", rtype, id), nil)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", rtype, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s %q: %w", rtype, id, ErrNotFound)
	}
	return &items[0], nil
}

// Lights returns all light resources.
func (c *Client) Lights(ctx context.Context) ([]Light, error) {
	return listResource[Light](ctx, c, "light")
}

// GroupedLights returns all broadcast channels.
func (c *Client) GroupedLights(ctx context.Context) ([]GroupedLight, error) {
	return listResource[GroupedLight](ctx, c, "grouped_light")
}

// Rooms returns all room containers.
func (c *Client) Rooms(ctx context.Context) ([]Group, error) {
	return listResource[Group](ctx, c, "room")
}

// Zones returns all zone containers.
func (c *Client) Zones(ctx context.Context) ([]Group, error) {
	return listResource[Group](ctx, c, "zone")
}

// Devices returns all devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	return listResource[Device](ctx, c, "device")
}

// GetLight fetches one light.
func (c *Client) GetLight(ctx context.Context, id string) (*Light, error) {
	return getResource[Light](ctx, c, "light", id)
}

// GetGroupedLight fetches one broadcast channel.
func (c *Client) GetGroupedLight(ctx context.Context, id string) (*GroupedLight, error) {
	return getResource[GroupedLight](ctx, c, "grouped_light", id)
}

// UpdateResource PUTs an update payload to a resource.
func (c *Client) UpdateResource(ctx context.Context, rtype, id string, update any) error {
	_, err := c.request(ctx, http.MethodPut, fmt.Sprintf("resource/%s/%s", rtype, id), update)
	return err
}

// LightMembers resolves a grouped_light to its member light IDs by walking
// grouped_light -> owner room/zone -> children, collecting light children
// directly and light services of device children.
func (c *Client) LightMembers(ctx context.Context, groupedLightID string) ([]string, error) {
	grouped, err := c.GetGroupedLight(ctx, groupedLightID)
	if err != nil {
		return nil, err
	}
	if grouped.Owner.RID == "" {
		return nil, nil
	}

	owner, err := getResource[Group](ctx, c, grouped.Owner.RType, grouped.Owner.RID)
	if err != nil {
		return nil, err
	}

	var lightIDs []string
	for _, child := range owner.Children {
		switch child.RType {
		case "light":
			lightIDs = append(lightIDs, child.RID)
		case "device":
			device, err := getResource[Device](ctx, c, "device", child.RID)
			if err != nil {
				return nil, err
			}
			for _, svc := range device.Services {
				if svc.RType == "light" {
					lightIDs = append(lightIDs, svc.RID)
				}
			}
		}
	}

	log.Debug().
		Str("grouped_light", groupedLightID).
		Int("members", len(lightIDs)).
		Msg("Group members resolved")

	return lightIDs, nil
}
