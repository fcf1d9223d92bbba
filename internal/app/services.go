package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/actions"
	"github.com/dokzlo13/dimmerd/internal/api"
	"github.com/dokzlo13/dimmerd/internal/config"
	"github.com/dokzlo13/dimmerd/internal/dimmer"
	"github.com/dokzlo13/dimmerd/internal/hue"
	"github.com/dokzlo13/dimmerd/internal/resolve"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Bridge access
	Client *hue.Client

	// Transition engine and target resolution
	Engine   *dimmer.Engine
	Resolver *resolve.Registry

	// Action system and HTTP surface
	Registry *actions.Registry
	API      *api.Server
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Bridge client and its dimmer.Bridge adapter
	s.Client = hue.NewClient(
		cfg.Hue.Bridge,
		cfg.Hue.Token,
		cfg.Hue.Timeout.Duration(),
		cfg.Hue.RateLimitRPS,
	)

	// Transition engine over the bridge adapter
	s.Engine = dimmer.New(hue.NewAdapter(s.Client), cfg.Cache.StaleAfter.Duration())

	// Target resolver, populated from the bridge on Start
	s.Resolver = resolve.NewRegistry()

	// Action registry with the five dimming actions bound
	s.Registry = actions.NewRegistry()
	service := actions.NewService(s.Engine, s.Resolver, actions.Defaults{
		SweepTime: cfg.Defaults.SweepTime.Duration(),
	})
	if err := service.Register(s.Registry); err != nil {
		return nil, err
	}

	// HTTP API, probing the bridge for /healthz
	s.API = api.NewServer(cfg.API.Host, cfg.API.Port, s.Registry, s.Client.Ping)

	return s, nil
}

// Start connects to the bridge, loads the target registry and starts the
// API server. The onFatalError callback is called when the server fails.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if err := s.Client.Connect(ctx); err != nil {
		return err
	}

	if err := s.Resolver.Reload(ctx, s.Client); err != nil {
		return err
	}
	log.Info().Msg("Target registry loaded")

	go func() {
		if err := s.API.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			onFatalError(err)
		}
	}()

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Engine != nil {
		s.Engine.Close()
	}
	if s.Client != nil {
		s.Client.Close()
	}
}
