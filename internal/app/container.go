package app

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/coordinator"
	"github.com/nfrund/huddle/internal/identity"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/rooms"
	"github.com/nfrund/huddle/internal/router"
	"github.com/nfrund/huddle/internal/server"
)

// NewContainer registers every service of the application. Services are
// built lazily on first invocation.
func NewContainer(cfg config.Provider) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, cfg)

	do.Provide(injector, func(i do.Injector) (*pubsub.WatermillBridge, error) {
		return pubsub.NewWatermillBridge(), nil
	})

	do.Provide(injector, func(i do.Injector) (*identity.Store, error) {
		cfg := do.MustInvoke[config.Provider](i)
		tokens := identity.NewTokens(identity.TokenConfig{
			Secret: cfg.GetJWTSecret(),
			Issuer: cfg.GetJWTIssuer(),
			TTL:    cfg.GetTokenTTL(),
		}, time.Now)
		return identity.NewStore(identity.NewHasher(cfg.GetBcryptCost()), tokens), nil
	})

	do.Provide(injector, func(i do.Injector) (*rooms.Registry, error) {
		return rooms.NewRegistry(), nil
	})

	do.Provide(injector, func(i do.Injector) (*presence.Service, error) {
		return presence.NewService(
			do.MustInvoke[*rooms.Registry](i),
			do.MustInvoke[*pubsub.WatermillBridge](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*rooms.Negotiator, error) {
		return rooms.NewNegotiator(
			do.MustInvoke[*rooms.Registry](i),
			do.MustInvoke[*presence.Service](i),
			do.MustInvoke[*pubsub.WatermillBridge](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*router.Router, error) {
		cfg := do.MustInvoke[config.Provider](i)
		return router.New(
			do.MustInvoke[*rooms.Registry](i),
			do.MustInvoke[*presence.Service](i),
			do.MustInvoke[*pubsub.WatermillBridge](i),
			router.Config{
				DeliveryTimeout: cfg.GetDeliveryTimeout(),
				QueueSize:       cfg.GetRouterQueue(),
				FanoutLimit:     cfg.GetFanoutLimit(),
			},
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*coordinator.Coordinator, error) {
		return coordinator.New(
			do.MustInvoke[*identity.Store](i),
			do.MustInvoke[*rooms.Registry](i),
			do.MustInvoke[*rooms.Negotiator](i),
			do.MustInvoke[*presence.Service](i),
			do.MustInvoke[*router.Router](i),
			do.MustInvoke[*pubsub.WatermillBridge](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*server.Server, error) {
		return server.New(
			do.MustInvoke[config.Provider](i),
			do.MustInvoke[*coordinator.Coordinator](i),
			do.MustInvoke[*pubsub.WatermillBridge](i),
		), nil
	})

	return injector
}
