package app

import (
	"context"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/coordinator"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/server"
)

func testConfig(t *testing.T) config.Provider {
	t.Helper()
	cfg, err := config.FromEnv(func(key string) string {
		if key == "HUDDLE_BCRYPT_COST" {
			return "4"
		}
		return ""
	})
	require.NoError(t, err)
	return cfg
}

func TestContainer_WiresSharedServices(t *testing.T) {
	injector := NewContainer(testConfig(t))
	defer injector.Shutdown()

	srv, err := do.Invoke[*server.Server](injector)
	require.NoError(t, err)
	require.NotNil(t, srv)

	coord := do.MustInvoke[*coordinator.Coordinator](injector)
	svc := do.MustInvoke[*presence.Service](injector)

	ctx := context.Background()
	require.Equal(t, domain.RegistrationCreated, coord.Register(ctx, "alice", "pw123").Kind)
	login := coord.Login(ctx, "alice", "pw123")
	require.True(t, login.Status.Passed)

	// The coordinator and the container share one presence service.
	assert.True(t, svc.ClientExists(ctx, *login.ClientID))
}
