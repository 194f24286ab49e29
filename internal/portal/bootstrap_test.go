package portal

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/portal/internal/portal/store"
	"github.com/GoCodeAlone/portal/modules/auth"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the admin when a password is configured", func(t *testing.T) {
		f := newServiceFixture(t)
		f.config.AdminPassword = "boot-secret"
		require.NoError(t, f.svc.Bootstrap(ctx))
		assert.True(t, f.logger.has("info", "Admin user created"))

		u, err := f.svc.Authenticate(ctx, "admin", "boot-secret")
		require.NoError(t, err)
		assert.True(t, u.IsAdmin())
		assert.Equal(t, "admin@portalprojetos.com", u.Email)

		require.NoError(t, f.svc.Bootstrap(ctx), "bootstrap is repeatable")
		n, err := f.store.Users.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("warns when no admin exists", func(t *testing.T) {
		f := newServiceFixture(t)
		require.NoError(t, f.svc.Bootstrap(ctx))
		assert.True(t, f.logger.has("warn", "No admin user exists; run 'portal admin create' or set portal.admin_password"))
		for _, name := range []string{store.ProfileAdmin, store.ProfileUser} {
			f.profile(t, name)
		}
	})
}

func TestEnsureAdmin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.EnsureAdmin(ctx, "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Len(t, res.GeneratedPassword, 16)
	for _, r := range res.GeneratedPassword {
		assert.Contains(t, passwordAlphabet, string(r))
	}
	_, err = f.svc.Authenticate(ctx, "admin", res.GeneratedPassword)
	require.NoError(t, err)

	again, err := f.svc.EnsureAdmin(ctx, "other-password")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Empty(t, again.GeneratedPassword)
	assert.Equal(t, res.User.ID, again.User.ID)
	_, err = f.svc.Authenticate(ctx, "admin", "other-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "an existing admin keeps its password")
}

func TestResetAdminPassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResetAdminPassword(ctx, "whatever")
	assert.ErrorIs(t, err, ErrAdminMissing)

	f.admin(t)
	generated, err := f.svc.ResetAdminPassword(ctx, "chosen-secret")
	require.NoError(t, err)
	assert.Empty(t, generated)
	_, err = f.svc.Authenticate(ctx, "admin", "chosen-secret")
	require.NoError(t, err)

	generated, err = f.svc.ResetAdminPassword(ctx, "")
	require.NoError(t, err)
	assert.Len(t, generated, 16)
	_, err = f.svc.Authenticate(ctx, "admin", generated)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, "admin", "chosen-secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestInitDatabase(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.InitDatabase(ctx, InitOptions{AdminPassword: "init-secret"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.GeneratedPassword)

	_, err = f.svc.InitDatabase(ctx, InitOptions{})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	f.project(t, res.User, "GONE1")
	res, err = f.svc.InitDatabase(ctx, InitOptions{Force: true, WithSample: true})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Len(t, res.GeneratedPassword, 16)
	assert.True(t, f.logger.has("warn", "Portal tables dropped"))

	_, err = f.store.Projects.GetByCode(ctx, "GONE1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	sample, err := f.store.Projects.GetByCode(ctx, sampleProjectCode)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, sample.CreatedBy)

	incidents, err := f.store.Incidents.ListByProject(ctx, sample.ID)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, sampleIncidentTitle, incidents[0].Title)
	assert.Equal(t, store.PriorityMedium, incidents[0].Priority)
	assert.Equal(t, store.IncidentOpen, incidents[0].Status)
}

func TestForcedInitRevokesSessions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	old := f.user(t, admin, "old", store.UserActive)

	sess, err := f.svc.auth.CreateSession(ctx, strconv.FormatInt(old.ID, 10), nil, map[string]any{loginClaim: old.Login})
	require.NoError(t, err)

	_, err = f.svc.InitDatabase(ctx, InitOptions{Force: true, AdminPassword: "init-secret"})
	require.NoError(t, err)
	assert.True(t, f.logger.has("warn", "Sessions revoked"))

	// The next user created reuses the id of the dropped one.
	_, err = f.svc.Seed(ctx, SeedUsers)
	require.NoError(t, err)
	reused, err := f.store.Users.Get(ctx, old.ID)
	require.NoError(t, err)
	require.NotEqual(t, "old", reused.Login)

	_, err = f.svc.auth.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}
