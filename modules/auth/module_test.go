package auth

import (
	"context"
	"testing"

	"github.com/GoCodeAlone/modular"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/portal/modules/database"
)

type testLogger struct {
	warnings []string
}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  { l.warnings = append(l.warnings, msg) }
func (l *testLogger) Error(msg string, args ...any) {}

func databaseModule() *database.Module {
	return database.NewModuleWithConfig(&database.Config{
		Default: "default",
		Connections: map[string]database.ConnectionConfig{
			"default": {
				Driver:             "sqlite",
				DSN:                "file::memory:?_pragma=foreign_keys(1)",
				MaxOpenConnections: 1,
			},
		},
	})
}

func newTestApp(t *testing.T, logger *testLogger, modules ...modular.Module) modular.Application {
	t.Helper()
	original := modular.ConfigFeeders
	modular.ConfigFeeders = []modular.Feeder{}
	t.Cleanup(func() { modular.ConfigFeeders = original })

	app := modular.NewStdApplication(modular.NewStdConfigProvider(&struct{}{}), logger)
	for _, module := range modules {
		app.RegisterModule(module)
	}
	return app
}

func TestModule_Metadata(t *testing.T) {
	module := NewModule()
	assert.Equal(t, "auth", module.Name())
	assert.Equal(t, []string{database.Name}, module.Dependencies())

	required := module.RequiresServices()
	require.Len(t, required, 1)
	assert.Equal(t, database.ServiceName, required[0].Name)
	assert.False(t, required[0].Required)
}

func TestModule_DatabaseSessionStore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password.BcryptCost = 4
	logger := &testLogger{}
	module := NewModuleWithConfig(cfg)
	app := newTestApp(t, logger, databaseModule(), module)
	require.NoError(t, app.Init())

	var service *Service
	require.NoError(t, app.GetService(ServiceName, &service))
	require.NotNil(t, service)
	assert.Same(t, module.Service(), service)
	assert.IsType(t, &SQLSessionStore{}, service.SessionStore())
	assert.NotEmpty(t, service.Config().JWT.Secret, "an ephemeral secret is generated")
	assert.Contains(t, logger.warnings, ephemeralSecretWarning)

	ctx := context.Background()
	session, err := service.CreateSession(ctx, "1", nil, nil)
	require.NoError(t, err)
	got, err := service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", got.UserID)
}

func TestModule_MemoryStoreWithConfiguredSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Store = StoreMemory
	cfg.JWT.Secret = "configured"
	logger := &testLogger{}
	module := NewModuleWithConfig(cfg)
	app := newTestApp(t, logger, databaseModule(), module)
	require.NoError(t, app.Init())
	require.NoError(t, app.Start())
	defer func() { require.NoError(t, app.Stop()) }()

	assert.IsType(t, &MemorySessionStore{}, module.Service().SessionStore())
	assert.Equal(t, "configured", module.Service().Config().JWT.Secret)
	assert.NotContains(t, logger.warnings, ephemeralSecretWarning)
}

func TestModule_RedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.JWT.Secret = "configured"
	cfg.Session.Store = StoreRedis
	cfg.Redis.Addr = mr.Addr()
	module := NewModuleWithConfig(cfg)
	app := newTestApp(t, &testLogger{}, databaseModule(), module)
	require.NoError(t, app.Init())
	require.NoError(t, app.Start())

	session, err := module.Service().CreateSession(context.Background(), "9", nil, nil)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cfg.Redis.KeyPrefix+session.ID))

	require.NoError(t, app.Stop())
}

func TestModule_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Store = "files"
	app := newTestApp(t, &testLogger{}, databaseModule(), NewModuleWithConfig(cfg))
	err := app.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
