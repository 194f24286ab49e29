package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/GoCodeAlone/modular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/portal/modules/chimux"
)

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}

func newTestApp(t *testing.T, cfg *HTTPServerConfig) (modular.Application, *chimux.ChiMuxModule, *HTTPServerModule) {
	t.Helper()
	original := modular.ConfigFeeders
	modular.ConfigFeeders = []modular.Feeder{}
	t.Cleanup(func() { modular.ConfigFeeders = original })

	router := chimux.NewChiMuxModule()
	server := NewHTTPServerModuleWithConfig(cfg)
	app := modular.NewStdApplication(modular.NewStdConfigProvider(&struct{}{}), &testLogger{})
	app.RegisterModule(server)
	app.RegisterModule(router)
	require.NoError(t, app.Init())
	return app, router, server
}

func localConfig() *HTTPServerConfig {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestModule_ServesRouter(t *testing.T) {
	app, router, server := newTestApp(t, localConfig())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	var svc *HTTPServerModule
	require.NoError(t, app.GetService(ServiceName, &svc))
	assert.Same(t, server, svc)

	require.NoError(t, app.Start())
	addr := server.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, app.Stop())
	_, err = http.Get("http://" + addr + "/healthz")
	assert.Error(t, err)
}

func TestModule_StopBeforeStart(t *testing.T) {
	_, _, server := newTestApp(t, localConfig())
	assert.ErrorIs(t, server.Stop(context.Background()), ErrServerNotStarted)
	assert.Empty(t, server.Addr())
}

func TestModule_StartFailsOnBusyPort(t *testing.T) {
	_, _, first := newTestApp(t, localConfig())
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Stop(context.Background()) }()

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)

	cfg := localConfig()
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	_, _, second := newTestApp(t, cfg)
	assert.Error(t, second.Start(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	cfg := &HTTPServerConfig{Port: 70000}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)

	cfg = &HTTPServerConfig{Port: 8080}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	cfg.TLS = &TLSConfig{Enabled: true, CertFile: "cert.pem"}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingTLSFile)

	assert.Equal(t, "0.0.0.0:5000", DefaultConfig().Address())
}

func TestModule_Metadata(t *testing.T) {
	module := NewHTTPServerModule()
	assert.Equal(t, "httpserver", module.Name())
	assert.Equal(t, []string{chimux.ModuleName}, module.Dependencies())
	require.Len(t, module.RequiresServices(), 1)
	assert.True(t, module.RequiresServices()[0].Required)
}
