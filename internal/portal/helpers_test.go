package portal

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/GoCodeAlone/modular"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/GoCodeAlone/portal/internal/portal/store"
	"github.com/GoCodeAlone/portal/modules/auth"
	"github.com/GoCodeAlone/portal/modules/chimux"
	"github.com/GoCodeAlone/portal/modules/database"
	"github.com/GoCodeAlone/portal/modules/metrics"
	"github.com/GoCodeAlone/portal/modules/scheduler"
)

const testAdminPassword = "admin123"

type logEntry struct {
	level string
	msg   string
	args  []any
}

type testLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *testLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *testLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *testLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *testLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *testLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *testLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
	return loc
}()

// fakeCounter records changes and job runs.
type fakeCounter struct {
	mu      sync.Mutex
	changes []string
	jobs    map[string]error
}

func (c *fakeCounter) RecordChange(entity, action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, entity+"."+action)
}

func (c *fakeCounter) ObserveJob(job string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jobs == nil {
		c.jobs = map[string]error{}
	}
	c.jobs[job] = err
}

// serviceFixture is a Service over an in-memory database, without an
// application around it.
type serviceFixture struct {
	svc     *Service
	store   *store.Store
	events  *Events
	counter *fakeCounter
	logger  *testLogger
	config  *Config
	db      *sql.DB
	now     time.Time
}

type dbService struct{ db *sql.DB }

func (d dbService) DB() *sql.DB { return d.db }

func (d dbService) RunMigrations(ctx context.Context, migrations []database.Migration) error {
	return database.NewMigrationRunner(database.NewMigrationService(d.db, nil)).RunMigrations(ctx, migrations)
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	authCfg := auth.DefaultConfig()
	authCfg.Password.BcryptCost = 4
	authCfg.JWT.Secret = "test-secret"
	authSvc := auth.NewService(authCfg, auth.NewMemorySessionStore())

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	f := &serviceFixture{
		store:   store.New(db, saoPaulo),
		counter: &fakeCounter{},
		logger:  &testLogger{},
		config:  cfg,
		db:      db,
		now:     time.Date(2025, 3, 10, 14, 30, 0, 0, saoPaulo),
	}
	f.events = NewEvents(f.store.Activity, f.counter, f.logger)
	f.events.now = func() time.Time { return f.now }
	f.svc = NewService(dbService{db}, f.store, authSvc, f.events, cfg, f.logger)
	f.svc.now = func() time.Time { return f.now }

	ctx := context.Background()
	require.NoError(t, f.svc.Migrate(ctx))
	require.NoError(t, f.svc.EnsureProfiles(ctx))
	return f
}

// admin creates the admin user and returns it.
func (f *serviceFixture) admin(t *testing.T) store.User {
	t.Helper()
	res, err := f.svc.EnsureAdmin(context.Background(), testAdminPassword)
	require.NoError(t, err)
	return res.User
}

func (f *serviceFixture) profile(t *testing.T, name string) store.Profile {
	t.Helper()
	p, err := f.store.Profiles.GetByName(context.Background(), name)
	require.NoError(t, err)
	return p
}

func (f *serviceFixture) project(t *testing.T, actor store.User, code string) store.Project {
	t.Helper()
	p, err := f.svc.CreateProject(context.Background(), actor, ProjectInput{
		Code:             code,
		Name:             "Projeto " + code,
		EconomicControl:  "CE-" + code,
		InitiativeNumber: "IN-" + code,
		Situation:        store.ProjectActive,
	})
	require.NoError(t, err)
	return p
}

func (f *serviceFixture) user(t *testing.T, actor store.User, login, status string) store.User {
	t.Helper()
	u, err := f.svc.CreateUser(context.Background(), &actor, UserInput{
		ProfileID: f.profile(t, store.ProfileUser).ID,
		Login:     login,
		FullName:  "Usuário " + login,
		Email:     login + "@example.com",
		Password:  "secret1",
		Status:    status,
	})
	require.NoError(t, err)
	return u
}

// testEnv is the full application behind an httptest server.
type testEnv struct {
	t       *testing.T
	app     modular.Application
	module  *Module
	metrics *metrics.Module
	logger  *testLogger
	server  *httptest.Server
}

// envConfig holds the sections a testEnv is built from.
type envConfig struct {
	portal *Config
	auth   *auth.Config
	router *chimux.ChiMuxConfig
}

type envOption func(c *envConfig)

func withoutAdminPassword() envOption {
	return func(c *envConfig) { c.portal.AdminPassword = "" }
}

func withAutoLogin(login string) envOption {
	return func(c *envConfig) { c.auth.AutoLoginUser = login }
}

func withBasePath(base string) envOption {
	return func(c *envConfig) { c.router.BasePath = base }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	original := modular.ConfigFeeders
	modular.ConfigFeeders = []modular.Feeder{}
	t.Cleanup(func() { modular.ConfigFeeders = original })

	portalCfg := DefaultConfig()
	portalCfg.AdminPassword = testAdminPassword
	authCfg := auth.DefaultConfig()
	authCfg.Password.BcryptCost = 4
	authCfg.JWT.Secret = "test-secret"
	routerCfg := chimux.DefaultConfig()
	routerCfg.RequestLogging = false
	for _, opt := range opts {
		opt(&envConfig{portal: portalCfg, auth: authCfg, router: routerCfg})
	}
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.RuntimeCollectors = false

	env := &testEnv{
		t:       t,
		logger:  &testLogger{},
		module:  NewModuleWithConfig(portalCfg),
		metrics: metrics.NewModuleWithConfig(metricsCfg),
	}
	app := modular.NewStdApplication(modular.NewStdConfigProvider(&struct{}{}), env.logger)
	app.RegisterModule(database.NewModuleWithConfig(&database.Config{
		Default: "default",
		Connections: map[string]database.ConnectionConfig{
			"default": {
				Driver:             "sqlite",
				DSN:                "file::memory:?_pragma=foreign_keys(1)",
				MaxOpenConnections: 1,
			},
		},
	}))
	app.RegisterModule(auth.NewModuleWithConfig(authCfg))
	app.RegisterModule(chimux.NewChiMuxModuleWithConfig(routerCfg))
	app.RegisterModule(scheduler.NewModule())
	app.RegisterModule(env.metrics)
	app.RegisterModule(env.module)
	require.NoError(t, app.Init())
	require.NoError(t, app.Start())
	t.Cleanup(func() { _ = app.Stop() })
	env.app = app

	var router *chimux.ChiMuxModule
	require.NoError(t, app.GetService(chimux.ServiceName, &router))
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) svc() *Service { return e.module.Service() }

func (e *testEnv) store() *store.Store { return e.module.Service().Store() }

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (e *testEnv) client() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &client{
		t:    e.t,
		base: e.server.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *client) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(body)
}

func (c *client) get(path string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *client) post(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// follow requests the redirect target of resp and returns the page.
func (c *client) follow(resp *http.Response) (*http.Response, string) {
	c.t.Helper()
	require.Equal(c.t, http.StatusFound, resp.StatusCode)
	return c.get(resp.Header.Get("Location"))
}

func (c *client) login(login, password string) {
	c.t.Helper()
	resp, _ := c.post("/login", url.Values{"login": {login}, "senha": {password}})
	require.Equal(c.t, http.StatusFound, resp.StatusCode, "login of %s", login)
	require.Equal(c.t, "/", resp.Header.Get("Location"))
}

// adminClient returns a client logged in as the bootstrap admin.
func (e *testEnv) adminClient() *client {
	c := e.client()
	c.login("admin", testAdminPassword)
	return c
}

func (e *testEnv) admin() store.User {
	u, err := e.store().Users.GetByLogin(context.Background(), "admin")
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) project(code string) store.Project {
	e.t.Helper()
	p, err := e.svc().CreateProject(context.Background(), e.admin(), ProjectInput{
		Code:             code,
		Name:             "Projeto " + code,
		EconomicControl:  "CE-" + code,
		InitiativeNumber: "IN-" + code,
		Situation:        store.ProjectActive,
	})
	require.NoError(e.t, err)
	return p
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
