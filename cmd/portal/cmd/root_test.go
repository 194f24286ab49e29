package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/GoCodeAlone/modular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeConfig creates a configuration file pointing at a database in a
// temporary directory.
func writeConfig(t *testing.T) string {
	t.Helper()
	original := modular.ConfigFeeders
	t.Cleanup(func() { modular.ConfigFeeders = original })

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  default: default
  connections:
    default:
      driver: sqlite
      dsn: "file:` + filepath.ToSlash(filepath.Join(dir, "portal.db")) + `?_pragma=foreign_keys(1)"
      max_open_connections: 1
auth:
  jwt:
    secret: test-secret
  password:
    bcrypt_cost: 4
portal:
  overdue_report_cron: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var generatedPassword = regexp.MustCompile(`Generated password[^:]*: (\S+)`)

func TestDBInitAndAdmin(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "db", "init", "--with-sample")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Database initialized")
	assert.Contains(t, out, "Sample project and incident created")
	m := generatedPassword.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	assert.Len(t, m[1], 16)

	_, err = run(t, "--config", cfg, "db", "init")
	assert.Error(t, err, "init refuses a database with users")

	out, err = run(t, "--config", cfg, "db", "init", "--force", "--admin-password", "chosen-secret")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "chosen-secret", "chosen passwords are never printed")
	assert.NotContains(t, out, "Generated password")

	out, err = run(t, "--config", cfg, "admin", "create")
	require.NoError(t, err, out)
	assert.Contains(t, out, "User admin already exists")

	out, err = run(t, "--config", cfg, "admin", "reset-password", "--password", "another-secret")
	require.NoError(t, err, out)
	assert.Equal(t, "Admin password updated\n", out)

	out, err = run(t, "--config", cfg, "admin", "reset-password")
	require.NoError(t, err, out)
	assert.Regexp(t, generatedPassword, out)

	out, err = run(t, "--config", cfg, "db", "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Migrations applied")
}

func TestAdminCreateOnEmptyDatabase(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "admin", "create", "--password", "secret-one")
	require.NoError(t, err, out)
	assert.Equal(t, "User admin created\n", out)
}

func TestResetPasswordWithoutAdmin(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, "--config", cfg, "admin", "reset-password", "--password", "secret-one")
	assert.ErrorContains(t, err, "admin user does not exist")
}

func TestSeed(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, "--config", cfg, "db", "init", "--admin-password", "admin123")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "seed", "all")
	require.NoError(t, err, out)
	assert.Equal(t, "users: 5 created\nprojects: 4 created\ntasks: 5 created\n", out)
	assert.NotContains(t, out, "123456", "fixture passwords are never printed")

	out, err = run(t, "--config", cfg, "seed", "projects")
	require.NoError(t, err, out)
	assert.Equal(t, "projects: skipped, projects already exist\n", out)

	_, err = run(t, "--config", cfg, "seed", "widgets")
	assert.ErrorContains(t, err, "unknown fixture set")

	_, err = run(t, "--config", cfg, "seed")
	assert.Error(t, err)
}

func TestConfigSample(t *testing.T) {
	out, err := run(t, "config", "sample")
	require.NoError(t, err)
	var sample map[string]map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &sample))
	assert.Equal(t, 5000, sample["httpserver"]["port"])
	assert.Equal(t, "America/Sao_Paulo", sample["portal"]["timezone"])
	assert.Equal(t, "0 8 * * *", sample["portal"]["overdue_report_cron"])

	path := filepath.Join(t.TempDir(), "sample.json")
	out, err = run(t, "config", "sample", "--format", "json", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Sample config written to "+path)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var fromJSON map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &fromJSON))
	assert.Contains(t, fromJSON, "database")
	assert.Contains(t, fromJSON, "metrics")

	_, err = run(t, "config", "sample", "--format", "ini")
	assert.ErrorIs(t, err, ErrUnknownSampleFormat)
}

func TestLoadSectionsKeepsDefaults(t *testing.T) {
	cfg := writeConfig(t)
	s, err := loadSections(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Auth.Password.BcryptCost)
	assert.Equal(t, "test-secret", s.Auth.JWT.Secret)
	assert.Empty(t, s.Portal.OverdueReportCron)
	assert.Equal(t, 90, s.Portal.ActivityRetentionDays, "keys missing from the file keep their defaults")
	assert.Equal(t, 5000, s.HTTPServer.Port)

	s, err = loadSections(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5000, s.HTTPServer.Port)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, PrintVersion()+"\n", out)
}
