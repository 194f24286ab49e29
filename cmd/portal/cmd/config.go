package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/GoCodeAlone/modular/feeders"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/portal/internal/portal"
	"github.com/GoCodeAlone/portal/modules/auth"
	"github.com/GoCodeAlone/portal/modules/chimux"
	"github.com/GoCodeAlone/portal/modules/database"
	"github.com/GoCodeAlone/portal/modules/httpserver"
	"github.com/GoCodeAlone/portal/modules/metrics"
	"github.com/GoCodeAlone/portal/modules/scheduler"
)

var ErrUnknownSampleFormat = errors.New("unknown sample format")

// sections holds every configuration section of the application.
type sections struct {
	Database   *database.Config             `yaml:"database" json:"database"`
	Chimux     *chimux.ChiMuxConfig         `yaml:"chimux" json:"chimux"`
	HTTPServer *httpserver.HTTPServerConfig `yaml:"httpserver" json:"httpserver"`
	Auth       *auth.Config                 `yaml:"auth" json:"auth"`
	Scheduler  *scheduler.SchedulerConfig   `yaml:"scheduler" json:"scheduler"`
	Metrics    *metrics.Config              `yaml:"metrics" json:"metrics"`
	Portal     *portal.Config               `yaml:"portal" json:"portal"`
}

func defaultSections() *sections {
	return &sections{
		Database:   database.DefaultConfig(),
		Chimux:     chimux.DefaultConfig(),
		HTTPServer: httpserver.DefaultConfig(),
		Auth:       auth.DefaultConfig(),
		Scheduler:  scheduler.DefaultConfig(),
		Metrics:    metrics.DefaultConfig(),
		Portal:     portal.DefaultConfig(),
	}
}

func (s *sections) byName() map[string]any {
	return map[string]any{
		"database":   s.Database,
		"chimux":     s.Chimux,
		"httpserver": s.HTTPServer,
		"auth":       s.Auth,
		"scheduler":  s.Scheduler,
		"metrics":    s.Metrics,
		"portal":     s.Portal,
	}
}

// loadSections starts from the defaults, applies the YAML file when it
// exists and then the environment.
func loadSections(path string) (*sections, error) {
	s := defaultSections()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			yf := feeders.NewYamlFeeder(path)
			for name, target := range s.byName() {
				if err := yf.FeedKey(name, target); err != nil {
					return nil, fmt.Errorf("reading %s section of %s: %w", name, path, err)
				}
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	env := feeders.NewEnvFeeder()
	for name, target := range s.byName() {
		if err := env.Feed(target); err != nil {
			return nil, fmt.Errorf("reading %s section from the environment: %w", name, err)
		}
	}
	return s, nil
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(newConfigSampleCommand())
	return cmd
}

func newConfigSampleCommand() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a configuration file holding the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := sampleConfig(format)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("writing sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample config written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, standard output when empty")
	return cmd
}

func sampleConfig(format string) ([]byte, error) {
	s := defaultSections()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSampleFormat, format)
	}
}
