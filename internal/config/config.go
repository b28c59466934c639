package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yml
var embedded embed.FS

type Config struct {
	Profile     string      `yaml:"profile"`
	PeerID      string      `yaml:"peer_id"`
	Server      Server      `yaml:"server"`
	Metrics     Metrics     `yaml:"metrics"`
	Registry    Registry    `yaml:"registry"`
	Replication Replication `yaml:"replication"`
	Storage     Storage     `yaml:"storage"`
	Log         Log         `yaml:"log"`
}

type Server struct {
	Port          int    `yaml:"port"`
	APIKey        string `yaml:"api_key"`
	AdvertisedURL string `yaml:"advertised_url"`
}

type Metrics struct {
	Port int `yaml:"port"`
}

type Registry struct {
	LeaseDuration time.Duration `yaml:"lease_duration"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TombstoneTTL  time.Duration `yaml:"tombstone_ttl"`
	IncludeNonUp  bool          `yaml:"include_non_up"`
}

type Replication struct {
	Peers     []string      `yaml:"peers"`
	Attempts  int           `yaml:"attempts"`
	MinWait   time.Duration `yaml:"min_wait"`
	MaxWait   time.Duration `yaml:"max_wait"`
	QueueSize int           `yaml:"queue_size"`
	BatchSize int           `yaml:"batch_size"`
}

type Storage struct {
	DataDir string `yaml:"data_dir"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Embedded returns the profile files shipped with the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "profiles")
	if err != nil {
		panic(fmt.Errorf("embedded profiles: %w", err))
	}
	return sub
}

// Load reads application.yml from fsys, then application-<profile>.yml on top of it.
// The profile comes from EUREKA_PROFILE or, when unset, from the base file.
// ${VAR} references in files must resolve; EUREKA_* variables override file values.
func Load(fsys fs.FS, lookup LookupFunc) (*Config, []Override, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Config{}
	if err := decodeFile(fsys, "application.yml", lookup, &cfg); err != nil {
		return nil, nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile, found := lookup(EnvProfile); found && profile != "" {
		cfg.Profile = profile
	}
	if cfg.Profile == "" {
		return nil, nil, errors.New("profile is required")
	}

	profileFile := "application-" + cfg.Profile + ".yml"
	if err := decodeFile(fsys, profileFile, lookup, &cfg); err != nil {
		return nil, nil, fmt.Errorf("loading %s profile config: %w", cfg.Profile, err)
	}

	overrides, err := applyEnv(&cfg, lookup)
	if err != nil {
		return nil, nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if cfg.PeerID == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving hostname for peer id: %w", err)
		}
		cfg.PeerID = host
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, overrides, nil
}

func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port out of range: %d", cfg.Server.Port))
	}
	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics port out of range: %d", cfg.Metrics.Port))
	}
	if cfg.Registry.LeaseDuration <= 0 {
		errs = append(errs, fmt.Errorf("lease duration must be positive, got: %s", cfg.Registry.LeaseDuration))
	}
	if cfg.Registry.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweep interval must be positive, got: %s", cfg.Registry.SweepInterval))
	}
	if cfg.Registry.TombstoneTTL <= 0 {
		errs = append(errs, fmt.Errorf("tombstone ttl must be positive, got: %s", cfg.Registry.TombstoneTTL))
	}
	if cfg.Replication.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("replication attempts must be positive, got: %d", cfg.Replication.Attempts))
	}
	if cfg.Log.Format != FormatConsole && cfg.Log.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("unknown log format %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

func decodeFile(fsys fs.FS, name string, lookup LookupFunc, target *Config) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	expanded, err := expandEnvStrict(string(raw), lookup)
	if err != nil {
		return fmt.Errorf("expanding %s: %w", name, err)
	}

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

var envRefRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvStrict fails on references to unset variables.
func expandEnvStrict(s string, lookup LookupFunc) (string, error) {
	var missing []error
	res := envRefRe.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRefRe.FindStringSubmatch(ref)[1]
		val, found := lookup(name)
		if !found {
			missing = append(missing, fmt.Errorf("environment variable %s is not set", name))
		}
		return val
	})
	return res, errors.Join(missing...)
}
