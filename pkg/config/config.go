// Package config loads the parcel-finder configuration from YAML, .env files
// and PARCEL_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/1F47E/parcel-finder/pkg/cadastre"
	"github.com/1F47E/parcel-finder/pkg/postgis"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

// Source values
const (
	SourceEtalab  = "etalab"
	SourcePostGIS = "postgis"
)

// Progress values
const (
	ProgressAuto   = "auto"
	ProgressAlways = "always"
	ProgressNever  = "never"
)

// Config is the whole configuration, one field per YAML section
type Config struct {
	Log      Log      `yaml:"log"`
	Search   Search   `yaml:"search"`
	Assembly Assembly `yaml:"assembly"`
	Report   Report   `yaml:"report"`
	Cadastre Cadastre `yaml:"cadastre"`
	Source   string   `yaml:"source"`
	PostGIS  PostGIS  `yaml:"postgis"`
}

// Log configures the global logger
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Search holds the containment search parameters
type Search struct {
	MinBuildingSize float64 `yaml:"min_building_size"`
	AreaPrecision   float64 `yaml:"area_precision"`
	UseIndex        bool    `yaml:"use_index"`
}

// Assembly holds the parcel assembly thresholds, in square meters
type Assembly struct {
	OccupancyThreshold float64 `yaml:"occupancy_threshold"`
	Tolerance          float64 `yaml:"tolerance"`
}

// Report shapes the text report and the progress bar
type Report struct {
	BatchSize      int    `yaml:"batch_size"`
	NumberingWrap  int    `yaml:"numbering_wrap"`
	SeparatorWidth int    `yaml:"separator_width"`
	Progress       string `yaml:"progress"`
}

// Cadastre locates the Etalab files and the local working directories
type Cadastre struct {
	BaseURL     string        `yaml:"base_url"`
	InseeFile   string        `yaml:"insee_file"`
	DownloadDir string        `yaml:"download_dir"`
	InputDir    string        `yaml:"input_dir"`
	Timeout     time.Duration `yaml:"timeout"`
	Parallel    int           `yaml:"parallel"`
}

// PostGIS is the connection and table layout of the database source
type PostGIS struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	ParcelTable    string `yaml:"parcel_table"`
	BuildingTable  string `yaml:"building_table"`
	MaxConnections int    `yaml:"max_connections"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Log: Log{Level: "info", Format: "console"},
		Search: Search{
			UseIndex: true,
		},
		Assembly: Assembly{
			OccupancyThreshold: 50,
			Tolerance:          25,
		},
		Report: Report{
			BatchSize:      100,
			NumberingWrap:  100,
			SeparatorWidth: 100,
			Progress:       ProgressAuto,
		},
		Cadastre: Cadastre{
			BaseURL:     cadastre.DefaultBaseURL,
			InseeFile:   "insee_code.csv",
			DownloadDir: "/tmp",
			InputDir:    "./inputs",
			Timeout:     2 * time.Minute,
			Parallel:    4,
		},
		Source: SourceEtalab,
		PostGIS: PostGIS{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Database:       "cadastre",
			ParcelTable:    "parcelles",
			BuildingTable:  "batiments",
			MaxConnections: 25,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := loadDotenv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotenv loads path into the process environment without overriding
// variables already set. A missing file is not an error.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings no component can work with
func (c *Config) Validate() error {
	switch c.Source {
	case SourceEtalab, SourcePostGIS:
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	switch c.Report.Progress {
	case ProgressAuto, ProgressAlways, ProgressNever:
	default:
		return fmt.Errorf("unknown progress mode %q", c.Report.Progress)
	}
	if c.Search.AreaPrecision < 0 || c.Search.MinBuildingSize < 0 {
		return errors.New("area precision and minimum building size must not be negative")
	}
	// the matchers and the formatter read zero as "use the default"
	if c.Assembly.Tolerance <= 0 || c.Assembly.OccupancyThreshold <= 0 {
		return errors.New("assembly tolerance and occupancy threshold must be positive")
	}
	if c.Report.BatchSize <= 0 || c.Report.NumberingWrap <= 0 || c.Report.SeparatorWidth <= 0 {
		return errors.New("report batch size, numbering wrap and separator width must be positive")
	}
	return nil
}

// ClientConfig converts the section for cadastre.NewClient
func (c Cadastre) ClientConfig() cadastre.Config {
	return cadastre.Config{
		BaseURL:     c.BaseURL,
		InseeFile:   c.InseeFile,
		DownloadDir: c.DownloadDir,
		InputDir:    c.InputDir,
		Timeout:     c.Timeout,
		Parallel:    c.Parallel,
	}
}

// StoreConfig converts the section for postgis.NewStore
func (p PostGIS) StoreConfig() postgis.Config {
	return postgis.Config{
		Host:           p.Host,
		Port:           p.Port,
		User:           p.User,
		Password:       p.Password,
		Database:       p.Database,
		ParcelTable:    p.ParcelTable,
		BuildingTable:  p.BuildingTable,
		MaxConnections: p.MaxConnections,
	}
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PARCEL_LOG_LEVEL", &c.Log.Level)
	str("PARCEL_LOG_FORMAT", &c.Log.Format)
	str("PARCEL_SOURCE", &c.Source)
	str("PARCEL_PROGRESS", &c.Report.Progress)
	str("PARCEL_BASE_URL", &c.Cadastre.BaseURL)
	str("PARCEL_INSEE_FILE", &c.Cadastre.InseeFile)
	str("PARCEL_DOWNLOAD_DIR", &c.Cadastre.DownloadDir)
	str("PARCEL_INPUT_DIR", &c.Cadastre.InputDir)
	str("PARCEL_POSTGIS_HOST", &c.PostGIS.Host)
	str("PARCEL_POSTGIS_USER", &c.PostGIS.User)
	str("PARCEL_POSTGIS_PASSWORD", &c.PostGIS.Password)
	str("PARCEL_POSTGIS_DATABASE", &c.PostGIS.Database)

	if v, ok := lookup("PARCEL_POSTGIS_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PARCEL_POSTGIS_PORT %q: %w", v, err)
		}
		c.PostGIS.Port = port
	}
	if v, ok := lookup("PARCEL_USE_INDEX"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PARCEL_USE_INDEX %q: %w", v, err)
		}
		c.Search.UseIndex = b
	}
	if v, ok := lookup("PARCEL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PARCEL_TIMEOUT %q: %w", v, err)
		}
		c.Cadastre.Timeout = d
	}
	return nil
}
