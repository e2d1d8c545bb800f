package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrConfiguration marks fatal setup problems. Errors wrapping it abort
// the run instead of being counted and skipped.
var ErrConfiguration = errors.New("configuration error")

//go:embed sample.toml
var sampleConfig []byte

// Config is the top-level TOML configuration for a transfer run.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Patient Patient `toml:"patient"`
	Plans   Plans   `toml:"plans"`
	Logging Logging `toml:"logging"`
}

// Paths names the source and destination roots.
type Paths struct {
	PatientDir string `toml:"patient_dir"` // XVI patient directory to read
	OutputBase string `toml:"output_base"` // archive root to populate
	StagingDir string `toml:"staging_dir"` // scratch area for plan anonymization
}

// Patient carries per-patient identity and layout settings.
type Patient struct {
	AnonID        string `toml:"anon_id"`        // assigned from the registry when empty
	SiteName      string `toml:"site_name"`      // clinical trial site label
	ImagesSubdir  string `toml:"images_subdir"`  // session container under patient_dir
	CentroidFile  string `toml:"centroid_file"`  // marker centroid text file, optional
	TrajectoryDir string `toml:"trajectory_dir"` // trajectory log base, optional
	RegistryFile  string `toml:"registry_file"`  // anon ID registry, optional
}

// Plans points at the treatment plan inputs. When source_dir is set the
// files are classified by modality and anonymized into the staging
// area; otherwise the per-category directories are used as-is.
type Plans struct {
	SourceDir     string `toml:"source_dir"`
	CTDir         string `toml:"ct_dir"`
	PlanDir       string `toml:"plan_dir"`
	StructuresDir string `toml:"structures_dir"`
	DoseDir       string `toml:"dose_dir"`
}

// Logging controls log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", ErrConfiguration, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrConfiguration, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Patient.ImagesSubdir == "" {
		c.Patient.ImagesSubdir = "IMAGES"
	}
	if c.Paths.StagingDir == "" && c.Paths.OutputBase != "" {
		c.Paths.StagingDir = filepath.Join(c.Paths.OutputBase, ".staging")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Paths.PatientDir == "" {
		return fmt.Errorf("%w: paths.patient_dir is required", ErrConfiguration)
	}
	if c.Paths.OutputBase == "" {
		return fmt.Errorf("%w: paths.output_base is required", ErrConfiguration)
	}
	if c.Patient.SiteName == "" {
		return fmt.Errorf("%w: patient.site_name is required", ErrConfiguration)
	}
	if c.Patient.AnonID == "" && c.Patient.RegistryFile == "" {
		return fmt.Errorf("%w: set patient.anon_id or patient.registry_file", ErrConfiguration)
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s already exists", ErrConfiguration, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, sampleConfig, 0644)
}
