package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// File is the courier.yaml schema. Every field is optional and overrides
// the named preset; unset fields keep the preset's value.
type File struct {
	Preset string `yaml:"preset"`

	MaxFileSize        *int64   `yaml:"max_file_size"`
	MaxFileAgeForWrite Duration `yaml:"max_file_age_for_write"`
	MinFileAgeForRead  Duration `yaml:"min_file_age_for_read"`
	MaxFileAgeForRead  Duration `yaml:"max_file_age_for_read"`
	MaxDirectorySize   *int64   `yaml:"max_directory_size"`
	MaxFileCount       *int     `yaml:"max_file_count"`
	MaxEventSize       *int64   `yaml:"max_event_size"`
	MaxEventsPerFile   *int     `yaml:"max_events_per_file"`

	MinUploadDelay     Duration `yaml:"min_upload_delay"`
	MaxUploadDelay     Duration `yaml:"max_upload_delay"`
	DefaultUploadDelay Duration `yaml:"default_upload_delay"`
	DelayChangeFactor  *float64 `yaml:"delay_change_factor"`

	MinBatteryLevel *float64 `yaml:"min_battery_level"`
}

// Load reads a YAML config file, expands ${VAR} and ${VAR:-default}
// references, applies the file's overrides on top of its named preset, and
// validates the result.
func Load(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Preset{}, fmt.Errorf("config file not found: %s", path)
		}
		return Preset{}, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return Preset{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return f.Resolve()
}

// Resolve merges the file's overrides onto its named preset and validates.
func (f File) Resolve() (Preset, error) {
	p, err := Named(f.Preset)
	if err != nil {
		return Preset{}, err
	}

	if f.MaxFileSize != nil {
		p.MaxFileSize = *f.MaxFileSize
	}
	if f.MaxFileAgeForWrite.Duration != 0 {
		p.MaxFileAgeForWrite = f.MaxFileAgeForWrite.Duration
	}
	if f.MinFileAgeForRead.Duration != 0 {
		p.MinFileAgeForRead = f.MinFileAgeForRead.Duration
	}
	if f.MaxFileAgeForRead.Duration != 0 {
		p.MaxFileAgeForRead = f.MaxFileAgeForRead.Duration
	}
	if f.MaxDirectorySize != nil {
		p.MaxDirectorySize = *f.MaxDirectorySize
	}
	if f.MaxFileCount != nil {
		p.MaxFileCount = *f.MaxFileCount
	}
	if f.MaxEventSize != nil {
		p.MaxEventSize = *f.MaxEventSize
	}
	if f.MaxEventsPerFile != nil {
		p.MaxEventsPerFile = *f.MaxEventsPerFile
	}
	if f.MinUploadDelay.Duration != 0 {
		p.MinUploadDelay = f.MinUploadDelay.Duration
	}
	if f.MaxUploadDelay.Duration != 0 {
		p.MaxUploadDelay = f.MaxUploadDelay.Duration
	}
	if f.DefaultUploadDelay.Duration != 0 {
		p.DefaultUploadDelay = f.DefaultUploadDelay.Duration
	}
	if f.DelayChangeFactor != nil {
		p.DelayChangeFactor = *f.DelayChangeFactor
	}
	if f.MinBatteryLevel != nil {
		p.MinBatteryLevel = *f.MinBatteryLevel
	}

	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}
