// Package config defines the performance presets that bound courier's
// storage and upload behavior, and loads optional YAML overrides.
package config

import (
	"fmt"
	"time"
)

// Preset supplies every tunable the pipeline consumes. Exact thresholds are
// configuration, not constants: pick a named preset and override per
// deployment via a YAML file.
//
// The read grace period (MinFileAgeForRead) is the sole concurrency guard
// between writer and reader, so it must exceed MaxFileAgeForWrite — a file
// the writer may still extend must never look read-eligible.
type Preset struct {
	// Storage
	MaxFileSize        int64         `yaml:"max_file_size"`
	MaxFileAgeForWrite time.Duration `yaml:"max_file_age_for_write"`
	MinFileAgeForRead  time.Duration `yaml:"min_file_age_for_read"`
	MaxFileAgeForRead  time.Duration `yaml:"max_file_age_for_read"`
	MaxDirectorySize   int64         `yaml:"max_directory_size"`
	MaxFileCount       int           `yaml:"max_file_count"`
	MaxEventSize       int64         `yaml:"max_event_size"`
	MaxEventsPerFile   int           `yaml:"max_events_per_file"`

	// Upload scheduling
	MinUploadDelay     time.Duration `yaml:"min_upload_delay"`
	MaxUploadDelay     time.Duration `yaml:"max_upload_delay"`
	DefaultUploadDelay time.Duration `yaml:"default_upload_delay"`
	DelayChangeFactor  float64       `yaml:"delay_change_factor"`

	// Admission control
	MinBatteryLevel float64 `yaml:"min_battery_level"`
}

// Balanced is the default preset: batches of a few megabytes, a five second
// read grace period, upload cycles between one and twenty seconds.
func Balanced() Preset {
	return Preset{
		MaxFileSize:        4 << 20,
		MaxFileAgeForWrite: 4750 * time.Millisecond,
		MinFileAgeForRead:  5 * time.Second,
		MaxFileAgeForRead:  18 * time.Hour,
		MaxDirectorySize:   512 << 20,
		MaxFileCount:       500,
		MaxEventSize:       512 << 10,
		MaxEventsPerFile:   500,
		MinUploadDelay:     time.Second,
		MaxUploadDelay:     20 * time.Second,
		DefaultUploadDelay: 5 * time.Second,
		DelayChangeFactor:  1.2,
		MinBatteryLevel:    0.1,
	}
}

// LowPower trades latency for battery and radio time: bigger batches,
// longer and slower-shrinking upload delays.
func LowPower() Preset {
	p := Balanced()
	p.MaxFileAgeForWrite = 55 * time.Second
	p.MinFileAgeForRead = time.Minute
	p.MinUploadDelay = 10 * time.Second
	p.MaxUploadDelay = 5 * time.Minute
	p.DefaultUploadDelay = time.Minute
	p.DelayChangeFactor = 1.5
	p.MinBatteryLevel = 0.2
	return p
}

// Frequent favors delivery latency: small short-lived batches and tight
// upload cycles. Intended for debugging and integration tests against a
// live collector.
func Frequent() Preset {
	p := Balanced()
	p.MaxFileSize = 1 << 20
	p.MaxFileAgeForWrite = 950 * time.Millisecond
	p.MinFileAgeForRead = time.Second
	p.MinUploadDelay = 100 * time.Millisecond
	p.MaxUploadDelay = 5 * time.Second
	p.DefaultUploadDelay = 500 * time.Millisecond
	return p
}

// Named returns the preset registered under name.
func Named(name string) (Preset, error) {
	switch name {
	case "", "balanced":
		return Balanced(), nil
	case "low-power", "lowpower":
		return LowPower(), nil
	case "frequent":
		return Frequent(), nil
	default:
		return Preset{}, fmt.Errorf("unknown preset %q (must be balanced, low-power, or frequent)", name)
	}
}

// Validate checks the preset's internal consistency.
func (p Preset) Validate() error {
	if p.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", p.MaxFileSize)
	}
	if p.MaxEventSize > p.MaxFileSize {
		return fmt.Errorf("max_event_size %d exceeds max_file_size %d", p.MaxEventSize, p.MaxFileSize)
	}
	if p.MaxFileAgeForWrite <= 0 {
		return fmt.Errorf("max_file_age_for_write must be positive, got %v", p.MaxFileAgeForWrite)
	}
	if p.MinFileAgeForRead <= p.MaxFileAgeForWrite {
		return fmt.Errorf("min_file_age_for_read %v must exceed max_file_age_for_write %v",
			p.MinFileAgeForRead, p.MaxFileAgeForWrite)
	}
	if p.MaxFileAgeForRead > 0 && p.MaxFileAgeForRead <= p.MinFileAgeForRead {
		return fmt.Errorf("max_file_age_for_read %v must exceed min_file_age_for_read %v",
			p.MaxFileAgeForRead, p.MinFileAgeForRead)
	}
	if p.MinUploadDelay <= 0 || p.MaxUploadDelay < p.MinUploadDelay {
		return fmt.Errorf("upload delay bounds invalid: min %v, max %v", p.MinUploadDelay, p.MaxUploadDelay)
	}
	if p.DefaultUploadDelay < p.MinUploadDelay || p.DefaultUploadDelay > p.MaxUploadDelay {
		return fmt.Errorf("default_upload_delay %v outside [%v, %v]",
			p.DefaultUploadDelay, p.MinUploadDelay, p.MaxUploadDelay)
	}
	if p.DelayChangeFactor <= 1 {
		return fmt.Errorf("delay_change_factor must exceed 1, got %v", p.DelayChangeFactor)
	}
	if p.MinBatteryLevel < 0 || p.MinBatteryLevel >= 1 {
		return fmt.Errorf("min_battery_level %v outside [0, 1)", p.MinBatteryLevel)
	}
	return nil
}
