package phiaudit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RetentionPolicy governs the archival/purge sweep. It is global,
// versionable configuration, not per-record state.
type RetentionPolicy struct {
	// Threshold is the minimum age before a record becomes eligible for
	// archival. Default: six years.
	Threshold time.Duration

	// ArchiveBeforePurge requires every record to land in cold storage
	// before it may leave the hot log.
	ArchiveBeforePurge bool

	// PurgeEnabled allows physical deletion from hot storage after
	// archival. With it off, the sweep archives and leaves rows in place.
	PurgeEnabled bool

	// BatchSize bounds how many records one sweep iteration handles.
	BatchSize int
}

// RotationPolicy carries the advisory salt rotation cadence. The subsystem
// never rotates on its own; deployment tooling drives Rotate on whatever
// schedule the policy prescribes.
type RotationPolicy struct {
	Cadence time.Duration
}

// policyFile is the YAML layout of an operator-managed policy file.
type policyFile struct {
	Retention struct {
		ThresholdDays      int  `yaml:"threshold_days"`
		ArchiveBeforePurge bool `yaml:"archive_before_purge"`
		PurgeEnabled       bool `yaml:"purge_enabled"`
		BatchSize          int  `yaml:"batch_size"`
	} `yaml:"retention"`
	Rotation struct {
		CadenceDays int `yaml:"cadence_days"`
	} `yaml:"rotation"`
}

// LoadPolicyFile reads retention and rotation policy from a YAML file.
// Missing values keep their defaults.
func LoadPolicyFile(path string) (RetentionPolicy, RotationPolicy, error) {
	retention := RetentionPolicy{
		Threshold:          DefaultRetentionThreshold,
		ArchiveBeforePurge: true,
		BatchSize:          500,
	}
	rotation := RotationPolicy{Cadence: DefaultRotationCadence}

	data, err := os.ReadFile(path)
	if err != nil {
		return retention, rotation, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return retention, rotation, fmt.Errorf("%w: failed to parse policy file %q: %w", ErrInvalidConfiguration, path, err)
	}

	if pf.Retention.ThresholdDays > 0 {
		retention.Threshold = time.Duration(pf.Retention.ThresholdDays) * 24 * time.Hour
	}
	retention.ArchiveBeforePurge = pf.Retention.ArchiveBeforePurge
	retention.PurgeEnabled = pf.Retention.PurgeEnabled
	if pf.Retention.BatchSize > 0 {
		retention.BatchSize = pf.Retention.BatchSize
	}
	if pf.Rotation.CadenceDays > 0 {
		rotation.Cadence = time.Duration(pf.Rotation.CadenceDays) * 24 * time.Hour
	}

	return retention, rotation, nil
}
