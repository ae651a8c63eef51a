package vrpm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/klauspost/compress/flate"
)

// Config carries every path and tunable the tool works with. It is
// built once at startup and handed to each component; nothing reads
// the environment after LoadConfig returns.
type Config struct {
	// ProfileDir is the on-disk profile directory the browser uses.
	ProfileDir string `env:"VRPM_PROFILE_DIR"`

	// RAMDir is the mirror directory on the RAM-backed filesystem.
	RAMDir string `env:"VRPM_RAM_DIR"`

	// BackupDir holds the zip backups of the profile.
	BackupDir string `env:"VRPM_BACKUP_DIR"`

	// BackupPrefix is the leading part of generated backup file names.
	BackupPrefix string `env:"VRPM_BACKUP_PREFIX"`

	// ProcessName is the exact process name checked before load/save.
	ProcessName string `env:"VRPM_PROCESS_NAME"`

	// CapacityFactor is the headroom multiplier applied to the profile
	// size when checking free RAM filesystem space.
	CapacityFactor float64 `env:"VRPM_CAPACITY_FACTOR"`

	// CompressionLevel is the flate level used for backup archives.
	CompressionLevel int `env:"VRPM_COMPRESSION_LEVEL"`
}

// DefaultConfig returns the stock configuration rooted in the current
// user's home directory.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	return Config{
		ProfileDir:       filepath.Join(home, ".config", "vivaldi"),
		RAMDir:           "/dev/shm/vivaldi-profile",
		BackupDir:        filepath.Join(home, "Backups", "vivaldi-profile-ram"),
		BackupPrefix:     "vivaldi-profile",
		ProcessName:      "vivaldi-bin",
		CapacityFactor:   2,
		CompressionLevel: flate.BestCompression,
	}, nil
}

// LoadConfig is DefaultConfig plus VRPM_* environment overrides.
func LoadConfig() (Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	for name, dir := range map[string]string{
		"profile dir": c.ProfileDir,
		"ram dir":     c.RAMDir,
		"backup dir":  c.BackupDir,
	} {
		if dir == "" {
			return fmt.Errorf("%s is not set", name)
		}
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s %q is not an absolute path", name, dir)
		}
	}
	if c.ProfileDir == c.RAMDir {
		return fmt.Errorf("profile dir and ram dir are both %q", c.ProfileDir)
	}
	if c.BackupPrefix == "" {
		return fmt.Errorf("backup prefix is not set")
	}
	if c.ProcessName == "" {
		return fmt.Errorf("process name is not set")
	}
	if c.CapacityFactor <= 0 {
		return fmt.Errorf("capacity factor %v must be positive", c.CapacityFactor)
	}
	return nil
}

// MountCommand returns the argv that binds the RAM directory over the
// profile directory.
func (c Config) MountCommand() []string {
	return []string{"mount", "--bind", c.RAMDir, c.ProfileDir}
}

// UnmountCommand returns the argv that releases the bind mount.
func (c Config) UnmountCommand() []string {
	return []string{"umount", c.ProfileDir}
}
