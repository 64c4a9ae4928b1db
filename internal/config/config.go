// Package config loads the optional kiosk configuration file.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional kiosk configuration file. Every field is a
// pointer so presence can be told apart from a zero value; flags and
// environment variables override what the file sets.
type Config struct {
	Writer WriterConfig `toml:"writer"`
	Upload UploadConfig `toml:"upload"`
}

// WriterConfig holds tag-writer defaults.
type WriterConfig struct {
	RosterFile *string `toml:"roster_file"`
	Device     *string `toml:"device"`
}

// UploadConfig holds uploader defaults.
type UploadConfig struct {
	CredentialsFile *string  `toml:"credentials_file"`
	ParentFolderID  *string  `toml:"parent_folder_id"`
	BaseDir         *string  `toml:"base_dir"`
	RefreshExts     []string `toml:"refresh_exts"`
	JournalFile     *string  `toml:"journal_file"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "kiosk", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads a config file from an explicit path.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets the kiosk service override credentials and destination
// without touching the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("KIOSK_CREDENTIALS_FILE"); v != "" {
		c.Upload.CredentialsFile = &v
	}
	if v := os.Getenv("KIOSK_PARENT_FOLDER_ID"); v != "" {
		c.Upload.ParentFolderID = &v
	}
}
