package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ralt/swidgen/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fileConfig is the layout of the YAML config file
type fileConfig struct {
	EntityName   *string `yaml:"entity_name"`
	RegID        *string `yaml:"regid"`
	Hash         *string `yaml:"hash"`
	Full         *bool   `yaml:"full"`
	Env          *string `yaml:"env"`
	DocSeparator *string `yaml:"doc_separator"`
}

// defaultConfigPath returns $XDG_CONFIG_HOME/swidgen/config.yaml
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "swidgen", "config.yaml")
}

// loadFileConfig reads a config file. A missing file is only an error when
// its path was given explicitly.
func loadFileConfig(path string) (*fileConfig, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return &fileConfig{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return &fileConfig{}, nil
		}
		return nil, &models.SwidError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("failed to read config file: %w", err),
		}
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &models.SwidError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("failed to parse config file %s: %w", path, err),
		}
	}

	logrus.Debugf("Loaded config file %s", path)
	return &cfg, nil
}

// values maps flag names to the values set in the file
func (c *fileConfig) values() map[string]string {
	values := make(map[string]string)
	set := func(flag string, v *string) {
		if v != nil {
			values[flag] = *v
		}
	}

	set("entity-name", c.EntityName)
	set("regid", c.RegID)
	set("hash", c.Hash)
	set("env", c.Env)
	set("doc-separator", c.DocSeparator)
	if c.Full != nil {
		values["full"] = strconv.FormatBool(*c.Full)
	}
	return values
}

// applyConfigFile sets every flag of cmd that the user did not set
// explicitly from the config file
func applyConfigFile(cmd *cobra.Command, path string) error {
	cfg, err := loadFileConfig(path)
	if err != nil {
		return err
	}

	for name, value := range cfg.values() {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		if err := cmd.Flags().Set(name, value); err != nil {
			return &models.SwidError{
				Type: models.ErrInvalidConfig,
				Err:  fmt.Errorf("invalid value %q for %s in config file: %w", value, name, err),
			}
		}
	}

	return nil
}

// unescapeSeparator expands the escapes a separator can be given with on
// the command line
func unescapeSeparator(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\0`, "\x00").Replace(s)
}
