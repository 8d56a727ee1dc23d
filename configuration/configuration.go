package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	flag "github.com/spf13/pflag"
)

var (
	// ErrConfigDoesNotExist is returned if the config file is unknown.
	ErrConfigDoesNotExist = errors.New("config does not exist")
	// ErrUnknownConfigFormat is returned if the format of the config file is unknown.
	ErrUnknownConfigFormat = errors.New("unknown config file format")
)

// Configuration holds config parameters from several sources (file, env vars, flags).
type Configuration struct {
	config *koanf.Koanf
}

// New returns a new configuration.
func New() *Configuration {
	return &Configuration{
		config: koanf.New("."),
	}
}

// LoadFile loads parameters from a JSON, YAML or TOML file and merges them into the loaded config.
// Existing keys will be overwritten.
func (c *Configuration) LoadFile(filePath string) error {
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrConfigDoesNotExist, filePath)
		}

		return errors.Wrapf(err, "unable to access config file %s", filePath)
	}

	parser, err := parserForFile(filePath)
	if err != nil {
		return err
	}

	if err := c.config.Load(file.Provider(filePath), parser); err != nil {
		return errors.Wrapf(err, "unable to load config file %s", filePath)
	}

	return nil
}

// LoadFlagSet loads parameters from a FlagSet (spf13/pflag lib) including
// default values and merges them into the loaded config.
// Existing keys will only be overwritten, if they were set via command line.
// If not given via command line, default values will only be used if they did not exist beforehand.
func (c *Configuration) LoadFlagSet(flagSet *flag.FlagSet) error {
	return c.config.Load(lowerPosflagProvider(flagSet, ".", c.config), nil)
}

// LoadEnvironmentVars loads parameters from env vars and merges them into the loaded config.
// The prefix is used to filter the env vars.
// Only existing keys will be overwritten, all other keys are ignored.
func (c *Configuration) LoadEnvironmentVars(prefix string) error {
	if prefix != "" {
		prefix += "_"
	}

	return c.config.Load(env.Provider(prefix, ".", func(s string) string {
		mapKey := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "_", ".")
		if !c.config.Exists(mapKey) {
			// only accept values from env vars that already exist in the config
			return ""
		}

		return mapKey
	}), nil)
}

// Koanf returns the underlying Koanf instance.
func (c *Configuration) Koanf() *koanf.Koanf {
	return c.config
}

// Exists returns true if the given key was set by any source.
func (c *Configuration) Exists(key string) bool {
	return c.config.Exists(strings.ToLower(key))
}

// Get returns the raw value of the given key (nil if it does not exist).
func (c *Configuration) Get(key string) interface{} {
	return c.config.Get(strings.ToLower(key))
}

// String returns the value of the given key as a string.
func (c *Configuration) String(key string) string {
	return cast.ToString(c.Get(key))
}

// Strings returns the value of the given key as a string slice.
func (c *Configuration) Strings(key string) []string {
	return cast.ToStringSlice(c.Get(key))
}

// Bool returns the value of the given key as a bool.
func (c *Configuration) Bool(key string) bool {
	return cast.ToBool(c.Get(key))
}

// Duration returns the value of the given key as a time.Duration. Strings are parsed as Go durations.
func (c *Configuration) Duration(key string) (time.Duration, error) {
	duration, err := cast.ToDurationE(c.Get(key))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration for %s", key)
	}

	return duration, nil
}

// Unmarshal decodes the subtree of the given key into the given struct (using the "koanf" field tags).
func (c *Configuration) Unmarshal(key string, target interface{}) error {
	if err := c.config.Unmarshal(strings.ToLower(key), target); err != nil {
		return errors.Wrapf(err, "unable to unmarshal %s", key)
	}

	return nil
}

// Print prints the loaded parameters as indented JSON to the given printer function.
func (c *Configuration) Print(printf func(template string, args ...interface{})) {
	if cfg, err := json.MarshalIndent(c.config.Raw(), "", "  "); err == nil {
		printf("Parameters loaded: \n %s\n", string(cfg))
	}
}

func parserForFile(filePath string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return JSONLowerParser(), nil
	case ".yaml", ".yml":
		return YAMLLowerParser(), nil
	case ".toml":
		return TOMLLowerParser(), nil
	default:
		return nil, errors.Wrap(ErrUnknownConfigFormat, filePath)
	}
}
