package g2s

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// Config is a map of keyword to arbitrary data to specify configurations via keyword.
// Keywords are case-insensitive.
type Config map[string]interface{}

// NewConfig returns an empty Config.
func NewConfig() Config {
	return make(Config)
}

// GetAll returns all the settings.
func (c Config) GetAll() map[string]interface{} {
	return c
}

// SetAll copies the given settings into the Config, lowercasing keys.
func (c Config) SetAll(settings map[string]interface{}) {
	for k, v := range settings {
		c[strings.ToLower(k)] = v
	}
}

// Set sets a keyword to a value.
func (c Config) Set(key string, value interface{}) {
	c[strings.ToLower(key)] = value
}

// Get returns the raw value for a keyword.
func (c Config) Get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, found := c[strings.ToLower(key)]
	return v, found
}

// GetString returns a string setting.  An error is returned only if the key exists
// but isn't a string.
func (c Config) GetString(key string) (s string, found bool, err error) {
	var v interface{}
	if v, found = c.Get(key); !found {
		return
	}
	var ok bool
	if s, ok = v.(string); !ok {
		err = fmt.Errorf("setting %q must be a string (%v)", key, v)
	}
	return
}

// GetInt returns an int setting.  Numbers decoded from TOML or JSON as int64 or
// float64 as well as numeric strings are accepted.
func (c Config) GetInt(key string) (i int, found bool, err error) {
	var v interface{}
	if v, found = c.Get(key); !found {
		return
	}
	switch t := v.(type) {
	case int:
		i = t
	case int64:
		i = int(t)
	case uint64:
		i = int(t)
	case float64:
		i = int(t)
	case string:
		i, err = strconv.Atoi(t)
	default:
		err = fmt.Errorf("setting %q must be an integer (%v)", key, v)
	}
	return
}

// GetBool returns a bool setting.
func (c Config) GetBool(key string) (b bool, found bool, err error) {
	var v interface{}
	if v, found = c.Get(key); !found {
		return
	}
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		b, err = strconv.ParseBool(t)
	default:
		err = fmt.Errorf("setting %q must be a bool (%v)", key, v)
	}
	return
}

// StoreConfig is a store-specific configuration where each engine implementation
// defines the types of parameters it accepts.
type StoreConfig struct {
	Config

	// Engine is a simple name describing the engine, e.g., "badger"
	Engine string
}

// ConvertToAbsolute returns an absolute path for a path given relative to dir.
func ConvertToAbsolute(path, dir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(dir, path))
}

// DirExists returns true if a directory exists at the path.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
