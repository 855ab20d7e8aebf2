package server

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go2scope/g2s/g2s"
)

const (
	// DefaultWebAddress is the default address of the preview web server.
	DefaultWebAddress = "localhost:8000"

	// DefaultReadCacheMB is the size of the engine read cache if none is configured.
	DefaultReadCacheMB = 64
)

// Config is the parsed TOML configuration.
type Config struct {
	Server  serverConfig
	Logging g2s.LogConfig
	Store   map[string]interface{}
	Cache   cacheConfig

	location string
}

type serverConfig struct {
	HTTPAddress string   `toml:"httpAddress"`
	Dataset     string   `toml:"dataset"`
	CorsDomains []string `toml:"corsDomains"`
}

type cacheConfig struct {
	ReadMB int `toml:"readMB"`
}

// LoadConfig loads the configuration from a TOML file.  Relative paths in the file are
// taken relative to the directory holding it.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := new(Config)
	c.Cache.ReadMB = DefaultReadCacheMB
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.location = filename
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if _, found := c.Store["engine"]; !found {
		return nil, fmt.Errorf("[store] in %s needs an engine setting", filename)
	}
	g2s.Infof("Loaded configuration from %s\n", filename)
	return c, nil
}

// Some settings in the TOML can be given as relative paths.  This converts them in
// place to absolute paths, assuming the given paths were relative to the TOML file's
// own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = g2s.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}

	// [server].dataset
	if c.Server.Dataset != "" && !isURL(c.Server.Dataset) {
		c.Server.Dataset, err = g2s.ConvertToAbsolute(c.Server.Dataset, configDir)
		if err != nil {
			return fmt.Errorf("error converting dataset setting to absolute path")
		}
	}

	// [store].path
	if p, found := c.Store["path"]; found {
		path, ok := p.(string)
		if !ok {
			return fmt.Errorf("don't understand path setting %v for store", p)
		}
		absPath, err := g2s.ConvertToAbsolute(path, configDir)
		if err != nil {
			return fmt.Errorf("error converting store.path to absolute path: %q", path)
		}
		c.Store["path"] = absPath
	}
	return nil
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}

// Location returns the file the configuration was read from.
func (c *Config) Location() string {
	return c.location
}

// HTTPAddress returns the address of the web server.
func (c *Config) HTTPAddress() string {
	if c.Server.HTTPAddress == "" {
		return DefaultWebAddress
	}
	return c.Server.HTTPAddress
}

// StoreConfig returns the engine name and settings of the [store] section.
func (c *Config) StoreConfig() (g2s.StoreConfig, error) {
	sc := g2s.StoreConfig{Config: g2s.NewConfig()}
	sc.SetAll(c.Store)
	engine, found, err := sc.GetString("engine")
	if err != nil {
		return sc, err
	}
	if !found || engine == "" {
		return sc, fmt.Errorf("no storage engine configured")
	}
	sc.Engine = engine
	return sc, nil
}

// ReadCacheBytes returns the number of bytes reserved for images read from the engine.
func (c *Config) ReadCacheBytes() int {
	return c.Cache.ReadMB * g2s.Mega
}
