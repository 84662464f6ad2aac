// Package config loads settings from an optional JSON or YAML file, overridden by environment variables.
package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v6"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a config file.
type Format string

const (
	// FormatJSON JSON config file, the default.
	FormatJSON Format = "json"
	// FormatYAML YAML config file.
	FormatYAML Format = "yaml"
)

var (
	mu         sync.RWMutex
	config     = make(map[string]interface{})
	configFile string
)

// SetConfigFile sets the config file path to be read
func SetConfigFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	configFile = path
}

// Reset forgets the config file and every value read so far.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	config = make(map[string]interface{})
	configFile = ""
}

// ReadInConfig reads the config file previously set.
// The format is guessed from the file extension.
// If no config file was set, does nothing
func ReadInConfig() error {
	mu.RLock()
	path := configFile
	mu.RUnlock()
	if path == "" {
		//No config file set, just return
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open file %s", path)
	}
	defer f.Close()

	return ReadConfig(f, FormatOf(path))
}

// FormatOf returns the format of a config file, based on its extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ReadConfig read config from the given reader
func ReadConfig(in io.Reader, format Format) error {
	values := make(map[string]interface{})
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(in).Decode(&values)
		if err == io.EOF {
			err = nil
		}
	case FormatJSON, "":
		err = json.NewDecoder(in).Decode(&values)
	default:
		return errors.Errorf("unknown config format %s", format)
	}
	if err != nil {
		return errors.Wrap(err, "cannot decode config")
	}

	mu.Lock()
	defer mu.Unlock()
	config = values
	return nil
}

// Get returns the value for the given key. An empty key returns the whole config.
func Get(key string) interface{} {
	mu.RLock()
	defer mu.RUnlock()
	var obj interface{} = config
	if key == "" {
		return obj
	}
	var val interface{} = nil

	parts := strings.Split(key, ".")
	for _, p := range parts {
		if v, ok := obj.(map[string]interface{}); ok {
			obj = v[p]
			val = obj
		} else {
			return nil
		}
	}
	return val
}

// Unmarshal parses the config data for the given key and stores the result in the value pointed to by v.
// Values are matched on mapstructure tags; strings are accepted for durations.
// Environment variables declared with env tags take precedence.
func Unmarshal(key string, v interface{}) error {
	in := Get(key)
	//Decode from config data
	if in != nil {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			Result:           v,
		})
		if err != nil {
			return errors.Wrap(err, "cannot create config decoder")
		}
		if err := dec.Decode(in); err != nil {
			return errors.Wrapf(err, "cannot decode config for key %s", key)
		}
	}
	// Parse env variables
	if err := env.Parse(v); err != nil {
		return errors.Wrap(err, "cannot parse env")
	}
	return nil
}
