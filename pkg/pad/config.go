package pad

import (
	"flag"

	"github.com/maplebus/maple.go/pkg/maple/peripheral"
)

// Config defines the configurations for the pad reader.
type Config struct {
	DeviceIndex int
	Verbose     bool
}

var defaultConfig = Config{
	DeviceIndex: -1,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.DeviceIndex, "device", defaultConfig.DeviceIndex, "Joystick device index, -1 for auto detection.")
	flag.BoolVar(&defaultConfig.Verbose, "verbose", defaultConfig.Verbose, "Print joystick events.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewReader creates a reader using the config.
func (c *Config) NewReader(pad *peripheral.Controller) *Reader {
	r := NewReader(pad)
	r.DeviceIndex = c.DeviceIndex
	r.Verbose = c.Verbose
	return r
}
