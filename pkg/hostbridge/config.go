// Package hostbridge assembles a complete Maple host: bus ports with
// their node watchers, the emulator link server, screen forwarding and
// optional telemetry.
package hostbridge

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/flynn/json5"
)

// PortConfig defines one bus port. An empty Phy selects the simulated
// backend.
type PortConfig struct {
	Name  string `json:"name"`
	Phy   string `json:"phy"`
	LineA string `json:"line-a"`
	LineB string `json:"line-b"`
	Dir   string `json:"dir"`
}

// Config defines the configurations for a host bridge. Without a ports
// file the bridge runs one port built from the Phy through DirPin
// fields.
type Config struct {
	LinkURL   string
	MQTTURL   string
	PortsFile string
	ID        string
	// Serial overrides the machine derived serial number when set.
	Serial string

	Phy    string
	LineA  string
	LineB  string
	DirPin string
}

var defaultConfig = Config{
	LinkURL: "tcp://:3737",
	Phy:     "sim",
	LineA:   "GPIO14",
	LineB:   "GPIO15",
}

func init() {
	if val := os.Getenv("MAPLE_HOST_LINK"); val != "" {
		defaultConfig.LinkURL = val
	}
	if val := os.Getenv("MAPLE_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("MAPLE_PORTS"); val != "" {
		defaultConfig.PortsFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.LinkURL, "link", defaultConfig.LinkURL, "Emulator link listen spec.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "Telemetry broker URL, empty to disable.")
	flag.StringVar(&defaultConfig.PortsFile, "ports", defaultConfig.PortsFile, "Port definitions file (JSON5).")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Bridge ID, default derives from the serial number.")
	flag.StringVar(&defaultConfig.Phy, "phy", defaultConfig.Phy, "Bus backend: sim or gpio.")
	flag.StringVar(&defaultConfig.LineA, "line-a", defaultConfig.LineA, "Bus line A pin (gpio phy).")
	flag.StringVar(&defaultConfig.LineB, "line-b", defaultConfig.LineB, "Bus line B pin (gpio phy).")
	flag.StringVar(&defaultConfig.DirPin, "dir-pin", defaultConfig.DirPin, "Line driver direction pin, empty for none.")
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

type portsFile struct {
	Ports []PortConfig `json:"ports"`
}

// LoadPorts reads port definitions from a JSON5 file.
func LoadPorts(path string) ([]PortConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f portsFile
	if err := json5.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ports file %s: %v", path, err)
	}
	return f.Ports, nil
}
