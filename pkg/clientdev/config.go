package clientdev

import (
	"flag"
	"fmt"
	"log"
	"os"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
	"github.com/maplebus/maple.go/pkg/maple/bus/gpio"
	"github.com/maplebus/maple.go/pkg/maple/peripheral"
	"github.com/maplebus/maple.go/pkg/maple/screen"
	"github.com/maplebus/maple.go/pkg/maple/sim"
	"github.com/maplebus/maple.go/pkg/maple/storage"
)

// MemorySize is the stock memory unit capacity in bytes.
const MemorySize = 128 * 1024

// Stock identity blocks of the emulated devices.
var (
	padInfo = maple.DeviceInfo{
		AreaCode:       0xff,
		Product:        "Dreamcast Controller",
		License:        "Produced By or Under License From SEGA ENTERPRISES,LTD.",
		StandbyCurrent: 430,
		MaxCurrent:     500,
	}
	padVersion = "Version 1.010,1998/09/28,315-6211-AB   ,Analog Module : The 4th Edition.5/8  +DF"

	memoryInfo = maple.DeviceInfo{
		AreaCode:       0xff,
		Product:        "Memory",
		License:        "Produced By or Under License From SEGA ENTERPRISES,LTD.",
		StandbyCurrent: 124,
		MaxCurrent:     130,
	}
	memoryVersion = "Version 1.005,1999/04/15,315-6208-03,SEGA Visual Memory System BIOS Produced by IOS Produced"
)

// Config defines the configurations for an emulated device.
type Config struct {
	Phy         string
	LineA       string
	LineB       string
	DirPin      string
	StoragePath string
}

var defaultConfig = Config{
	Phy:         "sim",
	LineA:       "GPIO14",
	LineB:       "GPIO15",
	StoragePath: "maple-memory.db",
}

func init() {
	if val := os.Getenv("MAPLE_CLIENT_PHY"); val != "" {
		defaultConfig.Phy = val
	}
	if val := os.Getenv("MAPLE_CLIENT_STORAGE"); val != "" {
		defaultConfig.StoragePath = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Phy, "phy", defaultConfig.Phy, "Bus backend: sim or gpio.")
	flag.StringVar(&defaultConfig.LineA, "line-a", defaultConfig.LineA, "Bus line A pin (gpio phy).")
	flag.StringVar(&defaultConfig.LineB, "line-b", defaultConfig.LineB, "Bus line B pin (gpio phy).")
	flag.StringVar(&defaultConfig.DirPin, "dir-pin", defaultConfig.DirPin, "Line driver direction pin, empty for none.")
	flag.StringVar(&defaultConfig.StoragePath, "storage", defaultConfig.StoragePath, "Memory unit backing file.")
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

// Env is the assembled client device: the emulator, its input and
// display surfaces, and the backing store.
type Env struct {
	Config   *Config
	Emulator *Emulator
	Pad      *peripheral.Controller
	Screen   *screen.Data
	Flash    *storage.Flash
}

// NewEnv assembles the stock device: a controller with a memory unit
// carrying storage and a screen in its first expansion slot.
func (c *Config) NewEnv() (*Env, error) {
	clock := bus.NewSystemClock()
	var backend bus.Backend
	switch c.Phy {
	case "sim":
		backend = sim.New(clock)
	case "gpio":
		be, err := gpio.New(gpio.Config{
			LineA: c.LineA,
			LineB: c.LineB,
			Dir:   c.DirPin,
			Clock: clock,
		})
		if err != nil {
			return nil, err
		}
		backend = be
	default:
		return nil, fmt.Errorf("unknown phy %q", c.Phy)
	}

	flash, err := storage.Open(c.StoragePath, MemorySize, clock)
	if err != nil {
		return nil, err
	}

	pad := peripheral.NewController()
	main := peripheral.New(maple.AddrMain, padInfo, padVersion)
	main.AddFunction(pad)

	scr := screen.New(0)
	sub := peripheral.New(0x01, memoryInfo, memoryVersion)
	sub.AddFunction(peripheral.NewStorage(flash))
	sub.AddFunction(peripheral.NewScreen(scr))
	main.AddSub(sub)

	return &Env{
		Config:   c,
		Emulator: NewEmulator(bus.NewBus(backend, bus.Config{Clock: clock}), clock, main),
		Pad:      pad,
		Screen:   scr,
		Flash:    flash,
	}, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// AddToLoop adds the emulator and the storage pump to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	e.Emulator.AddToLoop(loop)
	loop.AddController(fx.PrLvPostProc, &flashPump{flash: e.Flash})
}

// Close flushes and closes the backing store.
func (e *Env) Close() error {
	return e.Flash.Close()
}
