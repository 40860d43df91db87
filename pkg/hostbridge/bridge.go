package hostbridge

import (
	"fmt"
	"log"

	"github.com/golang/glog"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/host"
	"github.com/maplebus/maple.go/pkg/host/link"
	"github.com/maplebus/maple.go/pkg/ident"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
	"github.com/maplebus/maple.go/pkg/maple/bus/gpio"
	"github.com/maplebus/maple.go/pkg/maple/node"
	"github.com/maplebus/maple.go/pkg/maple/port"
	"github.com/maplebus/maple.go/pkg/maple/sched"
	"github.com/maplebus/maple.go/pkg/maple/screen"
	"github.com/maplebus/maple.go/pkg/maple/sim"
	"github.com/maplebus/maple.go/pkg/telemetry"
	"github.com/maplebus/maple.go/pkg/telemetry/mqtt"
)

// Bridge is the assembled host. Every port carries a node watching the
// attached devices, a player slot the emulator link reaches and a
// screen frame pushed out to the port when it changes.
type Bridge struct {
	Config   *Config
	Listener host.Listener
	Ports    []*port.Port
	Nodes    []*node.MainNode
	Players  []*host.Player
	Server   *host.Server
	// Reporter is nil when no telemetry broker is configured.
	Reporter *mqtt.Reporter

	pusher *screenPusher
}

// NewBridge assembles the bridge: one port, node and player per
// configured port, the link server and the optional reporter.
func (c *Config) NewBridge() (*Bridge, error) {
	ports := []PortConfig{{
		Phy:   c.Phy,
		LineA: c.LineA,
		LineB: c.LineB,
		Dir:   c.DirPin,
	}}
	if c.PortsFile != "" {
		loaded, err := LoadPorts(c.PortsFile)
		if err != nil {
			return nil, err
		}
		ports = loaded
	}
	if len(ports) == 0 || len(ports) > maple.MaxPorts {
		return nil, fmt.Errorf("need 1 to %d ports, got %d", maple.MaxPorts, len(ports))
	}

	serial := c.Serial
	if serial == "" {
		serial = ident.Serial()
	}
	id := c.ID
	if id == "" {
		id = serial
	}

	clock := bus.NewSystemClock()
	b := &Bridge{Config: c}
	for i, pc := range ports {
		backend, err := newBackend(pc, clock)
		if err != nil {
			return nil, err
		}
		name := pc.Name
		if name == "" {
			name = fmt.Sprintf("%c", 'a'+i)
		}
		p := port.New(name, bus.NewBus(backend, bus.Config{Clock: clock}), clock)
		n := node.New(i, p, clock)
		b.Ports = append(b.Ports, p)
		b.Nodes = append(b.Nodes, n)
		b.Players = append(b.Players, &host.Player{
			HostAddr: maple.PortAddr(i),
			Endpoint: p.Endpoint(sched.PriorityExternal),
			Node:     n,
			Screen:   screen.New(i % screen.NumDefaultScreens),
		})
	}
	b.pusher = newScreenPusher(b.Players, b.Ports)
	for i := range b.Nodes {
		idx := i
		b.Nodes[i].OnEvent = func(ev node.Event) { b.handleNodeEvent(idx, ev) }
	}

	l, err := link.Listen(c.LinkURL)
	if err != nil {
		return nil, err
	}
	b.Listener = l
	b.Server = host.NewServer(l, func(sess *host.Session) {
		fp := host.NewFlycastParser(sess.Writer(), serial, b.Players)
		fp.Echo = sess.SetEcho
		sess.Parser().AddCommandParser(fp)
	})

	if c.MQTTURL != "" {
		rep, err := mqtt.NewReporter(c.MQTTURL, telemetry.BridgeMeta{
			ID:      id,
			Serial:  serial,
			Version: host.InterfaceVersion,
			Ports:   len(ports),
		})
		if err != nil {
			return nil, err
		}
		b.Reporter = rep
	}
	return b, nil
}

// MustNewBridge creates the bridge and fails on error.
func (c *Config) MustNewBridge() *Bridge {
	b, err := c.NewBridge()
	if err != nil {
		log.Fatalln(err)
	}
	return b
}

// AddToLoop adds every bridge controller at its level: ports first,
// then nodes and the screen pusher, the link server last.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	for _, p := range b.Ports {
		p.AddToLoop(loop)
	}
	for _, n := range b.Nodes {
		n.AddToLoop(loop)
	}
	loop.AddController(fx.PrLvNode, b.pusher)
	b.Server.AddToLoop(loop)
	if b.Reporter != nil {
		b.Reporter.AddToLoop(loop)
	}
}

// handleNodeEvent runs on the loop goroutine for every attach and
// detach.
func (b *Bridge) handleNodeEvent(idx int, ev node.Event) {
	if ev.Type == node.EventAttached && ev.Info.Functions&maple.FnScreen != 0 {
		b.pusher.Force(idx)
	}
	if b.Reporter == nil {
		return
	}
	if err := b.Reporter.SendEvent(&telemetry.NodeEvent{
		Port:      uint32(ev.PortIndex),
		Addr:      uint32(ev.Addr),
		Attached:  ev.Type == node.EventAttached,
		Functions: ev.Info.Functions,
		Product:   ev.Info.Product,
	}); err != nil {
		glog.Warningf("telemetry: %v", err)
		return
	}
	if err := b.Reporter.SendEvent(&telemetry.PortStatus{
		Port:    uint32(ev.PortIndex),
		Summary: b.Nodes[idx].Summary(),
	}); err != nil {
		glog.Warningf("telemetry: %v", err)
	}
}

func newBackend(pc PortConfig, clock bus.Clock) (bus.Backend, error) {
	switch pc.Phy {
	case "", "sim":
		return sim.New(clock), nil
	case "gpio":
		return gpio.New(gpio.Config{
			LineA: pc.LineA,
			LineB: pc.LineB,
			Dir:   pc.Dir,
			Clock: clock,
		})
	}
	return nil, fmt.Errorf("unknown phy %q", pc.Phy)
}
