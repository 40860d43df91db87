package bus

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/maplebus/maple.go/pkg/cli/sh"
	"github.com/maplebus/maple.go/pkg/maple"
)

// PacketResult is the parsed form of a response echo line.
type PacketResult struct {
	Command   byte     `json:"command"`
	Recipient byte     `json:"recipient"`
	Sender    byte     `json:"sender"`
	Payload   []string `json:"payload,omitempty"`
}

// NodeSummary is one port's device summary line.
type NodeSummary struct {
	Port    int    `json:"port"`
	Summary string `json:"summary"`
}

var (
	// SendCmd transmits a raw packet and prints the response echo.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"x"},
		Help:    "CMD ADDR [WORD...] (hex)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("CMD and ADDR required"))
				return
			}
			cmd, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid CMD: %v", err))
				return
			}
			addr, err := parseByte(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("Invalid ADDR: %v", err))
				return
			}
			words := make([]uint32, 0, len(c.Args)-2)
			for _, arg := range c.Args[2:] {
				val, err := strconv.ParseUint(arg, 16, 32)
				if err != nil {
					c.Err(fmt.Errorf("Invalid WORD %q: %v", arg, err))
					return
				}
				words = append(words, uint32(val))
			}
			reply, err := sh.DoCommand(c, requestLine(maple.NewPacket(cmd, addr, 0, words)))
			if err != nil {
				return
			}
			res, _, ok := parseReply(reply)
			if !ok {
				c.Err(fmt.Errorf("unexpected reply %q", reply))
				return
			}
			sh.Output(c, reply, res)
		}),
	}

	// InfoCmd queries device info from an address.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "ADDR(hex)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ADDR required"))
				return
			}
			addr, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid ADDR: %v", err))
				return
			}
			pkt := maple.NewPacket(maple.CmdDeviceInfoRequest, addr, 0, nil)
			reply, err := sh.DoCommand(c, requestLine(pkt))
			if err != nil {
				return
			}
			res, words, ok := parseReply(reply)
			if !ok || res.Command != maple.CmdRespDeviceInfo {
				c.Err(fmt.Errorf("unexpected reply %q", reply))
				return
			}
			info, ok := maple.ParseDeviceInfo(words)
			if !ok {
				c.Err(fmt.Errorf("device info too short"))
				return
			}
			plain := fmt.Sprintf("functions=%08X product=%q standby=%.1fmA max=%.1fmA",
				info.Functions, info.Product,
				float64(info.StandbyCurrent)/10, float64(info.MaxCurrent)/10)
			sh.Output(c, plain, &info)
		}),
	}

	// NodesCmd prints the device summary of each port.
	NodesCmd = ishell.Cmd{
		Name:    "nodes",
		Aliases: []string{"n"},
		Help:    "[PORT]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			first, last := 0, maple.MaxPorts-1
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("Invalid PORT: %v", err))
					return
				}
				first, last = n, n
			}
			var nodes []NodeSummary
			for p := first; p <= last; p++ {
				reply, err := sh.DoCommand(c, fmt.Sprintf("X?%d", p))
				if err != nil {
					return
				}
				nodes = append(nodes, NodeSummary{Port: p, Summary: reply})
			}
			var w bytes.Buffer
			for _, node := range nodes {
				fmt.Fprintf(&w, "%d: %s\n", node.Port, node.Summary)
			}
			sh.Output(c, strings.TrimRight(w.String(), "\n"), nodes)
		}),
	}

	// PortCmd assigns a default screen to a player.
	PortCmd = ishell.Cmd{
		Name: "port",
		Help: "PLAYER SCREEN",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("PLAYER and SCREEN required"))
				return
			}
			reply, err := sh.DoCommand(c, fmt.Sprintf("XP %s %s", c.Args[0], c.Args[1]))
			if err != nil {
				return
			}
			if reply != "1" {
				c.Err(fmt.Errorf("select failed"))
				return
			}
			sh.Output(c, "OK", okResult{OK: true})
		}),
	}

	// ScreensResetCmd resets screens to their defaults.
	ScreensResetCmd = ishell.Cmd{
		Name:    "screens.reset",
		Aliases: []string{"sr"},
		Help:    "[INDEX]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) > 0 {
				reply, err := sh.DoCommand(c, "X-"+c.Args[0])
				if err != nil {
					return
				}
				if reply != "1" {
					c.Err(fmt.Errorf("reset failed"))
					return
				}
				sh.Output(c, "OK", okResult{OK: true})
				return
			}
			reply, err := sh.DoCommand(c, "X-")
			if err != nil {
				return
			}
			sh.Output(c, "reset "+reply, resetResult{Reset: reply})
		}),
	}

	// SerialCmd prints the bridge serial number.
	SerialCmd = ishell.Cmd{
		Name: "serial",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			reply, err := sh.DoCommand(c, "XS")
			if err != nil {
				return
			}
			sh.Output(c, reply, serialResult{Serial: reply})
		}),
	}

	// VersionCmd prints the host link interface version.
	VersionCmd = ishell.Cmd{
		Name:    "version",
		Aliases: []string{"v"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			reply, err := sh.DoCommand(c, "XV")
			if err != nil {
				return
			}
			sh.Output(c, reply, versionResult{Version: reply})
		}),
	}

	// EchoCmd toggles session echo.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			var cmd string
			if len(c.Args) > 0 {
				switch c.Args[0] {
				case "on":
					cmd = "XH1"
				case "off":
					cmd = "XH0"
				}
			}
			if cmd == "" {
				c.Err(fmt.Errorf("on|off required"))
				return
			}
			reply, err := sh.DoCommand(c, cmd)
			if err != nil {
				return
			}
			sh.Output(c, reply, echoResult{Echo: c.Args[0] == "on"})
		}),
	}

	// RemoteHelpCmd prints the host link help text.
	RemoteHelpCmd = ishell.Cmd{
		Name: "rhelp",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			lines, err := sh.ShellFrom(c).Conn.Collect("h", 100*time.Millisecond)
			if err != nil {
				c.Err(err)
				return
			}
			for _, line := range lines {
				c.Println(line)
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&SendCmd,
		&InfoCmd,
		&NodesCmd,
		&PortCmd,
		&ScreensResetCmd,
		&SerialCmd,
		&VersionCmd,
		&EchoCmd,
		&RemoteHelpCmd,
	)
}

func parseByte(arg string) (byte, error) {
	val, err := strconv.ParseUint(arg, 16, 8)
	return byte(val), err
}

func requestLine(pkt *maple.Packet) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "X%08X", pkt.Word())
	for _, word := range pkt.Payload {
		fmt.Fprintf(&w, " %08X", word)
	}
	return w.String()
}

func parseReply(line string) (*PacketResult, []uint32, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, nil, false
	}
	var hdr [4]byte
	for i := 0; i < 4; i++ {
		val, err := strconv.ParseUint(fields[i], 16, 8)
		if err != nil {
			return nil, nil, false
		}
		hdr[i] = byte(val)
	}
	words := make([]uint32, 0, len(fields)-4)
	for _, f := range fields[4:] {
		val, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return nil, nil, false
		}
		words = append(words, uint32(val))
	}
	res := &PacketResult{
		Command:   hdr[0],
		Recipient: hdr[1],
		Sender:    hdr[2],
		Payload:   fields[4:],
	}
	return res, words, true
}

type okResult struct {
	OK bool `json:"ok"`
}

type resetResult struct {
	Reset string `json:"reset"`
}

type serialResult struct {
	Serial string `json:"serial"`
}

type versionResult struct {
	Version string `json:"version"`
}

type echoResult struct {
	Echo bool `json:"echo"`
}
