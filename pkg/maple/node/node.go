package node

import (
	"fmt"
	"strings"

	"github.com/golang/glog"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
	"github.com/maplebus/maple.go/pkg/maple/port"
	"github.com/maplebus/maple.go/pkg/maple/sched"
)

// Defaults for a freshly created node.
const (
	DefaultInfoPollPeriodUs uint32 = 250000
	DefaultFailureThreshold        = 4
)

// EventType tells attach from detach.
type EventType int

// Event types.
const (
	EventAttached EventType = iota
	EventDetached
)

// String implements Stringer.
func (t EventType) String() string {
	if t == EventAttached {
		return "attached"
	}
	return "detached"
}

// Event reports a device appearing on or vanishing from a port.
type Event struct {
	Type      EventType
	PortIndex int
	Addr      byte
	// Info is populated for attach events only.
	Info maple.DeviceInfo
}

// DeviceRecord is one known peripheral on the port.
type DeviceRecord struct {
	Addr       byte
	Info       maple.DeviceInfo
	LastSeenUs uint64
}

// MainNode watches one port. It keeps a device info request cycling at
// InfoPollPeriodUs; the main peripheral's replies both refresh its
// record and reveal sub peripherals through the sender address
// presence bits. A streak of FailureThreshold failed polls detaches
// everything.
//
// All state belongs to the loop goroutine.
type MainNode struct {
	InfoPollPeriodUs uint32
	FailureThreshold int
	// OnEvent, when set, receives attach/detach events on the loop
	// goroutine.
	OnEvent func(Event)

	port       *port.Port
	index      int
	clock      bus.Clock
	ep         *sched.EndpointScheduler
	main       *DeviceRecord
	subs       [maple.MaxSubPeripherals]*DeviceRecord
	subPending [maple.MaxSubPeripherals]bool
	resending  map[byte]bool
	failStreak int
	lastReason bus.FailureReason
	started    bool
}

// New creates the node for port index idx over p. The clock must be
// the one the port runs on.
func New(idx int, p *port.Port, clock bus.Clock) *MainNode {
	return &MainNode{
		InfoPollPeriodUs: DefaultInfoPollPeriodUs,
		FailureThreshold: DefaultFailureThreshold,
		port:             p,
		index:            idx,
		clock:            clock,
		ep:               p.Endpoint(sched.PriorityMain),
		resending:        make(map[byte]bool),
	}
}

// Index returns the port index this node watches.
func (n *MainNode) Index() int {
	return n.index
}

// HostAddr returns the address this node sends from.
func (n *MainNode) HostAddr() byte {
	return maple.PortAddr(n.index)
}

func (n *MainNode) mainAddr() byte {
	return maple.PortAddr(n.index) | maple.AddrMain
}

// Main returns the main peripheral record, nil while disconnected.
// Loop goroutine only.
func (n *MainNode) Main() *DeviceRecord {
	return n.main
}

// Subs returns the sub peripheral records by slot; absent slots are
// nil. Loop goroutine only.
func (n *MainNode) Subs() []*DeviceRecord {
	return n.subs[:]
}

// AddToLoop implements LoopAdder.
func (n *MainNode) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvNode, n)
}

// Control implements Controller.
func (n *MainNode) Control(cc fx.ControlContext) error {
	if !n.started {
		n.started = true
		n.ep.Add(&sched.Transmission{
			Target:             n,
			Packet:             maple.NewPacket(maple.CmdDeviceInfoRequest, n.mainAddr(), n.HostAddr(), nil),
			ExpectResponse:     true,
			AutoRepeatPeriodUs: n.InfoPollPeriodUs,
		})
	}
	return nil
}

// Summary renders the attached devices as one line for the host
// protocol: "NULL" when nothing is connected, otherwise
// "addr:functions product" segments joined by " | ".
func (n *MainNode) Summary() string {
	if n.main == nil {
		return "NULL"
	}
	var b strings.Builder
	writeRecord(&b, n.main)
	for _, sub := range n.subs {
		if sub != nil {
			b.WriteString(" | ")
			writeRecord(&b, sub)
		}
	}
	return b.String()
}

func writeRecord(b *strings.Builder, rec *DeviceRecord) {
	fmt.Fprintf(b, "%02X:%08X %s", rec.Addr, rec.Info.Functions, rec.Info.Product)
}

// TxStarted implements Transmitter.
func (n *MainNode) TxStarted(tx *sched.Transmission) {}

// TxFailureReason implements FailureObserver.
func (n *MainNode) TxFailureReason(reason bus.FailureReason, tx *sched.Transmission) {
	n.lastReason = reason
}

// TxFailed implements Transmitter.
func (n *MainNode) TxFailed(writeFailed, readFailed bool, tx *sched.Transmission) {
	recipient := tx.Packet.RecipientAddr
	if tx.Packet.Command == maple.CmdRespRequestResend {
		delete(n.resending, recipient)
	} else if readFailed && n.lastReason == bus.FailureCRCInvalid && !n.resending[recipient] {
		// Garbled response: ask the peripheral to repeat itself once
		// before treating this as a failure.
		n.resending[recipient] = true
		n.ep.Add(&sched.Transmission{
			Target:         n,
			Packet:         maple.NewPacket(maple.CmdRespRequestResend, recipient, n.HostAddr(), nil),
			ExpectResponse: true,
		})
		return
	}

	if recipient == n.mainAddr() {
		n.failStreak++
		if n.failStreak >= n.FailureThreshold {
			n.failStreak = 0
			n.detachAll()
		}
		return
	}
	if idx, ok := subSlot(recipient); ok {
		n.subPending[idx] = false
		n.detachSub(idx)
	}
}

// TxComplete implements Transmitter.
func (n *MainNode) TxComplete(response *maple.Packet, tx *sched.Transmission) {
	if response == nil {
		return
	}
	if tx.Packet.Command == maple.CmdRespRequestResend {
		delete(n.resending, tx.Packet.RecipientAddr)
	}
	if response.Command != maple.CmdRespDeviceInfo {
		glog.V(2).Infof("node %d: ignoring response %02x from %02x",
			n.index, response.Command, response.SenderAddr)
		return
	}
	info, ok := maple.ParseDeviceInfo(response.Payload)
	if !ok {
		glog.V(2).Infof("node %d: short device info from %02x", n.index, response.SenderAddr)
		return
	}
	sender := response.SenderAddr
	now := n.clock.NowUs()
	if maple.IsMain(sender) {
		n.failStreak = 0
		n.updateMain(sender, info, now)
		return
	}
	if idx, ok := subSlot(sender); ok {
		n.subPending[idx] = false
		n.updateSub(idx, sender, info, now)
	}
}

func (n *MainNode) updateMain(sender byte, info maple.DeviceInfo, nowUs uint64) {
	addr := n.mainAddr()
	if n.main == nil {
		n.main = &DeviceRecord{Addr: addr}
		glog.V(1).Infof("node %d: %s attached at %02x", n.index, info.Product, addr)
		n.emit(Event{Type: EventAttached, PortIndex: n.index, Addr: addr, Info: info})
	}
	n.main.Info = info
	n.main.LastSeenUs = nowUs

	present := [maple.MaxSubPeripherals]bool{}
	for _, slot := range maple.SubSlots(sender) {
		present[slot] = true
	}
	for i := 0; i < maple.MaxSubPeripherals; i++ {
		switch {
		case present[i] && n.subs[i] == nil && !n.subPending[i]:
			n.subPending[i] = true
			n.ep.Add(&sched.Transmission{
				Target:         n,
				Packet:         maple.NewPacket(maple.CmdDeviceInfoRequest, maple.SubAddr(n.index, i), n.HostAddr(), nil),
				ExpectResponse: true,
			})
		case !present[i] && n.subs[i] != nil:
			n.detachSub(i)
		}
	}
}

func (n *MainNode) updateSub(idx int, sender byte, info maple.DeviceInfo, nowUs uint64) {
	if n.subs[idx] == nil {
		n.subs[idx] = &DeviceRecord{Addr: sender}
		glog.V(1).Infof("node %d: %s attached at %02x", n.index, info.Product, sender)
		n.emit(Event{Type: EventAttached, PortIndex: n.index, Addr: sender, Info: info})
	}
	n.subs[idx].Info = info
	n.subs[idx].LastSeenUs = nowUs
}

func (n *MainNode) detachSub(idx int) {
	rec := n.subs[idx]
	if rec == nil {
		return
	}
	n.subs[idx] = nil
	n.port.Scheduler().CancelByRecipient(rec.Addr)
	glog.V(1).Infof("node %d: device at %02x detached", n.index, rec.Addr)
	n.emit(Event{Type: EventDetached, PortIndex: n.index, Addr: rec.Addr})
}

func (n *MainNode) detachAll() {
	for i := range n.subs {
		n.detachSub(i)
	}
	if n.main == nil {
		return
	}
	addr := n.main.Addr
	n.main = nil
	glog.V(1).Infof("node %d: device at %02x detached", n.index, addr)
	n.emit(Event{Type: EventDetached, PortIndex: n.index, Addr: addr})
}

func (n *MainNode) emit(ev Event) {
	if n.OnEvent != nil {
		n.OnEvent(ev)
	}
}

// subSlot maps a sub peripheral address to its slot index.
func subSlot(addr byte) (int, bool) {
	bits := addr & maple.AddrSubMask
	for i := 0; i < maple.MaxSubPeripherals; i++ {
		if bits == 1<<uint(i) {
			return i, true
		}
	}
	return 0, false
}
