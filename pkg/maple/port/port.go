package port

import (
	"github.com/golang/glog"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
	"github.com/maplebus/maple.go/pkg/maple/sched"
)

// DefaultResponseTimeoutUs is how long a peer gets to start its
// response after a write drains.
const DefaultResponseTimeoutUs uint64 = 1000

// Port drives one Maple port. It pops due transmissions from its
// scheduler, hands them to the bus engine and dispatches the outcome
// to each transmission's Transmitter.
type Port struct {
	// Chunking splits large writes for peers with small receive
	// buffers. The zero value writes every packet in one piece.
	Chunking bus.Chunking
	// ResponseTimeoutUs bounds the wait for a response to start.
	ResponseTimeoutUs uint64

	name     string
	bus      *bus.Bus
	clock    bus.Clock
	sched    *sched.Scheduler
	inflight *sched.Transmission
}

// FailureObserver is implemented by Transmitters that also want the
// engine's failure reason. It is invoked right before TxFailed.
type FailureObserver interface {
	TxFailureReason(reason bus.FailureReason, tx *sched.Transmission)
}

// Submit asks a port to schedule a transmission. Post it as a loop
// message from goroutines outside the loop; the port consumes it at
// the start of its next iteration.
type Submit struct {
	Port *Port
	Tx   *sched.Transmission
	// Scheduled, when set, receives the assigned transmission ID on
	// the loop goroutine.
	Scheduled func(id uint32)
}

// NewMessage implements Message.
func (m *Submit) NewMessage() fx.Message {
	return &Submit{}
}

// New creates a port named name over an assembled bus engine. The
// clock must be the one the engine runs on.
func New(name string, b *bus.Bus, clock bus.Clock) *Port {
	return &Port{
		ResponseTimeoutUs: DefaultResponseTimeoutUs,
		name:              name,
		bus:               b,
		clock:             clock,
		sched:             sched.NewScheduler(sched.MaxPriority),
	}
}

// Name returns the port name.
func (p *Port) Name() string {
	return p.name
}

// Bus returns the engine driving this port.
func (p *Port) Bus() *bus.Bus {
	return p.bus
}

// Scheduler returns the shared scheduler. Loop goroutine only.
func (p *Port) Scheduler() *sched.Scheduler {
	return p.sched
}

// Endpoint creates a scheduler view pinned at priority.
// Loop goroutine only.
func (p *Port) Endpoint(priority uint8) *sched.EndpointScheduler {
	return sched.NewEndpointScheduler(p.sched, priority)
}

// AddToLoop implements LoopAdder.
func (p *Port) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvBus, p)
}

// Control implements Controller.
func (p *Port) Control(cc fx.ControlContext) error {
	p.consumeSubmits(cc)
	now := p.clock.NowUs()
	status := p.bus.ProcessEvents(now)
	switch status.Phase {
	case bus.PhaseWriteComplete, bus.PhaseReadComplete,
		bus.PhaseWriteFailed, bus.PhaseReadFailed:
		p.dispatch(status)
	}
	if p.inflight == nil && !p.bus.Busy() {
		p.startNext(now)
	}
	return nil
}

func (p *Port) consumeSubmits(cc fx.ControlContext) {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		m, ok := mc.CurrentMessage().(*Submit)
		if !ok || m.Port != p {
			return
		}
		mc.MessageTaken()
		id := p.sched.Add(m.Tx)
		if m.Scheduled != nil {
			m.Scheduled(id)
		}
	}))
}

func (p *Port) startNext(nowUs uint64) {
	tx := p.sched.PopNext(nowUs)
	if tx == nil {
		return
	}
	if !p.bus.Write(tx.Packet, tx.ExpectResponse, p.ResponseTimeoutUs, p.Chunking) {
		// Single master: a refused write means the lines are wedged or
		// the packet is malformed, not contention.
		glog.Errorf("port %s: write refused for tx %d", p.name, tx.ID)
		notifyFailed(tx, true, false)
		return
	}
	p.inflight = tx
	if tx.Target != nil {
		tx.Target.TxStarted(tx)
	}
}

func (p *Port) dispatch(status bus.Status) {
	tx := p.inflight
	p.inflight = nil
	if tx == nil {
		// Outcome of a transfer started outside the poller.
		return
	}
	switch status.Phase {
	case bus.PhaseWriteComplete:
		glog.V(3).Infof("port %s: tx %d written", p.name, tx.ID)
		notifyComplete(tx, nil)
	case bus.PhaseReadComplete:
		glog.V(3).Infof("port %s: tx %d answered, %d words", p.name, tx.ID, len(status.ReadBuffer))
		notifyComplete(tx, responsePacket(status.ReadBuffer))
	case bus.PhaseWriteFailed:
		glog.V(2).Infof("port %s: tx %d write failed: %v", p.name, tx.ID, status.FailureReason)
		notifyReason(tx, status.FailureReason)
		notifyFailed(tx, true, false)
	case bus.PhaseReadFailed:
		glog.V(2).Infof("port %s: tx %d read failed: %v", p.name, tx.ID, status.FailureReason)
		notifyReason(tx, status.FailureReason)
		notifyFailed(tx, false, true)
	}
}

func notifyComplete(tx *sched.Transmission, response *maple.Packet) {
	if tx.Target != nil {
		tx.Target.TxComplete(response, tx)
	}
}

func notifyFailed(tx *sched.Transmission, writeFailed, readFailed bool) {
	if tx.Target != nil {
		tx.Target.TxFailed(writeFailed, readFailed, tx)
	}
}

func notifyReason(tx *sched.Transmission, reason bus.FailureReason) {
	if obs, ok := tx.Target.(FailureObserver); ok {
		obs.TxFailureReason(reason, tx)
	}
}

// responsePacket rebuilds a packet from captured words. The payload
// aliases the engine's receive buffer and stays valid until the next
// read; callers keeping it longer must copy. Words past the claimed
// length are dropped.
func responsePacket(words []uint32) *maple.Packet {
	f := maple.FrameFromWord(words[0])
	return &maple.Packet{Frame: f, Payload: words[1 : 1+int(f.Length)]}
}
