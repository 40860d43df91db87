package port

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
	"github.com/maplebus/maple.go/pkg/maple/sched"
	"github.com/maplebus/maple.go/pkg/maple/sim"
)

type testCtlCtx struct {
	msgs []fx.Message
}

func (c *testCtlCtx) Context() context.Context        { return context.Background() }
func (c *testCtlCtx) Time() time.Time                 { return time.Now() }
func (c *testCtlCtx) PriorityLevel() int              { return fx.PrLvBus }
func (c *testCtlCtx) Messages() fx.MessageStore       { return c }
func (c *testCtlCtx) PostRun(...fx.Controller)        {}
func (c *testCtlCtx) PreRunAt(int, ...fx.Controller)  {}
func (c *testCtlCtx) PostRunAt(int, ...fx.Controller) {}
func (c *testCtlCtx) PostMessage(msg fx.Message)      { c.msgs = append(c.msgs, msg) }
func (c *testCtlCtx) TriggerNext()                    {}
func (c *testCtlCtx) AddMessages(msgs ...fx.Message)  { c.msgs = append(c.msgs, msgs...) }

func (c *testCtlCtx) ProcessMessages(proc fx.MessageProcessor) {
	var remains []fx.Message
	for i, msg := range c.msgs {
		mc := &testMsgCtx{ctx: c, msg: msg}
		proc.ProcessMessage(mc)
		if !mc.taken {
			remains = append(remains, msg)
		}
		if mc.stop {
			remains = append(remains, c.msgs[i+1:]...)
			break
		}
	}
	c.msgs = remains
}

type testMsgCtx struct {
	ctx   *testCtlCtx
	msg   fx.Message
	taken bool
	stop  bool
}

func (mc *testMsgCtx) CurrentMessage() fx.Message     { return mc.msg }
func (mc *testMsgCtx) MessageTaken()                  { mc.taken = true }
func (mc *testMsgCtx) StopProcessing()                { mc.stop = true }
func (mc *testMsgCtx) AddMessages(msgs ...fx.Message) { mc.ctx.AddMessages(msgs...) }

type txRecorder struct {
	started  int
	complete []*maple.Packet
	failed   []string
}

func (r *txRecorder) TxStarted(tx *sched.Transmission) { r.started++ }

func (r *txRecorder) TxFailed(writeFailed, readFailed bool, tx *sched.Transmission) {
	switch {
	case writeFailed:
		r.failed = append(r.failed, "write")
	case readFailed:
		r.failed = append(r.failed, "read")
	}
}

func (r *txRecorder) TxComplete(response *maple.Packet, tx *sched.Transmission) {
	r.complete = append(r.complete, response)
}

func newTestPort() (*Port, *sim.Backend, *sim.ManualClock) {
	clock := &sim.ManualClock{}
	be := sim.New(clock)
	b := bus.NewBus(be, bus.Config{Clock: clock})
	return New("a", b, clock), be, clock
}

func infoResponder(addr byte) sim.Responder {
	return sim.RespondFunc(func(req *maple.Packet) *maple.Packet {
		if req.Command != maple.CmdDeviceInfoRequest {
			return nil
		}
		return maple.NewPacket(maple.CmdRespDeviceInfo, req.SenderAddr, addr,
			[]uint32{maple.FnController, 0, 0, 0})
	})
}

func infoRequest(target *txRecorder, addr byte) *sched.Transmission {
	return &sched.Transmission{
		Priority:       sched.PriorityMain,
		Target:         target,
		Packet:         maple.NewPacket(maple.CmdDeviceInfoRequest, addr, 0x00, nil),
		ExpectResponse: true,
	}
}

func TestPortWriteNoResponse(t *testing.T) {
	p, _, _ := newTestPort()
	cc := &testCtlCtx{}
	rec := &txRecorder{}
	p.Scheduler().Add(&sched.Transmission{
		Target: rec,
		Packet: maple.NewPacket(maple.CmdSetCondition, 0x20, 0x00, []uint32{1, 2}),
	})

	require.NoError(t, p.Control(cc))
	require.Equal(t, 1, rec.started)
	require.Empty(t, rec.complete)

	require.NoError(t, p.Control(cc))
	require.Len(t, rec.complete, 1)
	require.Nil(t, rec.complete[0])
	require.Empty(t, rec.failed)
}

func TestPortRoundTrip(t *testing.T) {
	p, be, _ := newTestPort()
	be.AttachResponder(0x20, infoResponder(0x20))
	cc := &testCtlCtx{}
	rec := &txRecorder{}
	p.Scheduler().Add(infoRequest(rec, 0x20))

	require.NoError(t, p.Control(cc))
	require.NoError(t, p.Control(cc))
	require.Len(t, rec.complete, 1)
	resp := rec.complete[0]
	require.NotNil(t, resp)
	require.Equal(t, maple.CmdRespDeviceInfo, resp.Command)
	require.Equal(t, byte(0x20), resp.SenderAddr)
	require.True(t, resp.IsValid())
	require.Equal(t, maple.FnController, resp.Payload[0])
}

func TestPortResponseTimeout(t *testing.T) {
	p, _, clock := newTestPort()
	cc := &testCtlCtx{}
	rec := &txRecorder{}
	p.Scheduler().Add(infoRequest(rec, 0x20))

	require.NoError(t, p.Control(cc))
	require.Empty(t, rec.failed)

	clock.Advance(p.ResponseTimeoutUs + 100)
	require.NoError(t, p.Control(cc))
	require.Equal(t, []string{"read"}, rec.failed)
	require.Empty(t, rec.complete)
}

func TestPortRefusedWrite(t *testing.T) {
	p, be, _ := newTestPort()
	be.SetLinesBusy(true)
	cc := &testCtlCtx{}
	rec := &txRecorder{}
	p.Scheduler().Add(infoRequest(rec, 0x20))

	require.NoError(t, p.Control(cc))
	require.Equal(t, []string{"write"}, rec.failed)
	require.Zero(t, rec.started)
	require.Nil(t, p.Scheduler().PopNext(0))
}

func TestPortDrainsByPriority(t *testing.T) {
	p, be, _ := newTestPort()
	be.AttachResponder(0x20, infoResponder(0x20))
	cc := &testCtlCtx{}
	var order []uint8
	rec := &sched.TransmitterFuncs{
		OnComplete: func(response *maple.Packet, tx *sched.Transmission) {
			order = append(order, tx.Priority)
		},
	}
	for _, prio := range []uint8{sched.PriorityExternal, sched.PriorityMain, sched.PrioritySub} {
		p.Scheduler().Add(&sched.Transmission{
			Priority:       prio,
			Target:         rec,
			Packet:         maple.NewPacket(maple.CmdDeviceInfoRequest, 0x20, 0x00, nil),
			ExpectResponse: true,
		})
	}

	for i := 0; i < 6; i++ {
		require.NoError(t, p.Control(cc))
	}
	require.Equal(t, []uint8{sched.PriorityMain, sched.PrioritySub, sched.PriorityExternal}, order)
}

func TestPortSubmitMessage(t *testing.T) {
	p, be, _ := newTestPort()
	be.AttachResponder(0x20, infoResponder(0x20))
	cc := &testCtlCtx{}
	rec := &txRecorder{}
	scheduled := false
	tx := infoRequest(rec, 0x20)
	cc.AddMessages(&Submit{
		Port:      p,
		Tx:        tx,
		Scheduled: func(id uint32) { scheduled = true },
	})

	require.NoError(t, p.Control(cc))
	require.True(t, scheduled)
	require.Empty(t, cc.msgs)

	require.NoError(t, p.Control(cc))
	require.Len(t, rec.complete, 1)
}

func TestPortSubmitForOtherPortLeftAlone(t *testing.T) {
	p, _, _ := newTestPort()
	other, _, _ := newTestPort()
	cc := &testCtlCtx{}
	cc.AddMessages(&Submit{Port: other, Tx: infoRequest(&txRecorder{}, 0x20)})

	require.NoError(t, p.Control(cc))
	require.Len(t, cc.msgs, 1)
}

func TestPortAutoRepeat(t *testing.T) {
	p, be, clock := newTestPort()
	be.AttachResponder(0x20, infoResponder(0x20))
	cc := &testCtlCtx{}
	rec := &txRecorder{}
	tx := infoRequest(rec, 0x20)
	tx.AutoRepeatPeriodUs = 1000
	p.Scheduler().Add(tx)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Control(cc))
		require.NoError(t, p.Control(cc))
		clock.Advance(1000)
	}
	require.Len(t, rec.complete, 3)
}

func TestResponsePacketTruncatesExtraWords(t *testing.T) {
	f := maple.Frame{Command: maple.CmdRespDeviceInfo, RecipientAddr: 0x00, SenderAddr: 0x20, Length: 2}
	words := []uint32{f.Word(), 0x11, 0x22, 0xdead}
	pkt := responsePacket(words)
	require.True(t, pkt.IsValid())
	require.Equal(t, []uint32{0x11, 0x22}, pkt.Payload)
}
