package clientdev

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
	"github.com/maplebus/maple.go/pkg/maple/peripheral"
	"github.com/maplebus/maple.go/pkg/maple/sim"
)

type nopCtlCtx struct{}

func (nopCtlCtx) Context() context.Context        { return context.Background() }
func (nopCtlCtx) Time() time.Time                 { return time.Time{} }
func (nopCtlCtx) PriorityLevel() int              { return 0 }
func (nopCtlCtx) Messages() fx.MessageStore       { return nopStore{} }
func (nopCtlCtx) PostRun(...fx.Controller)        {}
func (nopCtlCtx) PreRunAt(int, ...fx.Controller)  {}
func (nopCtlCtx) PostRunAt(int, ...fx.Controller) {}
func (nopCtlCtx) PostMessage(fx.Message)          {}
func (nopCtlCtx) TriggerNext()                    {}

type nopStore struct{}

func (nopStore) ProcessMessages(fx.MessageProcessor) {}
func (nopStore) AddMessages(...fx.Message)           {}

type harness struct {
	clock *sim.ManualClock
	be    *sim.Backend
	em    *Emulator
}

func newHarness() *harness {
	clock := &sim.ManualClock{}
	be := sim.New(clock)
	b := bus.NewBus(be, bus.Config{Clock: clock})
	main := peripheral.New(maple.AddrMain, padInfo, padVersion)
	main.AddFunction(peripheral.NewController())
	return &harness{clock: clock, be: be, em: NewEmulator(b, clock, main)}
}

func (h *harness) step(t *testing.T, iterations int) {
	for i := 0; i < iterations; i++ {
		require.NoError(t, h.em.Control(nopCtlCtx{}))
	}
}

func hostInfoRequest() *maple.Packet {
	return maple.NewPacket(maple.CmdDeviceInfoRequest, maple.AddrMain, maple.PortAddr(0), nil)
}

func TestEmulatorAnswersInfoRequest(t *testing.T) {
	h := newHarness()
	h.step(t, 1)
	require.True(t, h.be.InjectPacket(hostInfoRequest()))
	h.step(t, 1)

	sent := h.be.Sent()
	require.Len(t, sent, 1)
	resp := sent[0]
	require.Equal(t, maple.CmdRespDeviceInfo, resp.Command)
	require.Equal(t, maple.AddrMain, resp.SenderAddr)
	require.Equal(t, maple.PortAddr(0), resp.RecipientAddr)
	info, ok := maple.ParseDeviceInfo(resp.Payload)
	require.True(t, ok)
	require.Equal(t, "Dreamcast Controller", info.Product)
	require.True(t, h.em.Device().Connected())
}

func TestEmulatorReplaysOnResendRequest(t *testing.T) {
	h := newHarness()
	h.step(t, 1)
	require.True(t, h.be.InjectPacket(hostInfoRequest()))
	h.step(t, 2)

	require.True(t, h.be.InjectPacket(maple.NewPacket(
		maple.CmdRespRequestResend, maple.AddrMain, maple.PortAddr(0), nil)))
	h.step(t, 1)

	sent := h.be.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, sent[0].Frame, sent[1].Frame)
	require.Equal(t, sent[0].Payload, sent[1].Payload)
}

func TestEmulatorRequestsResendOnGarbledPacket(t *testing.T) {
	h := newHarness()
	h.step(t, 1)
	require.True(t, h.be.InjectPacket(hostInfoRequest()))
	h.step(t, 2)

	h.be.CorruptNextResponse()
	require.True(t, h.be.InjectPacket(hostInfoRequest()))
	h.step(t, 1)

	sent := h.be.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, maple.CmdRespRequestResend, sent[1].Command)
	require.Equal(t, maple.PortAddr(0), sent[1].RecipientAddr)
	require.Equal(t, maple.AddrMain, sent[1].SenderAddr)
	require.True(t, h.em.Device().Connected())
}

func TestEmulatorResetsOnListenTimeout(t *testing.T) {
	h := newHarness()
	h.step(t, 1)
	require.True(t, h.be.InjectPacket(hostInfoRequest()))
	h.step(t, 2)
	require.True(t, h.em.Device().Connected())

	h.clock.Advance(h.em.ReadTimeoutUs + 1)
	h.step(t, 1)
	require.False(t, h.em.Device().Connected())
}

func TestEmulatorIgnoresOtherRecipients(t *testing.T) {
	h := newHarness()
	h.step(t, 1)
	require.True(t, h.be.InjectPacket(maple.NewPacket(
		maple.CmdDeviceInfoRequest, 0x02, maple.PortAddr(0), nil)))
	h.step(t, 2)
	require.Empty(t, h.be.Sent())
	require.False(t, h.em.Device().Connected())
}
