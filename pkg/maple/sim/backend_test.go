package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
)

func infoResponder(addr byte) Responder {
	return RespondFunc(func(req *maple.Packet) *maple.Packet {
		if req.Command != maple.CmdDeviceInfoRequest {
			return nil
		}
		return maple.NewPacket(maple.CmdRespDeviceInfo, req.SenderAddr, addr,
			[]uint32{maple.FnController, 0, 0, 0})
	})
}

func newSimBus() (*bus.Bus, *Backend, *ManualClock) {
	clock := &ManualClock{}
	be := New(clock)
	b := bus.NewBus(be, bus.Config{Clock: clock})
	be.AttachResponder(0x20, infoResponder(0x20))
	return b, be, clock
}

func writeInfoRequest(t *testing.T, b *bus.Bus) {
	req := maple.NewPacket(maple.CmdDeviceInfoRequest, 0x20, 0x00, nil)
	require.True(t, b.Write(req, true, 1000, bus.Chunking{}))
}

func TestRoundTrip(t *testing.T) {
	b, be, clock := newSimBus()
	writeInfoRequest(t, b)

	st := b.ProcessEvents(clock.NowUs())
	require.Equal(t, bus.PhaseReadComplete, st.Phase)
	require.Equal(t, maple.CmdRespDeviceInfo, maple.FrameFromWord(st.ReadBuffer[0]).Command)
	require.Len(t, st.ReadBuffer, 5)

	sent := be.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, maple.CmdDeviceInfoRequest, sent[0].Command)
}

func TestUnansweredAddressTimesOut(t *testing.T) {
	b, _, clock := newSimBus()
	req := maple.NewPacket(maple.CmdDeviceInfoRequest, 0x60, 0x40, nil)
	require.True(t, b.Write(req, true, 1000, bus.Chunking{}))

	require.Equal(t, bus.PhaseWaitingForReadStart, b.ProcessEvents(clock.NowUs()).Phase)
	clock.Advance(2000)
	st := b.ProcessEvents(clock.NowUs())
	require.Equal(t, bus.PhaseReadFailed, st.Phase)
	require.Equal(t, bus.FailureTimeout, st.FailureReason)
}

func TestDroppedResponse(t *testing.T) {
	b, be, clock := newSimBus()
	be.DropNextResponse()
	writeInfoRequest(t, b)

	require.Equal(t, bus.PhaseWaitingForReadStart, b.ProcessEvents(clock.NowUs()).Phase)
	clock.Advance(1000)
	st := b.ProcessEvents(clock.NowUs())
	require.Equal(t, bus.PhaseReadFailed, st.Phase)
	require.Equal(t, bus.FailureTimeout, st.FailureReason)
}

func TestCorruptedResponse(t *testing.T) {
	b, be, clock := newSimBus()
	be.CorruptNextResponse()
	writeInfoRequest(t, b)

	st := b.ProcessEvents(clock.NowUs())
	require.Equal(t, bus.PhaseReadFailed, st.Phase)
	require.Equal(t, bus.FailureCRCInvalid, st.FailureReason)
}

func TestTruncatedResponse(t *testing.T) {
	b, be, clock := newSimBus()
	be.TruncateNextResponse(2)
	writeInfoRequest(t, b)

	st := b.ProcessEvents(clock.NowUs())
	require.Equal(t, bus.PhaseReadFailed, st.Phase)
	require.Equal(t, bus.FailureMissingData, st.FailureReason)
}

func TestStalledResponse(t *testing.T) {
	b, be, clock := newSimBus()
	be.StallNextResponse()
	writeInfoRequest(t, b)

	require.Equal(t, bus.PhaseReadInProgress, b.ProcessEvents(clock.NowUs()).Phase)
	clock.Advance(uint64(bus.DefaultInterWordReadTimeoutUs))
	st := b.ProcessEvents(clock.NowUs())
	require.Equal(t, bus.PhaseReadFailed, st.Phase)
	require.Equal(t, bus.FailureTimeout, st.FailureReason)
}

func TestBusyLinesRefuseWrite(t *testing.T) {
	b, be, _ := newSimBus()
	be.SetLinesBusy(true)
	req := maple.NewPacket(maple.CmdDeviceInfoRequest, 0x20, 0x00, nil)
	require.False(t, b.Write(req, true, 1000, bus.Chunking{}))

	be.SetLinesBusy(false)
	require.True(t, b.Write(req, true, 1000, bus.Chunking{}))
}

func TestInjectIntoStartedRead(t *testing.T) {
	b, be, clock := newSimBus()
	require.False(t, be.InjectPacket(maple.NewPacket(maple.CmdReset, 0x20, 0x00, nil)),
		"no capture armed yet")

	require.True(t, b.StartRead(bus.NoTimeout))
	pkt := maple.NewPacket(maple.CmdGetCondition, 0x20, 0x00, []uint32{maple.FnController})
	require.True(t, be.InjectPacket(pkt))

	st := b.ProcessEvents(clock.NowUs())
	require.Equal(t, bus.PhaseReadComplete, st.Phase)
	require.Equal(t, append([]uint32{pkt.Frame.Word()}, pkt.Payload...), st.ReadBuffer)
}
