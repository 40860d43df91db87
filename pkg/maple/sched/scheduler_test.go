package sched

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maplebus/maple.go/pkg/maple"
)

func infoPacket(recipient byte) *maple.Packet {
	return maple.NewPacket(maple.CmdDeviceInfoRequest, recipient, 0x00, nil)
}

func addAt(s *Scheduler, priority uint8, txTimeUs uint64, recipient byte) uint32 {
	return s.Add(&Transmission{
		Priority: priority,
		TxTimeUs: txTimeUs,
		Packet:   infoPacket(recipient),
	})
}

func TestPopNextDueOnly(t *testing.T) {
	s := NewScheduler(MaxPriority)
	id := addAt(s, PriorityMain, 100, 0x20)

	require.Nil(t, s.PopNext(99))
	tx := s.PopNext(100)
	require.NotNil(t, tx)
	require.Equal(t, id, tx.ID)
	require.Nil(t, s.PopNext(100))
}

func TestPopNextOrderedWithinBucket(t *testing.T) {
	s := NewScheduler(MaxPriority)
	addAt(s, PriorityMain, 300, 0x03)
	addAt(s, PriorityMain, 100, 0x01)
	addAt(s, PriorityMain, 200, 0x02)

	var order []byte
	for tx := s.PopNext(1000); tx != nil; tx = s.PopNext(1000) {
		order = append(order, tx.Packet.RecipientAddr)
	}
	require.Equal(t, []byte{0x01, 0x02, 0x03}, order)
}

func TestPopNextStableForEqualTimes(t *testing.T) {
	s := NewScheduler(MaxPriority)
	first := addAt(s, PriorityMain, 100, 0x01)
	second := addAt(s, PriorityMain, 100, 0x02)

	require.Equal(t, first, s.PopNext(100).ID)
	require.Equal(t, second, s.PopNext(100).ID)
}

func TestPopNextPriorityOrder(t *testing.T) {
	s := NewScheduler(MaxPriority)
	addAt(s, PrioritySub, 10, 0x01)
	addAt(s, PriorityMain, 20, 0x20)

	require.Equal(t, uint8(PriorityMain), s.PopNext(20).Priority)
	require.Equal(t, uint8(PrioritySub), s.PopNext(20).Priority)
}

func TestPopNextFutureHeadYieldsToLowerPriority(t *testing.T) {
	s := NewScheduler(MaxPriority)
	addAt(s, PriorityMain, 1000, 0x20)
	addAt(s, PrioritySub, 10, 0x01)

	tx := s.PopNext(500)
	require.NotNil(t, tx)
	require.Equal(t, uint8(PrioritySub), tx.Priority)
	require.Nil(t, s.PopNext(500))
}

func TestPopNextASAPBehindFutureHead(t *testing.T) {
	s := NewScheduler(MaxPriority)
	addAt(s, PriorityMain, 100, 0x20)
	asap := addAt(s, PriorityExternal, TxTimeASAP, 0x01)

	require.Equal(t, asap, s.PopNext(50).ID)
	require.Equal(t, uint8(PriorityMain), s.PopNext(100).Priority)
}

func TestAutoRepeatCadence(t *testing.T) {
	s := NewScheduler(MaxPriority)
	id := s.Add(&Transmission{
		Priority:           PriorityMain,
		TxTimeUs:           TxTimeASAP,
		Packet:             infoPacket(0x20),
		AutoRepeatPeriodUs: 1000,
	})

	tx := s.PopNext(0)
	require.NotNil(t, tx)
	require.Equal(t, id, tx.ID)

	require.Nil(t, s.PopNext(500))

	tx = s.PopNext(1000)
	require.NotNil(t, tx)
	require.Equal(t, id, tx.ID)

	// A late pop advances a single step, no catch-up burst.
	tx = s.PopNext(5300)
	require.NotNil(t, tx)
	require.Nil(t, s.PopNext(5999))
	require.NotNil(t, s.PopNext(6000))
}

func TestAutoRepeatEndTime(t *testing.T) {
	s := NewScheduler(MaxPriority)
	s.Add(&Transmission{
		Priority:            PriorityMain,
		TxTimeUs:            TxTimeASAP,
		Packet:              infoPacket(0x20),
		AutoRepeatPeriodUs:  1000,
		AutoRepeatEndTimeUs: 2000,
	})

	require.NotNil(t, s.PopNext(0))    // re-queued for 1000
	require.NotNil(t, s.PopNext(1000)) // next would land on the end time
	require.Nil(t, s.PopNext(10000))
}

func TestCancelByID(t *testing.T) {
	s := NewScheduler(MaxPriority)
	keep := addAt(s, PriorityMain, 10, 0x01)
	gone := addAt(s, PriorityMain, 20, 0x02)

	require.Equal(t, 1, s.CancelByID(gone))
	require.Equal(t, 0, s.CancelByID(gone))

	tx := s.PopNext(100)
	require.Equal(t, keep, tx.ID)
	require.Nil(t, s.PopNext(100))
}

func TestCancelByRecipient(t *testing.T) {
	s := NewScheduler(MaxPriority)
	addAt(s, PriorityMain, 10, 0x20)
	addAt(s, PrioritySub, 20, 0x01)
	addAt(s, PriorityExternal, 30, 0x20)

	require.Equal(t, 2, s.CountRecipients(0x20))
	require.Equal(t, 2, s.CancelByRecipient(0x20))
	require.Equal(t, 0, s.CountRecipients(0x20))
	require.Equal(t, 1, s.CountRecipients(0x01))
}

func TestCancelAll(t *testing.T) {
	s := NewScheduler(MaxPriority)
	addAt(s, PriorityMain, 10, 0x01)
	addAt(s, PrioritySub, 20, 0x02)
	addAt(s, PriorityExternal, 30, 0x03)

	require.Equal(t, 3, s.CancelAll())
	require.Nil(t, s.PopNext(1000))
}

func TestComputeNextTimeCadence(t *testing.T) {
	cases := []struct {
		name   string
		now    uint64
		period uint32
		offset uint64
		want   uint64
	}{
		{"on anchor", 0, 1000, 0, 1000},
		{"mid period", 500, 1000, 0, 1000},
		{"on beat", 1000, 1000, 0, 2000},
		{"just before beat", 999, 1000, 0, 1000},
		{"offset anchor", 1500, 1000, 200, 2200},
		{"future anchor", 100, 1000, 500, 500},
		{"odd period", 200, 7, 200, 207},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ComputeNextTimeCadence(c.now, c.period, c.offset)
			require.Equal(t, c.want, got)
			if got <= c.now && c.now >= c.offset {
				t.Fatalf("cadence %d not after now %d", got, c.now)
			}
		})
	}
}

func TestEndpointSchedulerFixedPriority(t *testing.T) {
	s := NewScheduler(MaxPriority)
	ep := NewEndpointScheduler(s, PrioritySub)
	require.Equal(t, uint8(PrioritySub), ep.Priority())

	id := ep.Add(&Transmission{TxTimeUs: TxTimeASAP, Packet: infoPacket(0x01)})
	tx := s.PopNext(0)
	require.NotNil(t, tx)
	require.Equal(t, id, tx.ID)
	require.Equal(t, uint8(PrioritySub), tx.Priority)

	id = ep.Add(&Transmission{TxTimeUs: 10, Packet: infoPacket(0x01)})
	require.Equal(t, 1, ep.CountRecipients(0x01))
	require.Equal(t, 1, ep.CancelByID(id))
	require.Equal(t, 0, ep.CancelAll())
}
