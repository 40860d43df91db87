package sched

import (
	"container/list"
)

// Scheduler holds pending transmissions in one time-ordered bucket per
// priority. It is not synchronized; see the package comment.
type Scheduler struct {
	nextID  uint32
	buckets []*list.List
}

// NewScheduler creates a scheduler accepting priorities 0 through
// maxPriority.
func NewScheduler(maxPriority uint8) *Scheduler {
	s := &Scheduler{buckets: make([]*list.List, int(maxPriority)+1)}
	for i := range s.buckets {
		s.buckets[i] = list.New()
	}
	return s
}

// Add schedules tx and returns its assigned id. The transmission and
// its packet belong to the scheduler from this point; tx.Priority must
// be within the configured range and tx.Packet must be valid.
func (s *Scheduler) Add(tx *Transmission) uint32 {
	tx.ID = s.nextID
	s.nextID++
	s.insert(tx)
	return tx.ID
}

// insert places tx behind every pending entry of its bucket with an
// equal or earlier send time.
func (s *Scheduler) insert(tx *Transmission) {
	bucket := s.buckets[tx.Priority]
	for e := bucket.Back(); e != nil; e = e.Prev() {
		if e.Value.(*Transmission).TxTimeUs <= tx.TxTimeUs {
			bucket.InsertAfter(tx, e)
			return
		}
	}
	bucket.PushFront(tx)
}

// PopNext removes and returns the next due transmission at nowUs, or
// nil when nothing is due. Buckets are scanned in ascending priority
// order and only bucket heads are considered. An auto-repeating
// transmission is re-queued under the same id at its next cadence time
// before being returned.
func (s *Scheduler) PopNext(nowUs uint64) *Transmission {
	for _, bucket := range s.buckets {
		front := bucket.Front()
		if front == nil {
			continue
		}
		tx := front.Value.(*Transmission)
		if tx.TxTimeUs > nowUs {
			continue
		}
		bucket.Remove(front)
		if tx.AutoRepeatPeriodUs > 0 {
			next := ComputeNextTimeCadence(nowUs, tx.AutoRepeatPeriodUs, tx.TxTimeUs)
			if tx.AutoRepeatEndTimeUs == 0 || next < tx.AutoRepeatEndTimeUs {
				tx.TxTimeUs = next
				s.insert(tx)
			}
		}
		return tx
	}
	return nil
}

// CancelByID removes the pending transmission with the given id and
// returns the number of entries removed. A transmission already popped
// is in flight and out of reach.
func (s *Scheduler) CancelByID(id uint32) int {
	n := 0
	for _, bucket := range s.buckets {
		for e := bucket.Front(); e != nil; {
			next := e.Next()
			if e.Value.(*Transmission).ID == id {
				bucket.Remove(e)
				n++
			}
			e = next
		}
	}
	return n
}

// CancelByRecipient removes every pending transmission addressed to
// recipientAddr and returns the number removed.
func (s *Scheduler) CancelByRecipient(recipientAddr byte) int {
	n := 0
	for _, bucket := range s.buckets {
		for e := bucket.Front(); e != nil; {
			next := e.Next()
			if e.Value.(*Transmission).Packet.RecipientAddr == recipientAddr {
				bucket.Remove(e)
				n++
			}
			e = next
		}
	}
	return n
}

// CountRecipients returns how many pending transmissions are addressed
// to recipientAddr.
func (s *Scheduler) CountRecipients(recipientAddr byte) int {
	n := 0
	for _, bucket := range s.buckets {
		for e := bucket.Front(); e != nil; e = e.Next() {
			if e.Value.(*Transmission).Packet.RecipientAddr == recipientAddr {
				n++
			}
		}
	}
	return n
}

// CancelAll drops every pending transmission and returns the number
// removed.
func (s *Scheduler) CancelAll() int {
	n := 0
	for _, bucket := range s.buckets {
		n += bucket.Len()
		bucket.Init()
	}
	return n
}

// ComputeNextTimeCadence returns the earliest time strictly after
// nowUs that falls on the cadence anchored at offsetUs with the given
// period. periodUs must be positive.
func ComputeNextTimeCadence(nowUs uint64, periodUs uint32, offsetUs uint64) uint64 {
	if nowUs < offsetUs {
		return offsetUs
	}
	p := uint64(periodUs)
	return offsetUs + ((nowUs-offsetUs)/p+1)*p
}
