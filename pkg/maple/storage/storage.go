// Package storage keeps the persistent block memory behind storage
// function peripherals, mirrored in RAM so reads never wait on the
// backing store.
package storage

import (
	"encoding/binary"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/maplebus/maple.go/pkg/maple/bus"
)

const (
	// SectorSize is the erase granularity of the backing store.
	SectorSize = 4096
	// DefaultWriteDelayUs is how long a queued sector stays open for
	// coalescing before it is programmed.
	DefaultWriteDelayUs uint64 = 250000
)

// Memory is the block memory behind a storage function. Write reports
// whether the range was accepted; persistence may lag behind it.
type Memory interface {
	Size() uint32
	Read(offset, size uint32) []byte
	Write(offset uint32, data []byte) bool
	LastActivityTimeUs() uint64
}

var sectorsBucket = []byte("sectors")

type programState int

const (
	stateWaitingForJob programState = iota
	stateErasing
	stateDelayingWrite
)

// Flash is a Memory persisted in a bbolt bucket of SectorSize sectors.
// All traffic is served from a RAM mirror; Write queues the touched
// sectors and Process erases and programs them one at a time, holding
// each program back so a sector rewritten in a burst is flushed once.
type Flash struct {
	// WriteDelayUs is the coalescing window for a queued sector.
	WriteDelayUs uint64

	db    *bbolt.DB
	clock bus.Clock
	size  uint32

	mu             sync.Mutex
	mem            []byte
	state          programState
	queue          []uint16
	delayedWriteUs uint64
	lastActivityUs uint64
}

// Open opens or creates the store at path and loads the mirror.
// Sectors never programmed read as erased flash, all 0xff.
func Open(path string, size uint32, clock bus.Clock) (*Flash, error) {
	if size == 0 {
		return nil, fmt.Errorf("zero memory size")
	}
	if clock == nil {
		clock = bus.NewSystemClock()
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	f := &Flash{
		WriteDelayUs: DefaultWriteDelayUs,
		db:           db,
		clock:        clock,
		size:         size,
		mem:          make([]byte, size),
	}
	for i := range f.mem {
		f.mem[i] = 0xff
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sectorsBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 2 {
				return fmt.Errorf("malformed sector key % x", k)
			}
			start := uint32(binary.BigEndian.Uint16(k)) * SectorSize
			if start < f.size {
				copy(f.mem[start:], v)
			}
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return f, nil
}

// Size implements Memory.
func (f *Flash) Size() uint32 {
	return f.size
}

// Read copies size bytes at offset out of the mirror. The range is
// clamped to the end; an offset past the end returns nil.
func (f *Flash) Read(offset, size uint32) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastActivityUs = f.clock.NowUs()
	if offset >= f.size {
		return nil
	}
	end := offset + size
	if end < offset || end > f.size {
		end = f.size
	}
	out := make([]byte, end-offset)
	copy(out, f.mem[offset:end])
	return out
}

// Write stores data at offset in the mirror and queues the touched
// sectors for programming. A range past the end is refused whole.
func (f *Flash) Write(offset uint32, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.NowUs()
	f.lastActivityUs = now
	if len(data) == 0 {
		return true
	}
	end := offset + uint32(len(data))
	if end < offset || end > f.size {
		return false
	}
	copy(f.mem[offset:], data)

	itemAdded, delayWrite := false, false
	for s := offset / SectorSize; s <= (end-1)/SectorSize; s++ {
		switch f.queueIndex(uint16(s)) {
		case -1:
			f.queue = append(f.queue, uint16(s))
			itemAdded = true
		case 0:
			// The sector being programmed right now took another write.
			delayWrite = true
		}
	}
	if itemAdded {
		// Writer moved on to another sector, stop delaying.
		f.delayedWriteUs = 0
	} else if delayWrite {
		f.delayedWriteUs = now + f.WriteDelayUs
	}
	return true
}

// LastActivityTimeUs implements Memory.
func (f *Flash) LastActivityTimeUs() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActivityUs
}

// PendingSectors reports how many sectors wait to be programmed.
func (f *Flash) PendingSectors() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Process advances sector programming. Each call performs at most one
// store operation: the erase of the front sector, then its program
// once the coalescing window has passed.
func (f *Flash) Process() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case stateWaitingForJob:
		if len(f.queue) == 0 {
			return nil
		}
		now := f.clock.NowUs()
		f.lastActivityUs = now
		f.delayedWriteUs = now + f.WriteDelayUs
		f.state = stateErasing
		return f.eraseSector(f.queue[0])
	case stateErasing:
		f.state = stateDelayingWrite
		fallthrough
	case stateDelayingWrite:
		now := f.clock.NowUs()
		f.lastActivityUs = now
		if now < f.delayedWriteUs {
			return nil
		}
		if err := f.programSector(f.queue[0]); err != nil {
			return err
		}
		f.queue = f.queue[1:]
		f.state = stateWaitingForJob
	}
	return nil
}

// Flush programs every queued sector immediately, ignoring the
// coalescing window.
func (f *Flash) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.queue) > 0 {
		if err := f.programSector(f.queue[0]); err != nil {
			return err
		}
		f.queue = f.queue[1:]
	}
	f.state = stateWaitingForJob
	return nil
}

// Close flushes pending sectors and closes the backing store.
func (f *Flash) Close() error {
	if err := f.Flush(); err != nil {
		f.db.Close()
		return err
	}
	return f.db.Close()
}

func (f *Flash) queueIndex(sector uint16) int {
	for i, s := range f.queue {
		if s == sector {
			return i
		}
	}
	return -1
}

func (f *Flash) eraseSector(sector uint16) error {
	return f.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sectorsBucket).Delete(sectorKey(sector))
	})
}

func (f *Flash) programSector(sector uint16) error {
	return f.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sectorsBucket).Put(sectorKey(sector), f.sectorBytes(sector))
	})
}

// sectorBytes returns the mirror slice for sector, short at the tail
// when the size is not sector aligned.
func (f *Flash) sectorBytes(sector uint16) []byte {
	start := uint32(sector) * SectorSize
	end := start + SectorSize
	if end > f.size {
		end = f.size
	}
	return f.mem[start:end]
}

func sectorKey(sector uint16) []byte {
	k := make([]byte, 2)
	binary.BigEndian.PutUint16(k, sector)
	return k
}
