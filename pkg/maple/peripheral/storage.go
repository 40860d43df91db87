package peripheral

import (
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/storage"
)

// Storage block geometry. Blocks are read whole and written in phases.
const (
	BlockSize   = 512
	WritePhases = 4
	phaseSize   = BlockSize / WritePhases
)

// Storage is the storage function: block reads and phased block writes
// against a storage.Memory.
type Storage struct {
	mem storage.Memory
}

// NewStorage creates a storage function over mem, whose size should be
// a whole number of blocks.
func NewStorage(mem storage.Memory) *Storage {
	return &Storage{mem: mem}
}

// Blocks returns the block count of the backing memory.
func (s *Storage) Blocks() uint32 {
	return s.mem.Size() / BlockSize
}

// Code implements Function.
func (s *Storage) Code() uint32 {
	return maple.FnStorage
}

// Definition implements Function. The word packs the geometry: block
// size in 32 byte units minus one, then write and read accesses per
// block.
func (s *Storage) Definition() uint32 {
	return uint32(BlockSize/32-1)<<16 | uint32(WritePhases)<<12 | 1<<8
}

// HandlePacket implements Function.
func (s *Storage) HandlePacket(in *maple.Packet) *maple.Packet {
	switch in.Command {
	case maple.CmdGetMemoryInfo:
		return maple.NewPacket(maple.CmdRespDataXfer, 0, 0,
			append([]uint32{maple.FnStorage}, s.mediaInfo()...))
	case maple.CmdBlockRead:
		return s.blockRead(in)
	case maple.CmdBlockWrite:
		return s.blockWrite(in)
	case maple.CmdGetLastError:
		// Writes are validated as they land; no deferred errors exist.
		return maple.NewPacket(maple.CmdRespAck, 0, 0, nil)
	}
	return nil
}

// Reset implements Function. Stored data survives resets.
func (s *Storage) Reset() {}

// mediaInfo builds the geometry reply: the last block number over the
// partition, then the block size in bytes with the write and read
// access counts.
func (s *Storage) mediaInfo() []uint32 {
	last := s.Blocks() - 1
	return []uint32{last << 16, BlockSize<<16 | WritePhases<<8 | 1}
}

// splitLocation unpacks a storage location word: partition in the top
// byte, write phase below it, block number in the low half.
func splitLocation(w uint32) (partition, phase byte, block uint32) {
	return byte(w >> 24), byte(w >> 16), w & 0xffff
}

func (s *Storage) blockRead(in *maple.Packet) *maple.Packet {
	if len(in.Payload) != 2 {
		return nil
	}
	_, phase, block := splitLocation(in.Payload[1])
	if phase != 0 || block >= s.Blocks() {
		return nil
	}
	data := s.mem.Read(block*BlockSize, BlockSize)
	if len(data) != BlockSize {
		return nil
	}
	payload := append([]uint32{maple.FnStorage, in.Payload[1]}, maple.BytesToWords(data)...)
	return maple.NewPacket(maple.CmdRespDataXfer, 0, 0, payload)
}

func (s *Storage) blockWrite(in *maple.Packet) *maple.Packet {
	if len(in.Payload) != 2+phaseSize/4 {
		return nil
	}
	_, phase, block := splitLocation(in.Payload[1])
	if int(phase) >= WritePhases || block >= s.Blocks() {
		return nil
	}
	offset := block*BlockSize + uint32(phase)*phaseSize
	if !s.mem.Write(offset, maple.WordsToBytes(in.Payload[2:])) {
		return nil
	}
	return maple.NewPacket(maple.CmdRespAck, 0, 0, nil)
}
