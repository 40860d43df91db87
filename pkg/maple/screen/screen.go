// Package screen holds the 48 word LCD frame of a player slot. Hosts
// push frames in from the emulator side; the port side drains them to
// an attached screen peripheral whenever new data is flagged.
package screen

import "sync"

// Dimensions of one frame.
const (
	// Words is the frame size: 48 x 32 bits for the 192x32 mono LCD.
	Words = 48
	// NumDefaultScreens is how many stock frames exist.
	NumDefaultScreens = 4
)

// Data is one mutex guarded frame buffer with a dirty flag. The zero
// value is not usable; create with New.
type Data struct {
	mu        sync.Mutex
	defScreen [Words]uint32
	data      [Words]uint32
	newData   bool
}

// New creates a frame preloaded with stock frame defaultScreenNum.
// Out of range numbers select frame 0.
func New(defaultScreenNum int) *Data {
	d := &Data{}
	if defaultScreenNum < 0 || defaultScreenNum >= NumDefaultScreens {
		defaultScreenNum = 0
	}
	d.defScreen = defaultScreens[defaultScreenNum]
	d.ResetToDefault()
	return d
}

// SetData overwrites words of the frame starting at startIndex and
// flags new data. Writes that would run past the frame are ignored.
func (d *Data) SetData(words []uint32, startIndex int) {
	if startIndex < 0 || startIndex+len(words) > Words {
		return
	}
	d.mu.Lock()
	copy(d.data[startIndex:], words)
	d.newData = true
	d.mu.Unlock()
}

// SetToDefault replaces the frame with stock frame n. Out of range
// numbers select frame 0.
func (d *Data) SetToDefault(n int) {
	if n < 0 || n >= NumDefaultScreens {
		n = 0
	}
	d.SetData(defaultScreens[n][:], 0)
}

// ResetToDefault restores the frame this buffer was created with and
// forces an update.
func (d *Data) ResetToDefault() {
	d.mu.Lock()
	d.data = d.defScreen
	d.newData = true
	d.mu.Unlock()
}

// NewDataAvailable reports whether the frame changed since the last
// ReadData.
func (d *Data) NewDataAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newData
}

// ReadData copies the frame out and clears the dirty flag.
func (d *Data) ReadData() [Words]uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.newData = false
	return d.data
}
