// +build linux

package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// joydev ioctl requests and event type flags, from linux/joystick.h.
const (
	iocGAXES    uint = 0x80016a11
	iocGBUTTONS uint = 0x80016a12
	iocGNAME    uint = 0x80ff6a13

	evInit uint8 = 0x80
)

type device struct {
	file        *os.File
	index       int
	name        string
	axisCount   uint8
	buttonCount uint8
}

// Open opens the device with the specified index.
func Open(index int) (Device, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/input/js%d", index), os.O_RDONLY, 0666)
	if err != nil {
		return nil, err
	}
	d := &device{file: f, index: index}
	if err := d.describe(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// DetectAndOpen opens the first available device at or after
// startIndex. It returns nil without error when none is present.
func DetectAndOpen(startIndex int) (Device, error) {
	for index := startIndex; index < 256; index++ {
		d, err := Open(index)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		return d, nil
	}
	return nil, nil
}

func (d *device) describe() error {
	if err := d.ioctl(iocGAXES, unsafe.Pointer(&d.axisCount)); err != nil {
		return err
	}
	if err := d.ioctl(iocGBUTTONS, unsafe.Pointer(&d.buttonCount)); err != nil {
		return err
	}
	var buf [256]byte
	if err := d.ioctl(iocGNAME, unsafe.Pointer(&buf)); err != nil {
		return err
	}
	if pos := bytes.IndexByte(buf[:], 0); pos >= 0 {
		d.name = string(buf[:pos])
	} else {
		d.name = string(buf[:])
	}
	return nil
}

func (d *device) ioctl(req uint, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.file.Fd(), uintptr(req), uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

// Close implements Device.
func (d *device) Close() error {
	return d.file.Close()
}

// Index implements Device.
func (d *device) Index() int {
	return d.index
}

// Name implements Device.
func (d *device) Name() string {
	return d.name
}

// AxisCount implements Device.
func (d *device) AxisCount() int {
	return int(d.axisCount)
}

// ButtonCount implements Device.
func (d *device) ButtonCount() int {
	return int(d.buttonCount)
}

// ReadEvent implements Device. The wire format is the 8 byte
// js_event record: time, value, type, number, little endian.
func (d *device) ReadEvent() (Event, error) {
	var buf [8]byte
	if _, err := io.ReadFull(d.file, buf[:]); err != nil {
		return Event{}, err
	}
	typ := buf[6]
	return Event{
		TimeMs: binary.LittleEndian.Uint32(buf[0:4]),
		Value:  int16(binary.LittleEndian.Uint16(buf[4:6])),
		Kind:   Kind(typ &^ evInit),
		Init:   typ&evInit != 0,
		Index:  int(buf[7]),
	}, nil
}
