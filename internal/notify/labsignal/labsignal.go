// Package labsignal drives the red laboratory signal light through a
// USB serial relay.
package labsignal

import (
	"errors"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// Relay command layout, taken from the relay manual: set-relay opcode,
// relay number (the device has only one), then on/off.
const (
	commandSetRelay = 0xFF
	relayNumber     = 0x01
	relayStateOn    = 0x01
	relayStateOff   = 0x00
	deviceBaudRate  = 9600
	deviceDataBits  = 8
)

// errNoDeviceNode is returned when no serial device node is configured.
var errNoDeviceNode = errors.New("no relay device node configured")

// Relay switches the laboratory signal on and off. The hardware cannot
// be controlled concurrently, so every switch serializes on an internal
// mutex and performs a full open-write-close cycle; the relay keeps its
// state while the port is closed.
type Relay struct {
	// deviceNode supplies the current serial device node from configuration.
	deviceNode func() string
	// mu serializes access to the serial line.
	mu sync.Mutex
}

// NewRelay creates a relay reading its device node through the provided
// accessor so configuration reloads take effect without restart.
func NewRelay(deviceNode func() string) *Relay {
	return &Relay{deviceNode: deviceNode}
}

// SignalOn switches the laboratory signal on.
func (r *Relay) SignalOn() error {
	return r.write(true)
}

// SignalOff switches the laboratory signal off.
func (r *Relay) SignalOff() error {
	return r.write(false)
}

// write sends one relay command over the serial line.
func (r *Relay) write(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.deviceNode()
	if node == "" {
		return errNoDeviceNode
	}

	//nolint:exhaustruct // Defaults for parity and stop bits are correct for this relay (8N1).
	port, err := serial.Open(node, &serial.Mode{
		BaudRate: deviceBaudRate,
		DataBits: deviceDataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open relay device %s: %w", node, err)
	}

	defer func() {
		_ = port.Close()
	}()

	if _, err := port.Write(command(on)); err != nil {
		return fmt.Errorf("write relay command: %w", err)
	}

	return nil
}

// command builds the 3-byte relay frame for the requested state.
func command(on bool) []byte {
	state := byte(relayStateOff)
	if on {
		state = relayStateOn
	}

	return []byte{commandSetRelay, relayNumber, state}
}
