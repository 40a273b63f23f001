package dispatch

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// PortOpener opens a serial port. Tests substitute an in-memory port.
type PortOpener func(name string, mode *serial.Mode) (io.WriteCloser, error)

// OpenSerialPort opens a real UART
func OpenSerialPort(name string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(name, mode)
}

// SerialSink writes the raw four-byte tuple to the DSP board's UART.
// The board reads exactly four bytes per selection.
type SerialSink struct {
	port string
	mode *serial.Mode
	open PortOpener
}

// NewSerialSink creates a sink for port at baud, 8N1
func NewSerialSink(port string, baud int, open PortOpener) *SerialSink {
	if open == nil {
		open = OpenSerialPort
	}
	return &SerialSink{
		port: port,
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		open: open,
	}
}

func (s *SerialSink) Name() string { return "serial" }

// Send opens the port, writes the tuple and closes it again
func (s *SerialSink) Send(ctx context.Context, sel Selection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	port, err := s.open(s.port, s.mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.port, err)
	}
	defer port.Close()

	buf := sel.Output.Bytes()
	n, err := port.Write(buf)
	if err != nil {
		return fmt.Errorf("write %s: %w", s.port, err)
	}
	if n != len(buf) {
		return fmt.Errorf("write %s: short write (%d of %d bytes)", s.port, n, len(buf))
	}
	return nil
}

// Clear is a no-op: the board keeps running the last effect
func (s *SerialSink) Clear(ctx context.Context) error { return nil }
