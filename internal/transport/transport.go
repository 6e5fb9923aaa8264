// Package transport opens the byte stream a session runs on: a TCP socket or
// a serial line.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// Connection types
const (
	TypeTCP    = "tcp"
	TypeSerial = "serial"
)

// Defaults
const (
	DefaultDialTimeout = 10 * time.Second
	DefaultBaud        = 115200

	// serialPollInterval bounds how long a serial read blocks before checking for Close
	serialPollInterval = 100 * time.Millisecond
)

// ErrUnknownType is returned for connection types other than tcp and serial
var ErrUnknownType = errors.New("unknown connection type")

// Options selects and configures the connection
type Options struct {
	Type        string // TypeTCP or TypeSerial
	Address     string // host:port, tcp only
	SerialPort  string // device name, serial only
	Baud        int
	DialTimeout time.Duration
	Debug       bool
}

// Dial opens the connection described by opts
func Dial(ctx context.Context, opts Options) (io.ReadWriteCloser, error) {
	switch opts.Type {
	case TypeTCP, "":
		return dialTCP(ctx, opts)
	case TypeSerial:
		return openSerial(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, opts.Type)
	}
}

func dialTCP(ctx context.Context, opts Options) (net.Conn, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("tcp connection needs an address")
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Address, err)
	}
	if opts.Debug {
		log.Printf("[TCP] Connected to %s", opts.Address)
	}
	return conn, nil
}

// serialConn turns the polling serial port into a blocking stream
type serialConn struct {
	port   serial.Port
	closed atomic.Bool
}

func openSerial(opts Options) (*serialConn, error) {
	if opts.SerialPort == "" {
		return nil, fmt.Errorf("serial connection needs a port name")
	}
	baud := opts.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(opts.SerialPort, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.SerialPort, err)
	}
	if err := port.SetReadTimeout(serialPollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", opts.SerialPort, err)
	}
	if opts.Debug {
		log.Printf("[Serial] Opened %s at %d baud", opts.SerialPort, baud)
	}
	return &serialConn{port: port}, nil
}

// Read blocks until data arrives. A read timeout on the port yields no
// bytes, which would look like a stalled stream to buffered readers.
func (c *serialConn) Read(b []byte) (int, error) {
	for {
		if c.closed.Load() {
			return 0, net.ErrClosed
		}
		n, err := c.port.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (c *serialConn) Write(b []byte) (int, error) {
	return c.port.Write(b)
}

func (c *serialConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.port.Close()
}
