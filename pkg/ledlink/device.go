package ledlink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Constants of the serial handshake with the far-end transmitter
const (
	NUL byte = 0x00 // Ack for reset, mode selection and frames
	SOH byte = 0x01 // Answer to a frame length if the far end has no free buffer
)

const (
	// DefaultBaud is the baud rate of the far-end transmitter firmware
	DefaultBaud = 115200
	// DefaultTimeout bounds a single acknowledgment read
	DefaultTimeout = 5 * time.Second

	defaultSettle = 1 * time.Second
	defaultWarmup = 2 * time.Second
)

// port is the raw byte channel underneath a Device
type port interface {
	io.ReadWriteCloser
	setDTR(on bool) error
	flush() error
}

// Device is the Transport to the far-end transmitter, attached via serial device or tcp socket.
// A Device is owned by a single Encoder, it does no locking of its own.
type Device struct {
	conn      port
	r         *bufio.Reader
	link      string
	connected bool

	// Baud is the serial speed used by Connect
	Baud int
	// Timeout bounds every single byte read. Zero blocks until a byte arrives.
	Timeout time.Duration
	// Settle is how long the control line is held low during Reset (at least 1s for the firmware to reboot)
	Settle time.Duration
	// Warmup is the pause after an acknowledged Reset before the far end accepts commands
	Warmup time.Duration
}

// NewDevice is the factory method to create a new Device
func NewDevice() *Device {
	return &Device{
		Baud:    DefaultBaud,
		Timeout: DefaultTimeout,
		Settle:  defaultSettle,
		Warmup:  defaultWarmup,
	}
}

func (o *Device) attach(p port) {
	o.conn = p
	o.r = bufio.NewReader(p)
	o.connected = true
}

// Connect attaches to the transmitter via serial device or a tcp socket.
// Use socket://[host]:[port] or tcp://[host]:[port] for TCP, a device path or file:// URL for serial.
func (o *Device) Connect(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		o.connected = false
		return err
	}

	var p port
	switch u.Scheme {
	case "socket", "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			o.connected = false
			return fmt.Errorf("could not dial %q: %w", u.Host, err)
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(30 * time.Second)
		}
		p = &tcpPort{Conn: conn, timeout: o.Timeout}
	case "file", "":
		p, err = openSerial(u.Path, o.Baud, o.Timeout)
		if err != nil {
			o.connected = false
			return err
		}
	default:
		o.connected = false
		return fmt.Errorf("can not find a valid connection string in %q", link)
	}

	o.link = link
	o.attach(p)
	log.Debugf("Connected to %s", link)
	return nil
}

// Close closes Device, closing underlying connection via serial or network
func (o *Device) Close() error {
	if !o.connected {
		return io.ErrClosedPipe
	}
	o.connected = false
	o.r.Reset(o.conn)
	return o.conn.Close()
}

// Read reads raw bytes from the link
func (o *Device) Read(b []byte) (int, error) {
	if !o.connected {
		return 0, io.EOF
	}
	n, err := o.r.Read(b)
	log.Debugf("Read b='%# x', n=%v, err=%v", b[0:n], n, err)
	return n, err
}

// ReadByte reads a single byte, blocking for at most Timeout.
func (o *Device) ReadByte() (byte, error) {
	if !o.connected {
		return 0, io.EOF
	}
	b, err := o.r.ReadByte()
	if err != nil {
		log.Debugf("ReadByte err=%v", err)
		return 0, err
	}
	log.Debugf("ReadByte b=%#02x", b)
	return b, nil
}

// Write writes raw bytes to the link
func (o *Device) Write(b []byte) (int, error) {
	if !o.connected {
		return 0, io.EOF
	}
	n, err := o.conn.Write(b)
	log.Debugf("Write b='%# x', n=%v, err=%v", b, n, err)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	return n, err
}

// WriteLine writes v as decimal ASCII followed by a newline
func (o *Device) WriteLine(v int) error {
	_, err := o.Write([]byte(strconv.Itoa(v) + "\n"))
	if err != nil {
		return fmt.Errorf("could not write line %d: %w", v, err)
	}
	return nil
}

// Reset reboots the far end: the control line is held low for Settle, pending input is
// discarded, the line is raised again and the far end must answer with NUL.
// Reset blocks until the acknowledgment byte arrives or Timeout elapses.
func (o *Device) Reset() error {
	if !o.connected {
		return newError("reset", StatusFailed, -1, io.EOF)
	}
	hasLine := true
	if err := o.conn.setDTR(false); err != nil {
		if !errors.Is(err, ErrNoControlLine) {
			return newError("reset", StatusFailed, -1, fmt.Errorf("could not drop control line: %w", err))
		}
		log.Warnf("No control line on %s, waiting for far end to come up on its own", o.link)
		hasLine = false
	}
	time.Sleep(o.Settle)

	if err := o.conn.flush(); err != nil {
		return newError("reset", StatusFailed, -1, fmt.Errorf("could not flush input: %w", err))
	}
	o.r.Reset(o.conn)

	if hasLine {
		if err := o.conn.setDTR(true); err != nil {
			return newError("reset", StatusFailed, -1, fmt.Errorf("could not raise control line: %w", err))
		}
	}

	b, err := o.ReadByte()
	if err != nil {
		return newError("reset", StatusLinkResetFailed, -1, err)
	}
	if b != NUL {
		log.Warnf("Received unexpected byte %#02x after reset (expected %#02x)", b, NUL)
		return newError("reset", StatusLinkResetFailed, int(b), nil)
	}
	log.Debugf("Far end on %s is ready", o.link)
	time.Sleep(o.Warmup)
	return nil
}

// serialPort is a tty opened with tarm/serial plus a second descriptor to drive the modem lines
type serialPort struct {
	*serial.Port
	lines   *modemLines
	timeout time.Duration
}

func openSerial(name string, baud int, timeout time.Duration) (*serialPort, error) {
	sp, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open serial device %q: %w", name, err)
	}
	lines, err := openModemLines(name)
	if err != nil {
		log.Warnf("Could not open modem lines of %q: %v", name, err)
	}
	return &serialPort{Port: sp, lines: lines, timeout: timeout}, nil
}

// Read maps the empty read tarm/serial returns on VTIME expiry to ErrTimeout
func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == io.EOF && p.timeout > 0 {
		return 0, ErrTimeout
	}
	return n, err
}

func (p *serialPort) setDTR(on bool) error {
	if p.lines == nil {
		return ErrNoControlLine
	}
	return p.lines.setDTR(on)
}

func (p *serialPort) flush() error { return p.Port.Flush() }

func (p *serialPort) Close() error {
	if p.lines != nil {
		p.lines.Close()
	}
	return p.Port.Close()
}

// tcpPort is a serial link tunneled through TCP (e.g. ser2net). It has no control line.
type tcpPort struct {
	net.Conn
	timeout time.Duration
}

func (p *tcpPort) Read(b []byte) (int, error) {
	if p.timeout > 0 {
		p.Conn.SetReadDeadline(time.Now().Add(p.timeout))
	}
	n, err := p.Conn.Read(b)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, ErrTimeout
	}
	return n, err
}

func (p *tcpPort) setDTR(on bool) error { return ErrNoControlLine }

// flush drops whatever is already buffered on the socket
func (p *tcpPort) flush() error {
	buf := make([]byte, 512)
	for {
		p.Conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		n, err := p.Conn.Read(buf)
		if n > 0 {
			log.Debugf("Flushed b='%# x'", buf[:n])
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return p.Conn.SetReadDeadline(time.Time{})
			}
			return err
		}
	}
}
