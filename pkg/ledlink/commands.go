package ledlink

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// SendChunks sends data as consecutive frames of at most size bytes.
// It stops at the first frame that fails and returns the number of bytes acknowledged
// so far; the failed frame is not retried.
func (e *Encoder) SendChunks(data []byte, size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("invalid chunk size %d", size)
	}

	sent := 0
	for sent < len(data) {
		end := sent + size
		if end > len(data) {
			end = len(data)
		}
		f, err := e.SendFrame(data[sent:end])
		if err != nil {
			log.Debugf("Frame %v at offset %d failed: %v", f.ID, sent, err)
			return sent, err
		}
		sent = end
	}
	return sent, nil
}

// SendFrom reads r to the end and sends its content in frames of at most size bytes
func (e *Encoder) SendFrom(r io.Reader, size int) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("could not read data to send: %w", err)
	}
	if len(data) == 0 {
		return 0, nil
	}
	if size <= 0 {
		size = len(data)
	}
	return e.SendChunks(data, size)
}

// MeasurementPattern returns the payloads used to measure a channel:
// 0 sends 50 zero bytes, 1 sends 50 0xff bytes, anything else 100 bytes of alternating bits.
func MeasurementPattern(kind int) []byte {
	var (
		n = 100
		c = byte(0xaa)
	)
	switch kind {
	case 0:
		n, c = 50, 0x00
	case 1:
		n, c = 50, 0xff
	}
	p := make([]byte, n)
	for i := range p {
		p[i] = c
	}
	return p
}
