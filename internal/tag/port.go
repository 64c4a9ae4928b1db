package tag

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
)

// PortReader speaks a small line protocol to the reader bridge over any
// io.ReadWriter (typically the bridge's serial device):
//
//	-> READ
//	<- TAG <uid> <base64 payload>
//	-> WRITE <base64 payload>
//	<- OK
//	-> RST                 (release the antenna; no response)
//	<- ERR <message>       (READ or WRITE)
//
// Payloads travel base64-encoded so null padding survives the wire. The
// protocol is strictly request/response; PortReader serializes commands with a
// mutex so a stray concurrent caller cannot interleave frames.
type PortReader struct {
	mu sync.Mutex
	w  io.Writer
	r  *bufio.Scanner
	cl io.Closer // nil unless the port is closeable
}

// NewPortReader wraps an open bridge device. If rw also implements io.Closer,
// Cleanup closes it.
func NewPortReader(rw io.ReadWriter) *PortReader {
	p := &PortReader{
		w: rw,
		r: bufio.NewScanner(rw),
	}
	if c, ok := rw.(io.Closer); ok {
		p.cl = c
	}
	return p
}

// Read blocks until the bridge reports a presented tag.
func (p *PortReader) Read() (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := p.roundTrip("READ")
	if err != nil {
		return "", "", &TransferError{Op: "read", Err: err}
	}

	fields := strings.SplitN(resp, " ", 3)
	if len(fields) < 2 || fields[0] != "TAG" {
		return "", "", &TransferError{Op: "read", Err: fmt.Errorf("unexpected response %q", resp)}
	}

	uid := fields[1]
	var text string
	if len(fields) == 3 {
		raw, err := base64.StdEncoding.DecodeString(fields[2])
		if err != nil {
			return "", "", &TransferError{Op: "read", Err: fmt.Errorf("decode payload: %w", err)}
		}
		text = string(raw)
	}
	return uid, text, nil
}

// Write blocks until the bridge stores text on a presented tag.
func (p *PortReader) Write(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := "WRITE " + base64.StdEncoding.EncodeToString([]byte(text))
	resp, err := p.roundTrip(cmd)
	if err != nil {
		return &TransferError{Op: "write", Err: err}
	}
	if resp != "OK" {
		return &TransferError{Op: "write", Err: fmt.Errorf("unexpected response %q", resp)}
	}
	return nil
}

// Cleanup releases the antenna so the next attempt starts from a clean state.
// The port itself stays open; see Close.
func (p *PortReader) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, "RST\n") //nolint:errcheck // release is best-effort
}

// Close closes the underlying port when it is closeable.
func (p *PortReader) Close() error {
	if p.cl != nil {
		return p.cl.Close()
	}
	return nil
}

func (p *PortReader) roundTrip(cmd string) (string, error) {
	if _, err := io.WriteString(p.w, cmd+"\n"); err != nil {
		return "", fmt.Errorf("send %s: %w", strings.Fields(cmd)[0], err)
	}

	if !p.r.Scan() {
		if err := p.r.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}

	resp := strings.TrimRight(p.r.Text(), "\r")
	if rest, ok := strings.CutPrefix(resp, "ERR "); ok {
		return "", fmt.Errorf("bridge: %s", rest)
	}
	if resp == "ERR" {
		return "", fmt.Errorf("bridge: unspecified error")
	}
	return resp, nil
}
