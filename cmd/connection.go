// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
)

var (
	// ErrWriteTimeout is returned when a bounded write does not finish in time
	ErrWriteTimeout = errors.New("write timed out")

	// ErrConnectionClosed ends every read once the WebSocket has failed
	ErrConnectionClosed = errors.New("websocket connection closed")
)

// Connection is the byte link to a sensor: a serial port or a WebSocket
// bridge in front of one
type Connection interface {
	io.ReadWriteCloser

	// WriteTimeout writes p, giving up after timeout
	WriteTimeout(p []byte, timeout time.Duration) (int, error)
}

// transportFor exposes a connection as the sensor's command transport
func transportFor(conn Connection) luna.Transport {
	return luna.TransportFunc(conn.WriteTimeout)
}

//////////////////////////////////////////////////////////////
// Serial
//////////////////////////////////////////////////////////////

// SerialConnection is a sensor wired to a local UART
type SerialConnection struct {
	port serial.Port
}

// serialMode is the TF-Luna UART framing: 8N1 at the given baud rate
func serialMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// WriteTimeout writes p on a helper goroutine. The port has no write
// deadline, so a timed out write may still complete later.
func (s *SerialConnection) WriteTimeout(p []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := s.port.Write(p)
		if err == nil {
			err = s.port.Drain()
		}
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-time.After(timeout):
		return 0, ErrWriteTimeout
	}
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerialConnection opens portName at baudRate
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, serialMode(baudRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return &SerialConnection{port: port}, nil
}

//////////////////////////////////////////////////////////////
// WebSocket
//////////////////////////////////////////////////////////////

// WebSocketConnection turns a message-oriented WebSocket into a byte
// stream. Each binary message carries raw sensor bytes; a message larger
// than the caller's buffer is handed out over several reads.
type WebSocketConnection struct {
	conn    *websocket.Conn
	pending []byte // unread tail of the current message
	err     error  // sticky once the socket has failed
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if len(w.pending) == 0 {
		if err := w.nextMessage(); err != nil {
			return 0, err
		}
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

// nextMessage blocks until a non-empty binary message arrives. Text and
// control traffic from the bridge is not sensor data.
func (w *WebSocketConnection) nextMessage() error {
	if w.err != nil {
		return w.err
	}
	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			w.err = fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			return w.err
		}
		if kind == websocket.BinaryMessage && len(data) > 0 {
			w.pending = data
			return nil
		}
	}
}

// Write sends p as a single binary message
func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteTimeout is Write under a write deadline
func (w *WebSocketConnection) WriteTimeout(p []byte, timeout time.Duration) (int, error) {
	if err := w.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	defer w.conn.SetWriteDeadline(time.Time{})
	return w.Write(p)
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// basicAuthHeader carries HTTP Basic credentials for the upgrade request.
// Both parts must be set; otherwise no header is sent.
func basicAuthHeader(username, password string) http.Header {
	h := http.Header{}
	if username == "" || password == "" {
		return h
	}
	req := http.Request{Header: h}
	req.SetBasicAuth(username, password)
	return h
}

// OpenWebSocketConnection dials a ws:// or wss:// byte bridge
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, basicAuthHeader(username, password))
	switch {
	case err != nil && resp != nil:
		return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
	case err != nil:
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return &WebSocketConnection{conn: conn}, nil
}

//////////////////////////////////////////////////////////////
// Credentials and selection
//////////////////////////////////////////////////////////////

// GetPassword takes the bridge password from LUNASTAT_PASSWORD, or asks
// for it on stderr. Input is hidden when stdin is a terminal.
func GetPassword() (string, error) {
	if pw := os.Getenv("LUNASTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	if secret, err := term.ReadPassword(int(syscall.Stdin)); err == nil {
		return string(secret), nil
	}
	return readPasswordLine(os.Stdin)
}

// readPasswordLine reads one line from a non-terminal input
func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the link selected by --url or --port, preferring
// the WebSocket bridge. The returned string describes it for banners.
func OpenConnection() (Connection, string, error) {
	switch {
	case wsURL != "":
		var password string
		if wsUsername != "" {
			pw, err := GetPassword()
			if err != nil {
				return nil, "", err
			}
			password = pw
		}
		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, "WebSocket: " + wsURL, nil

	case portName != "":
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}
