package websocket

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tzrikka/swill/internal/logger"
)

// AcceptOpt configures [Accept].
type AcceptOpt func(*acceptConfig)

type acceptConfig struct {
	subprotocols []string
}

// WithSubprotocols restricts the subprotocols [Accept] will negotiate
// with the client's Sec-WebSocket-Protocol offer, in order of server
// preference. The first mutually offered/allowed subprotocol wins. If
// unset, Accept negotiates no subprotocol.
func WithSubprotocols(names ...string) AcceptOpt {
	return func(c *acceptConfig) {
		c.subprotocols = names
	}
}

// Accept performs the server side of a [WebSocket handshake]: it validates
// the upgrade request, negotiates a subprotocol, hijacks the underlying
// TCP connection, and writes the 101 Switching Protocols response.
//
// On a handshake failure before the connection is hijacked it writes an
// appropriate HTTP error response itself and returns an error; if writing
// the 101 response fails after hijacking, it closes the connection and
// returns an error. Either way, callers should simply return from their
// handler afterwards.
//
// [WebSocket handshake]: https://datatracker.ietf.org/doc/html/rfc6455#section-4.1
func Accept(w http.ResponseWriter, r *http.Request, opts ...AcceptOpt) (*Conn, error) {
	cfg := &acceptConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if !strings.EqualFold(r.Method, http.MethodGet) {
		http.Error(w, "WebSocket handshake requires GET", http.StatusMethodNotAllowed)
		return nil, fmt.Errorf("WebSocket handshake request method: got %s, want GET", r.Method)
	}
	if err := checkHTTPHeader(r.Header, "Upgrade", "websocket"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}
	if !headerContainsToken(r.Header, "Connection", "upgrade") {
		err := fmt.Errorf("WebSocket handshake request header %q missing %q token", "Connection", "upgrade")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}
	if err := checkHTTPHeader(r.Header, "Sec-WebSocket-Version", "13"); err != nil {
		http.Error(w, err.Error(), http.StatusUpgradeRequired)
		return nil, err
	}

	nonce := r.Header.Get("Sec-WebSocket-Key")
	if nonce == "" {
		err := fmt.Errorf("WebSocket handshake request missing %q header", "Sec-WebSocket-Key")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}

	subprotocol := negotiateSubprotocol(r.Header, cfg.subprotocols)
	if len(cfg.subprotocols) > 0 && subprotocol == "" {
		err := fmt.Errorf("no mutually supported WebSocket subprotocol, client offered %q",
			r.Header.Get("Sec-WebSocket-Protocol"))
		http.Error(w, err.Error(), http.StatusNotAcceptable)
		return nil, err
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		err := fmt.Errorf("ResponseWriter of type %T does not support hijacking", w)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}

	netConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, "failed to hijack connection", http.StatusInternalServerError)
		return nil, fmt.Errorf("failed to hijack connection for WebSocket upgrade: %w", err)
	}

	respHeader := fmt.Sprintf(
		"HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: %s\r\n",
		expectedServerAcceptValue(nonce))
	if subprotocol != "" {
		respHeader += fmt.Sprintf("Sec-WebSocket-Protocol: %s\r\n", subprotocol)
	}
	respHeader += "\r\n"

	if _, err := bufrw.WriteString(respHeader); err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("failed to write WebSocket upgrade response: %w", err)
	}
	if err := bufrw.Flush(); err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("failed to flush WebSocket upgrade response: %w", err)
	}

	l := logger.FromContext(r.Context())
	c := &Conn{
		logger:     l,
		serverSide: true,
		bufio:      bufrw,
		reader:     make(chan Message),
		writer:     make(chan internalMessage),
		closer:     netConn,
	}

	go c.readMessages()
	go c.writeMessages()

	l.Debug("accepted WebSocket connection", "subprotocol", subprotocol)
	return c, nil
}

// headerContainsToken reports whether a comma-separated HTTP header value
// contains the given token, case-insensitively (RFC 6455's "Connection"
// header may list multiple tokens, e.g. "keep-alive, Upgrade").
func headerContainsToken(headers http.Header, key, token string) bool {
	for _, part := range strings.Split(headers.Get(key), ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// negotiateSubprotocol picks the first server-preferred subprotocol that
// the client also offered, or "" if none match.
func negotiateSubprotocol(headers http.Header, allowed []string) string {
	offered := map[string]bool{}
	for _, part := range strings.Split(headers.Get("Sec-WebSocket-Protocol"), ",") {
		if p := strings.TrimSpace(part); p != "" {
			offered[p] = true
		}
	}
	for _, name := range allowed {
		if offered[name] {
			return name
		}
	}
	return ""
}
