package wsserver

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/swill/pkg/swill"
	"github.com/tzrikka/swill/pkg/websocket"
)

const readHeaderTimeout = 3 * time.Second

// Server mounts a Swill [swill.Dispatcher] as an HTTP(S) handler at a
// single configurable path; every other path, and any request to that path
// that is not a WebSocket upgrade, gets a 404 response. Grounded on the
// teacher's pkg/http/webhooks/server.go (HTTP server shape, access-log
// style), generalized from a REST webhook receiver to a long-lived
// WebSocket upgrade endpoint.
type Server struct {
	port      int
	path      string
	queueSize int

	Dispatcher  *swill.Dispatcher
	Subprotocol string

	// Authenticate, if set, runs against the raw HTTP request before the
	// WebSocket handshake begins. A returned error aborts the upgrade; if
	// it unwraps to a *swill.CloseConnection its Code is mapped to an HTTP
	// status with swill.HTTPStatusForClose, otherwise 401 is used. On
	// success the returned claims (if any) become the new connection's
	// Principal. See pkg/swill/authn.Authenticate.
	Authenticate func(r *http.Request) (any, error)
}

// NewServer constructs a [Server] from CLI flags (see [Flags]) and a
// dispatcher the caller has already registered handlers on.
func NewServer(cmd *cli.Command, d *swill.Dispatcher) *Server {
	path := cmd.String("swill-path")
	if path == "" {
		path = DefaultPath
	}

	return &Server{
		port:        cmd.Int("swill-port"),
		path:        path,
		queueSize:   cmd.Int("swill-send-queue-size"),
		Dispatcher:  d,
		Subprotocol: "swill/1",
	}
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.upgradeHandler)

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(s.port)),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Info().Msgf("Swill WebSocket server listening on port %d, path %s", s.port, s.path)
	return server.ListenAndServe()
}

func (s *Server) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		http.NotFound(w, r)
		return
	}

	l := log.With().Str("remote_addr", r.RemoteAddr).Str("url_path", r.URL.EscapedPath()).Logger()
	l.Info().Msg("received Swill WebSocket upgrade request")

	var principal any
	if s.Authenticate != nil {
		p, err := s.Authenticate(r)
		if err != nil {
			status := http.StatusUnauthorized
			var cc *swill.CloseConnection
			if errors.As(err, &cc) {
				status = swill.HTTPStatusForClose(cc.Code)
			}
			l.Warn().Err(err).Msg("rejected WebSocket upgrade: authentication failed")
			http.Error(w, err.Error(), status)
			return
		}
		principal = p
	}

	wsConn, err := websocket.Accept(w, r, websocket.WithSubprotocols(s.Subprotocol))
	if err != nil {
		l.Warn().Err(err).Msg("failed to accept WebSocket upgrade")
		return
	}

	hs := swill.HandshakeInfo{
		Method:              r.Method,
		Scheme:              schemeOf(r),
		Path:                r.URL.Path,
		RawQuery:            r.URL.RawQuery,
		Headers:             r.Header.Clone(),
		RemoteAddr:          r.RemoteAddr,
		OfferedSubprotocols: r.Header.Values("Sec-WebSocket-Protocol"),
	}

	conn := swill.NewConnectionWithQueueSize(hs, s.Subprotocol, s.queueSize)
	conn.Principal = principal
	transport := newAdapter(wsConn)

	l.Info().Str("conn_id", conn.ID).Msg("Swill connection established")

	ctx := r.Context()
	if err := swill.Serve(ctx, conn, transport, s.Dispatcher, nil); err != nil {
		l.Warn().Str("conn_id", conn.ID).Err(err).Msg("Swill connection terminated with an error")
	} else {
		l.Info().Str("conn_id", conn.ID).Msg("Swill connection closed")
	}
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "wss"
	}
	return "ws"
}
