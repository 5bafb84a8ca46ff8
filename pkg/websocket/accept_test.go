package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAcceptRejectsBeforeHijack(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		upgrade     string
		connection  string
		version     string
		key         string
		protocols   []string
		subprotocol string
		wantStatus  int
	}{
		{
			name:       "wrong_method",
			method:     http.MethodPost,
			upgrade:    "websocket",
			connection: "Upgrade",
			version:    "13",
			key:        "dGhlIHNhbXBsZSBub25jZQ==",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "missing_upgrade_header",
			method:     http.MethodGet,
			connection: "Upgrade",
			version:    "13",
			key:        "dGhlIHNhbXBsZSBub25jZQ==",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing_connection_token",
			method:     http.MethodGet,
			upgrade:    "websocket",
			connection: "keep-alive",
			version:    "13",
			key:        "dGhlIHNhbXBsZSBub25jZQ==",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong_version",
			method:     http.MethodGet,
			upgrade:    "websocket",
			connection: "Upgrade",
			version:    "8",
			key:        "dGhlIHNhbXBsZSBub25jZQ==",
			wantStatus: http.StatusUpgradeRequired,
		},
		{
			name:       "missing_key",
			method:     http.MethodGet,
			upgrade:    "websocket",
			connection: "Upgrade",
			version:    "13",
			wantStatus: http.StatusBadRequest,
		},
		{
			// This is the case spec.md §4.4/§6 and Testable Property 4
			// require a 406 for: the server only supports named
			// subprotocols, and the client offered none of them.
			name:        "subprotocol_mismatch",
			method:      http.MethodGet,
			upgrade:     "websocket",
			connection:  "Upgrade",
			version:     "13",
			key:         "dGhlIHNhbXBsZSBub25jZQ==",
			protocols:   []string{"swill/1"},
			subprotocol: "other/1",
			wantStatus:  http.StatusNotAcceptable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, "/ws", nil)
			if tt.upgrade != "" {
				r.Header.Set("Upgrade", tt.upgrade)
			}
			if tt.connection != "" {
				r.Header.Set("Connection", tt.connection)
			}
			if tt.version != "" {
				r.Header.Set("Sec-WebSocket-Version", tt.version)
			}
			if tt.key != "" {
				r.Header.Set("Sec-WebSocket-Key", tt.key)
			}
			if tt.subprotocol != "" {
				r.Header.Set("Sec-WebSocket-Protocol", tt.subprotocol)
			}

			var opts []AcceptOpt
			if len(tt.protocols) > 0 {
				opts = append(opts, WithSubprotocols(tt.protocols...))
			}

			_, err := Accept(rec, r, opts...)
			if err == nil {
				t.Fatalf("Accept() error = nil, want non-nil")
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("Accept() wrote status %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestNegotiateSubprotocol(t *testing.T) {
	tests := []struct {
		name    string
		offered string
		allowed []string
		want    string
	}{
		{
			name:    "no_allowed_list",
			offered: "foo, bar",
			want:    "",
		},
		{
			name:    "first_preference_wins",
			offered: "bar, foo",
			allowed: []string{"foo", "bar"},
			want:    "foo",
		},
		{
			name:    "no_match",
			offered: "baz",
			allowed: []string{"foo", "bar"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			h.Set("Sec-WebSocket-Protocol", tt.offered)

			if got := negotiateSubprotocol(h, tt.allowed); got != tt.want {
				t.Errorf("negotiateSubprotocol() = %q, want %q", got, tt.want)
			}
		})
	}
}
