package swill

import "testing"

// TestHTTPStatusForClose covers Testable Property 14: a pre-upgrade
// CloseConnection code maps to a usable HTTP status, substituting 403 for
// anything outside the valid range, while a post-upgrade (>=1000) code is
// passed through untouched.
func TestHTTPStatusForClose(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{name: "in_range", code: 404, want: 404},
		{name: "boundary_low", code: 200, want: 200},
		{name: "boundary_high", code: 999, want: 999},
		{name: "too_low", code: 0, want: 403},
		{name: "too_low_but_positive", code: 100, want: 403},
		{name: "ws_close_code_passthrough", code: 1000, want: 1000},
		{name: "large_ws_close_code", code: 4001, want: 4001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusForClose(tt.code); got != tt.want {
				t.Errorf("HTTPStatusForClose(%d) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

// TestWSCloseCodeForClose covers the post-upgrade half of the same
// mapping: a pre-upgrade-shaped code is normalized to 1000 (the only
// generic "normal closure" constant meaningful as a WS close code),
// anything already >=1000 passes through untouched.
func TestWSCloseCodeForClose(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{name: "http_status_normalized", code: 403, want: 1000},
		{name: "zero_normalized", code: 0, want: 1000},
		{name: "ws_code_passthrough", code: 1000, want: 1000},
		{name: "ws_code_passthrough_large", code: 4500, want: 4500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wsCloseCodeForClose(tt.code); got != tt.want {
				t.Errorf("wsCloseCodeForClose(%d) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
