package http

import (
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.7:54321",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from trusted proxy",
			remoteAddr: "10.1.2.3:8080",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.1.2.3"},
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from untrusted peer is ignored",
			remoteAddr: "203.0.113.9:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "real-ip header from trusted proxy",
			remoteAddr: "127.0.0.1:9000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.2"},
			want:       "198.51.100.2",
		},
		{
			name:       "garbage forwarded value falls back to peer",
			remoteAddr: "192.168.1.10:443",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:       "192.168.1.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/resumen", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		flagged bool
	}{
		{name: "clean summary request", method: "GET", target: "/resumen?inicio=2026-08-01&fin=2026-08-29", flagged: false},
		{name: "clean payment post", method: "POST", target: "/pagos", flagged: false},
		{name: "path traversal", method: "GET", target: "/../../etc/passwd", flagged: true},
		{name: "scanner path", method: "GET", target: "/wp-admin/setup.php", flagged: true},
		{name: "injection in query", method: "GET", target: "/resumen?filtro=1%20union%20select%202", flagged: true},
		{name: "unusual method", method: "TRACE", target: "/resumen", flagged: true},
		{name: "oversized URL", method: "GET", target: "/resumen?filtro=" + strings.Repeat("a", maxRequestURLLen), flagged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &securityMetrics{}
			r := httptest.NewRequest(tt.method, tt.target, nil)
			reason := detectSuspiciousRequest(r, metrics)
			if got := reason != ""; got != tt.flagged {
				t.Errorf("detectSuspiciousRequest() reason = %q, flagged = %v, want %v", reason, got, tt.flagged)
			}
			want := int64(0)
			if tt.flagged {
				want = 1
			}
			if hits := atomic.LoadInt64(&metrics.suspiciousRequests); hits != want {
				t.Errorf("suspiciousRequests = %d, want %d", hits, want)
			}
		})
	}
}
