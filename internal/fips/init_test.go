package fips

import "testing"

func TestProxyWarning(t *testing.T) {
	tests := []struct {
		enabled bool
		mode    string
		warn    bool
	}{
		{true, "ntlm", true},
		{true, "NTLM", true},
		{true, "basic", false},
		{false, "ntlm", false},
		{true, "", false},
	}
	for _, tt := range tests {
		got := ProxyWarning(tt.enabled, tt.mode)
		if (got != "") != tt.warn {
			t.Errorf("ProxyWarning(%v, %q) = %q", tt.enabled, tt.mode, got)
		}
	}
}
