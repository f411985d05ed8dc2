package version

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "v1.2.3"
	ua := UserAgent()
	if !strings.HasPrefix(ua, "capishare/v1.2.3 (") || !strings.HasSuffix(ua, ")") {
		t.Errorf("UserAgent() = %q", ua)
	}
}
