// Package fips reports whether the binary runs in FIPS 140-3 mode and flags
// settings that step outside it.
package fips

import (
	"crypto/fips140"
	"fmt"
	"os"
	"strings"
)

// EnvRequireFIPS makes Init refuse to start outside FIPS 140-3 mode.
const EnvRequireFIPS = "CAPISHARE_REQUIRE_FIPS"

// Enabled reports whether FIPS 140-3 mode is active after Init has been called.
// It is set once by Init and should be treated as read-only thereafter.
var Enabled bool

// Init records the FIPS 140-3 status. When CAPISHARE_REQUIRE_FIPS=true and
// FIPS mode is off, it prints a rebuild hint and exits with status 2.
func Init() {
	Enabled = fips140.Enabled()
	if Enabled || !strings.EqualFold(os.Getenv(EnvRequireFIPS), "true") {
		return
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "ERROR: FIPS 140-3 mode is required (%s=true) but not active.\n", EnvRequireFIPS)
	fmt.Fprintf(os.Stderr, "Rebuild with: GOFIPS140=latest go build ./cmd/capishare\n")
	fmt.Fprintf(os.Stderr, "\n")
	os.Exit(2)
}

// ProxyWarning returns a warning when FIPS mode is on and the proxy mode
// authenticates with NTLM, which uses MD4/MD5. It returns "" otherwise.
func ProxyWarning(enabled bool, proxyMode string) string {
	if !enabled || !strings.EqualFold(proxyMode, "ntlm") {
		return ""
	}
	return "NTLM proxy mode uses non-FIPS algorithms (MD4/MD5); use basic proxy mode over TLS for strict FIPS compliance"
}
