package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names. Values override the config file.
const (
	EnvAPIURL        = "CAPISHARE_API_URL"
	EnvAPIToken      = "CAPISHARE_API_TOKEN"
	EnvSessionCookie = "CAPISHARE_SESSION"
	EnvCSRFToken     = "CAPISHARE_CSRF_TOKEN"
	EnvUsername      = "CAPISHARE_USERNAME"
	EnvDownloadDir   = "CAPISHARE_DOWNLOAD_DIR"
	EnvProxyMode     = "CAPISHARE_PROXY_MODE"
	EnvProxyPassword = "CAPISHARE_PROXY_PASSWORD"
	EnvThumbWorkers  = "CAPISHARE_THUMB_CONCURRENCY"
)

// LoadDotEnv loads a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv overlays CAPISHARE_* environment variables, then command-line
// overrides (highest priority). Empty overrides are ignored.
func (c *Config) ApplyEnv(apiURLOverride string) {
	setString(&c.APIBaseURL, EnvAPIURL)
	setString(&c.APIToken, EnvAPIToken)
	setString(&c.SessionCookie, EnvSessionCookie)
	setString(&c.CSRFToken, EnvCSRFToken)
	setString(&c.Username, EnvUsername)
	setString(&c.DownloadDir, EnvDownloadDir)
	setString(&c.ProxyMode, EnvProxyMode)
	setString(&c.ProxyPassword, EnvProxyPassword)

	if v := os.Getenv(EnvThumbWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ThumbMaxConcurrent = n
		} else {
			log.Printf("[WARN] ignoring %s=%q: %v", EnvThumbWorkers, v, err)
		}
	}

	if apiURLOverride != "" {
		c.APIBaseURL = apiURLOverride
	}

	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "https://" + c.APIBaseURL
	}
	c.APIBaseURL = strings.TrimSuffix(c.APIBaseURL, "/")
	c.DownloadDir = expandHome(c.DownloadDir)
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
