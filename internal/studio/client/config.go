package client

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/mixdeskhq/mixdesk/internal/util"
)

const (
	// DefaultComposerURL is the composer's development address.
	DefaultComposerURL = "http://localhost:8000"
	// DefaultTunnelBypassHeader skips the interstitial page ngrok puts in
	// front of tunneled dev deployments.
	DefaultTunnelBypassHeader = "ngrok-skip-browser-warning"
	DefaultTunnelBypassValue  = "true"
	// DefaultRequestTimeout bounds each composer request at the client level.
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the information needed to reach the composer service.
type Config struct {
	Service Service `json:"service"`

	// TunnelBypassHeader is added to every composer request. An empty
	// name disables it.
	TunnelBypassHeader string `json:"tunnel-bypass-header,omitempty" envconfig:"MIXDESK_TUNNEL_BYPASS_HEADER"`
	TunnelBypassValue  string `json:"tunnel-bypass-value,omitempty" envconfig:"MIXDESK_TUNNEL_BYPASS_VALUE"`

	// RequestTimeout is the transport-level bound on a single composer
	// request. The controller imposes no cap on total job duration.
	RequestTimeout util.Duration `json:"request-timeout,omitempty" envconfig:"MIXDESK_REQUEST_TIMEOUT"`
}

// Service contains information on how to connect to the composer.
type Service struct {
	// Server is the base URL of the composer (the part before /generate
	// and /status). It is also prefixed to relative artifact references.
	Server string `json:"server" envconfig:"MIXDESK_COMPOSER_URL"`
}

func NewDefault() *Config {
	return &Config{
		Service:            Service{Server: DefaultComposerURL},
		TunnelBypassHeader: DefaultTunnelBypassHeader,
		TunnelBypassValue:  DefaultTunnelBypassValue,
		RequestTimeout:     util.Duration{Duration: DefaultRequestTimeout},
	}
}

func (c *Config) Validate() error {
	if len(c.Service.Server) == 0 {
		return fmt.Errorf("no composer server configured")
	}
	u, err := url.Parse(c.Service.Server)
	if err != nil {
		return fmt.Errorf("invalid composer url %q: %w", c.Service.Server, err)
	}
	if len(u.Hostname()) == 0 {
		return fmt.Errorf("invalid composer url %q: no hostname", c.Service.Server)
	}
	if c.RequestTimeout.Duration < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}
	return nil
}

// NewHTTPClientFromConfig returns a new HTTP client from the given config.
func NewHTTPClientFromConfig(config *Config) (*http.Client, error) {
	httpClient := &http.Client{
		Timeout: config.RequestTimeout.Duration,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     false,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	return httpClient, nil
}
