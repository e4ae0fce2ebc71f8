package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/telegram-files/tfsync/internal/config"
)

// NewClient creates the HTTP client used for file-list and download-control
// calls.
//
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - HTTP/2 with runtime toggle (DISABLE_HTTP2 env var)
//   - HTTP/2 disabled when a proxy is active unless FORCE_HTTP2=true
//
// If cfg is nil, proxy settings are read from the environment.
func NewClient(cfg *config.Config) (*nethttp.Client, error) {
	var baseClient *nethttp.Client
	var err error

	if cfg != nil {
		baseClient, err = ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		tr := newTransport()
		tr.Proxy = nethttp.ProxyFromEnvironment
		baseClient = &nethttp.Client{Transport: tr}
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// Wrapped by the NTLM negotiator; leave the transport alone
		return baseClient, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return baseClient, nil
}

// proxyActive reports whether requests will go through a proxy. Trusts the
// configured mode first and only checks env vars for "system" or no config.
func proxyActive(cfg *config.Config) bool {
	if cfg != nil {
		switch cfg.ProxyMode {
		case "no-proxy", "":
			return false
		case "system":
		default:
			return cfg.ProxyHost != ""
		}
	}
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}
