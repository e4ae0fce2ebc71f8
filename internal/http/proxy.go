package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/telegram-files/tfsync/internal/config"
	"github.com/telegram-files/tfsync/internal/constants"
)

// newTransport returns the base transport shared by the JSON and probe clients.
func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// ConfigureHTTPClient configures an HTTP client with proxy settings
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := newTransport()

	proxy, err := ProxyFunc(cfg)
	if err != nil {
		return nil, err
	}
	transport.Proxy = proxy

	client := &nethttp.Client{
		Transport: transport,
		Timeout:   constants.HTTPClientTimeout,
	}

	// NTLM needs the negotiator wrapper; a missing host already fell back to
	// direct in ProxyFunc.
	if strings.ToLower(cfg.ProxyMode) == "ntlm" && proxy != nil {
		client.Transport = ntlmssp.Negotiator{RoundTripper: transport}
	}

	return client, nil
}

// ProxyFunc returns the proxy selector for cfg, or nil for direct
// connections. It is shared by the HTTP transport and the websocket dialer.
func ProxyFunc(cfg *config.Config) (func(*nethttp.Request) (*url.URL, error), error) {
	switch mode := strings.ToLower(cfg.ProxyMode); mode {
	case "no-proxy", "":
		return nil, nil

	case "system":
		return nethttp.ProxyFromEnvironment, nil

	case "ntlm", "basic":
		// Fall back to direct if host is missing (incomplete saved config)
		if cfg.ProxyHost == "" {
			log.Warn().Str("mode", mode).Msg("proxy host is missing, falling back to no-proxy mode")
			return nil, nil
		}
		if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			log.Warn().Msg("proxy user configured but password missing, proxy auth disabled until password is set")
		}
		return proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy), nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080 // Default proxy port
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	// Only embed credentials if both user AND password are provided
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		target := *req.URL
		// Websocket schemes are matched as their HTTP equivalents
		switch target.Scheme {
		case "ws":
			target.Scheme = "http"
		case "wss":
			target.Scheme = "https"
		}
		result, err := proxyFunc(&target)
		if result == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass (direct connection)")
		} else {
			log.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by CLI to determine if interactive prompt is needed.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
