package source

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// NewHTTPClient returns a client whose connections go through proxyAddr.
//
// An empty proxyAddr falls back to the environment: ALL_PROXY/NO_PROXY for
// the dialer and HTTP(S)_PROXY for the transport's Proxy hook. An explicit
// proxyAddr is the only proxy used.
func NewHTTPClient(proxyAddr string) (*http.Client, error) {
	direct := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}

	var (
		dialer  proxy.Dialer
		err     error
		httpEnv = http.ProxyFromEnvironment
	)
	if proxyAddr == "" {
		dialer = proxy.FromEnvironmentUsing(direct)
	} else {
		httpEnv = nil
		u, perr := url.Parse(proxyAddr)
		if perr != nil {
			return nil, fmt.Errorf("parse proxy address: %w", perr)
		}
		if u.Scheme == "socks" {
			u.Scheme = "socks5"
		}
		dialer, err = proxy.FromURL(u, direct)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer: %w", err)
		}
	}

	return &http.Client{
		Timeout: time.Minute,
		Transport: &http.Transport{
			Proxy:               httpEnv,
			DialContext:         dialContext(dialer),
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
