package customHttpClient

import (
	"net"
	"net/http"
	"time"

	"github.com/akolanti/TenantRAG/internal/config"
)

// NewPooledClient returns a client whose transport keeps idle connections to the
// embedding providers. Request deadlines come from the caller's context.
func NewPooledClient(cfg config.HTTPClientConfig) *http.Client {
	return &http.Client{Transport: NewTransport(cfg)}
}

func NewTransport(cfg config.HTTPClientConfig) *http.Transport {
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = config.MaxIdleConns
	}
	perHost := cfg.MaxIdleConnsPerHost
	if perHost == 0 {
		perHost = config.MaxIdleConnsPerHost
	}
	idle := cfg.IdleConnTimeout
	if idle == 0 {
		idle = config.IdleConnTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       idle,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
