package customHttpClient

import (
	"net/http"
	"testing"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewTransport_Defaults(t *testing.T) {
	tr := NewTransport(config.HTTPClientConfig{})
	assert.Equal(t, config.MaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, config.MaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, config.IdleConnTimeout, tr.IdleConnTimeout)
}

func TestNewPooledClient_UsesConfig(t *testing.T) {
	c := NewPooledClient(config.HTTPClientConfig{MaxIdleConns: 7, MaxIdleConnsPerHost: 3})
	tr, ok := c.Transport.(*http.Transport)
	if assert.True(t, ok) {
		assert.Equal(t, 7, tr.MaxIdleConns)
		assert.Equal(t, 3, tr.MaxIdleConnsPerHost)
	}
}
