package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/internal/metrics"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"golang.org/x/time/rate"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

// Chain runs trace injection, bearer auth and the per-IP rate limit before next.
type Chain struct {
	authToken string
	limiter   *IPRateLimiter
	logger    *logger_i.Logger
}

// NewChain builds the middleware. An empty token disables auth, which is only
// allowed outside prod.
func NewChain(cfg config.ServerConfig) *Chain {
	return &Chain{
		authToken: cfg.AuthToken,
		limiter:   NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
		logger:    logger_i.NewLogger("middleware"),
	}
}

// Wrap guards next. Requests are counted by path and status.
func (c *Chain) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		defer func() {
			metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
		}()

		re := c.processRequest(requestResponseStruct{req: r, writer: rec, logger: c.logger})
		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next.ServeHTTP(rec, re.req)
	})
}

// Trace only injects the trace id, for unauthenticated ops routes.
func (c *Chain) Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		re := injectTrace(requestResponseStruct{req: r, writer: w, logger: c.logger})
		next.ServeHTTP(w, re.req)
	})
}

func (c *Chain) processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger.Debug("New request received", "path", re.req.URL.Path)
	re = injectTrace(re)
	re = c.rateLimiter(re)
	if re.badRequest.isBadRequest {
		return re
	}
	return c.authenticate(re)
}
