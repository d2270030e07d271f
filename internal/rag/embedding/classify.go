package embedding

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusError lets providers without a typed error report the HTTP status they saw.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.StatusCode)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Classify maps a provider failure onto an embedding.* code. Errors that already carry a code are kept.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors_i.CodeOf(err) != "" {
		return err
	}

	code := classifyCode(err)
	return errors_i.Wrap(err, code, "embedding provider call failed")
}

func classifyCode(err error) errors_i.Code {
	if status := httpStatus(err); status != 0 {
		return codeForHTTPStatus(status)
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.PermissionDenied, codes.Unauthenticated:
			return errors_i.CodeEmbeddingInvalidCredentials
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return errors_i.CodeEmbeddingServiceUnavailable
		case codes.InvalidArgument, codes.OutOfRange:
			return errors_i.CodeValidationInvalidInput
		}
		return errors_i.CodeEmbeddingProviderError
	}

	// a per-call timeout is transient, a cancelled caller is not
	if errors.Is(err, context.DeadlineExceeded) {
		return errors_i.CodeEmbeddingServiceUnavailable
	}
	if errors.Is(err, context.Canceled) {
		return errors_i.CodeEmbeddingProviderError
	}

	// connection dropped mid-response
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return errors_i.CodeEmbeddingServiceUnavailable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return errors_i.CodeEmbeddingServiceUnavailable
		}
		return errors_i.CodeEmbeddingProviderError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors_i.CodeEmbeddingServiceUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors_i.CodeEmbeddingServiceUnavailable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return errors_i.CodeEmbeddingServiceUnavailable
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "api key"):
		return errors_i.CodeEmbeddingInvalidCredentials
	}
	return errors_i.CodeEmbeddingProviderError
}

func httpStatus(err error) int {
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.StatusCode
	}
	return 0
}

func codeForHTTPStatus(status int) errors_i.Code {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors_i.CodeEmbeddingInvalidCredentials
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return errors_i.CodeEmbeddingServiceUnavailable
	case status >= 400:
		return errors_i.CodeValidationInvalidInput
	}
	return errors_i.CodeEmbeddingMalformedResponse
}
