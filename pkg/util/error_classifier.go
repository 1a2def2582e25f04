package util

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aws/smithy-go"
)

// Error types reported in logs for failed dependency calls.
const (
	ErrTypeTimeout      = "timeout"
	ErrTypeCanceled     = "context_canceled"
	ErrTypeNetwork      = "network_error"
	ErrTypeThrottled    = "throttled"
	ErrTypeAccessDenied = "access_denied"
	ErrTypeNotFound     = "not_found"
	ErrTypeServer       = "server_error"
	ErrTypeClient       = "client_error"
	ErrTypeUnknown      = "unknown_error"
)

// ClassifyError 把 SDK / 网络错误归类，供日志和指标使用
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrTypeCanceled
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case strings.Contains(code, "Throttl"), code == "SlowDown", code == "RequestLimitExceeded":
			return ErrTypeThrottled
		case code == "AccessDenied", code == "AccessDeniedException", strings.HasPrefix(code, "InvalidClientTokenId"):
			return ErrTypeAccessDenied
		case code == "NoSuchBucket", code == "ParameterNotFound", strings.HasSuffix(code, "NonExistentQueue"):
			return ErrTypeNotFound
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return ErrTypeServer
		}
		return ErrTypeClient
	}

	// 网络错误
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTypeTimeout
		}
		return ErrTypeNetwork
	}

	return ErrTypeUnknown
}
