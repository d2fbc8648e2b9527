package apify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"social-pulse/internal/domain"
)

const maxDetailLen = 300

// classifyStatus переводит HTTP-ответ с ошибкой в ActorError.
func classifyStatus(status int, body []byte) *domain.ActorError {
	var kind domain.ErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = domain.KindAuth
	case status == http.StatusTooManyRequests:
		kind = domain.KindRateLimited
	case status >= 500:
		kind = domain.KindServer
	default:
		kind = domain.KindUnknown
	}
	ae := domain.NewActorError(kind, statusDetail(status, body), nil)
	ae.StatusCode = status
	return ae
}

func statusDetail(status int, body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		if apiErr.Error.Type != "" {
			return fmt.Sprintf("%s: %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return apiErr.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(status)
	}
	if len(text) > maxDetailLen {
		text = text[:maxDetailLen]
	}
	return text
}

// classifyTransport переводит ошибку транспорта в ActorError.
// Исчерпанный общий дедлайн даёт неповторяемый timeout.
func classifyTransport(ctx context.Context, err error) *domain.ActorError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewActorError(domain.KindTimeout, "transport timeout: "+err.Error(), err)
	}
	return domain.NewActorError(domain.KindServer, "connection failure: "+err.Error(), err)
}

func contextError(err error) *domain.ActorError {
	if errors.Is(err, context.DeadlineExceeded) {
		ae := domain.NewActorError(domain.KindTimeout, "deadline exceeded", err)
		ae.Retriable = false
		return ae
	}
	ae := domain.NewActorError(domain.KindUnknown, "request canceled", err)
	ae.Retriable = false
	return ae
}

// toActorError гарантирует, что наружу уходит только ActorError.
func toActorError(ctx context.Context, err error) *domain.ActorError {
	if ae, ok := domain.AsActorError(err); ok {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contextError(err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}
	return domain.NewActorError(domain.KindUnknown, err.Error(), err)
}
