package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"social-pulse/internal/domain"
	"social-pulse/internal/usecase/comments"
)

// ErrorResponse описывает ошибку API.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retriable bool   `json:"retriable"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON отправляет JSON с кодом status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError отправляет JSON с ошибкой и request ID.
func WriteError(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	resp.RequestID = RequestID(r)
	WriteJSON(w, status, resp)
}

// ErrorFor переводит ошибку конвейера в HTTP-статус и тело ответа.
func ErrorFor(err error) (int, ErrorResponse) {
	if ae, ok := domain.AsActorError(err); ok {
		return statusForKind(ae.Kind), ErrorResponse{Error: ae.UserMessage, Kind: string(ae.Kind), Retriable: ae.Retriable}
	}
	switch {
	case errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrUnsupportedPlatform),
		errors.Is(err, comments.ErrUnknownMode):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: string(domain.KindValidation)}
	case errors.Is(err, domain.ErrNoPosts), errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: string(domain.KindValidation)}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: string(domain.KindUnknown)}
}

// BadRequest формирует ответ на некорректный ввод.
func BadRequest(err error) ErrorResponse {
	return ErrorResponse{Error: err.Error(), Kind: string(domain.KindValidation)}
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth, domain.KindServer:
		return http.StatusBadGateway
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
