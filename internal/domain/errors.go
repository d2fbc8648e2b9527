package domain

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует сбой вызова актора.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindServer      ErrorKind = "server"
	KindValidation  ErrorKind = "validation"
	KindUnknown     ErrorKind = "unknown"
)

var kindMessages = map[ErrorKind]string{
	KindAuth:        "Недействительный или просроченный токен Apify. Проверьте APIFY_TOKEN.",
	KindRateLimited: "Превышен лимит запросов Apify. Подождите немного и повторите.",
	KindTimeout:     "Запрос выполнялся слишком долго. Уменьшите число постов или период.",
	KindServer:      "Apify временно недоступен. Повторите через несколько минут.",
	KindValidation:  "Актор завершился без результатов. Проверьте ссылку и параметры.",
	KindUnknown:     "Не удалось получить данные. Попробуйте ещё раз.",
}

// Retriable сообщает, повторяется ли сбой этого вида автоматически.
func (k ErrorKind) Retriable() bool {
	switch k {
	case KindRateLimited, KindServer, KindTimeout:
		return true
	}
	return false
}

// UserMessage возвращает текст для пользователя по виду ошибки.
func (k ErrorKind) UserMessage() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[KindUnknown]
}

// ActorError — типизированная ошибка на границе клиента акторов.
type ActorError struct {
	Kind        ErrorKind `json:"kind"`
	UserMessage string    `json:"user_message"`
	Retriable   bool      `json:"retriable"`
	Detail      string    `json:"detail,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	Err         error     `json:"-"`
}

// NewActorError создаёт ошибку с сообщением и признаком повтора по умолчанию для вида.
func NewActorError(kind ErrorKind, detail string, cause error) *ActorError {
	return &ActorError{
		Kind:        kind,
		UserMessage: kind.UserMessage(),
		Retriable:   kind.Retriable(),
		Detail:      detail,
		Err:         cause,
	}
}

func (e *ActorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("apify %s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("apify %s: %s", e.Kind, e.Detail)
}

func (e *ActorError) Unwrap() error { return e.Err }

// AsActorError извлекает ActorError из цепочки ошибок.
func AsActorError(err error) (*ActorError, bool) {
	var ae *ActorError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ErrorKindOf возвращает вид ошибки; ошибки вне клиента акторов считаются unknown.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if ae, ok := AsActorError(err); ok {
		return ae.Kind
	}
	return KindUnknown
}

var (
	// ErrInvalidTarget — ссылка не подходит ни одной платформе или выбранной платформе.
	ErrInvalidTarget = errors.New("некорректная ссылка на профиль")
	// ErrUnsupportedPlatform — для платформы нет адаптера.
	ErrUnsupportedPlatform = errors.New("платформа не поддерживается")
	// ErrNoPosts — актор вернул записи, но ни одна не прошла нормализацию.
	ErrNoPosts = errors.New("посты не найдены")
	// ErrRunNotFound — запуска с таким идентификатором нет.
	ErrRunNotFound = errors.New("запуск не найден")
	// ErrCacheMiss — ключа нет в кэше.
	ErrCacheMiss = errors.New("cache: miss")
)
