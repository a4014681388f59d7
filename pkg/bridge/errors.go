package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrTerminated         = errors.New("socket terminated")
	ErrUnauthorizedOrigin = errors.New("unauthorized sender origin")
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrNoChannel          = errors.New("no channel registered for name")
)

type HandlerError struct {
	Channel string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("channel %q handler failed: %v", e.Channel, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// RemoteError - ошибка обработчика на другой стороне, пришедшая в ответе.
type RemoteError struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote channel %q: %s", e.Channel, e.Message)
}
