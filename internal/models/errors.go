package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrVersionConflict    = errors.New("version conflict")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// ValidationError - доказательство отклонено валидатором; терминально, без повторов
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("proof artifact rejected: %s", e.Reason)
}

// TransientError - внешний сервис временно недоступен; повторяется с экспоненциальной задержкой
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient сообщает, можно ли повторить операцию
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// SubmissionError - ошибка отправки транзакции в сеть.
// Permanent означает, что повтор бессмыслен без вмешательства оператора (некорректный payload,
// нет средств у подписанта); иначе ошибка временная (сеть недоступна, мало газа).
type SubmissionError struct {
	Permanent bool
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("permanent submission error: %v", e.Err)
	}
	return fmt.Sprintf("submission error: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsPermanentSubmission сообщает, что отправка не может быть повторена автоматически
func IsPermanentSubmission(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se) && se.Permanent
}
