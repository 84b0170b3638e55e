package service

import "errors"

var (
	// ErrValidation запрос не прошел проверку, ничего не сохранено
	ErrValidation = errors.New("validation failed")

	// ErrForbidden действие над чужим сообщением
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound сообщение не существует
	ErrNotFound = errors.New("message not found")
)
