package session

import "errors"

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrDuplicateMessage = errors.New("message repeats the previous one")
	ErrSendInFlight     = errors.New("a message is already being sent")
	ErrNoActiveChat     = errors.New("no active chat")
	ErrEmptyChat        = errors.New("chat has no messages to save")
	ErrNameRequired     = errors.New("a name is required")
	ErrSaveInFlight     = errors.New("a save is already in progress")
	ErrDeleteInFlight   = errors.New("a delete is already in progress")
	ErrChatNotFound     = errors.New("chat not found")
	ErrUnknownCommand   = errors.New("unknown command")
)
