package errors

import "fmt"

var (
	ErrNotFound        = fmt.Errorf("record not found")
	ErrUserExists      = fmt.Errorf("user already exists")
	ErrInvalidPassword = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidToken    = fmt.Errorf("invalid or expired token")
	ErrUnauthenticated = fmt.Errorf("connection is not authenticated")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrSessionClosed   = fmt.Errorf("session closed")
)
