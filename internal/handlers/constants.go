package handlers

import "time"

const (
	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidID           = "Invalid id"
	ErrUnauthorized        = "Unauthorized"
	ErrTooManyRequests     = "Too many requests, please try again later"
	ErrInternalServerError = "Internal server error"

	maxBodyBytes       = 1 << 16
	sseHeartbeat       = 25 * time.Second
	DefaultSessionIdle = 30 * time.Minute
)
