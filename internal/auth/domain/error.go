package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserExists         = errors.New("user_already_exists")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidUsername    = errors.New("invalid_username")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidFullName    = errors.New("invalid_full_name")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrWeakPassword       = errors.New("weak_password")
)
