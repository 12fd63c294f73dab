package service

import (
	"errors"

	"vpn-console/devserver/internal/repository"
)

type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return e.Msg
}

type AuthError struct {
	Msg string
}

func (e AuthError) Error() string {
	return e.Msg
}

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	return e.Msg
}

func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, repository.ErrConflict)
}

func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

func IsAuth(err error) bool {
	var a AuthError
	return errors.As(err, &a)
}

func IsForbidden(err error) bool {
	var f ForbiddenError
	return errors.As(err, &f)
}
