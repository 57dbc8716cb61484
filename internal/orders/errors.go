package orders

import "github.com/pkg/errors"

var (
	ErrValidation      = errors.New("invalid request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already hired")
	ErrExternalService = errors.New("external service failed")
	ErrSignature       = errors.New("webhook signature verification failed")
)

func invalid(msg string) error {
	return errors.WithMessage(ErrValidation, msg)
}

func notFound(what, id string) error {
	return errors.WithMessagef(ErrNotFound, "%s %s", what, id)
}
