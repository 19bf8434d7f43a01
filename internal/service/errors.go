package service

import (
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-social/internal/repository"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrConflict is the parent of every state-conflict error.
	ErrConflict         = errors.New("conflict")
	ErrSelfReference    = fmt.Errorf("%w: cannot follow or unfollow yourself", ErrConflict)
	ErrAlreadyFollowing = fmt.Errorf("%w: already following", ErrConflict)
	ErrNotFollowing     = fmt.Errorf("%w: not following", ErrConflict)
	ErrEmailExists      = fmt.Errorf("%w: email already exists", ErrConflict)
	ErrUsernameExists   = fmt.Errorf("%w: username already exists", ErrConflict)
)

// Graph operations named in PartialGraphUpdateError.
const (
	OpFollow   = "follow"
	OpUnfollow = "unfollow"
)

// PartialGraphUpdateError reports that following(actor) was written but
// followers(target) was not. The edge has been queued for reconciliation.
type PartialGraphUpdateError struct {
	Operation string
	ActorID   string
	TargetID  string
	Err       error
}

func (e *PartialGraphUpdateError) Error() string {
	return fmt.Sprintf("partial %s update between %s and %s: %v", e.Operation, e.ActorID, e.TargetID, e.Err)
}

func (e *PartialGraphUpdateError) Unwrap() error {
	return e.Err
}

// mapRepoError translates repository sentinels into service errors.
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrPostNotFound):
		return ErrPostNotFound
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailExists
	case errors.Is(err, repository.ErrUsernameExists):
		return ErrUsernameExists
	}
	return err
}
