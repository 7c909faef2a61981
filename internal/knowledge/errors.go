package knowledge

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested document or domain does not exist
	// (or is not visible to the requester).
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates bad input shape, rejected before any
	// side effect.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDomainExists indicates a domain with the same name already exists
	// for this owner. Domains are never implicitly merged.
	ErrDomainExists = errors.New("domain already exists")
)

// QuotaError is returned when a reservation would exceed the user's
// monthly ceiling. It carries enough detail for the caller to act on.
type QuotaError struct {
	UserID   string
	Resource Resource
	Used     int
	Limit    int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for user %s: %s usage %d/%d this month",
		e.UserID, e.Resource, e.Used, e.Limit)
}

// DimensionError is returned when a vector's dimension does not match
// the deployment's fixed embedding dimension. This is a configuration
// error; vectors are never truncated or padded to fit.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store expects %d, got %d", e.Want, e.Got)
}
