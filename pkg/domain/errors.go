package domain

import "fmt"

// The registry's failure taxonomy. Every failure is a deterministic
// precondition violation scoped to a single call; none mutate state.

// ErrNotFound indicates the referenced product id does not exist.
type ErrNotFound struct {
	ProductID uint64
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// ErrNotAuthorized indicates the caller is not in the authorized
// participant set.
type ErrNotAuthorized struct {
	Identity string
}

func (e ErrNotAuthorized) Error() string {
	return fmt.Sprintf("participant %q is not authorized", e.Identity)
}

// ErrUnauthorized indicates the caller is not the registry admin.
type ErrUnauthorized struct {
	Identity string
}

func (e ErrUnauthorized) Error() string {
	return fmt.Sprintf("identity %q is not the registry admin", e.Identity)
}

// ErrNotOwner indicates the caller does not hold current custody of the
// product it tried to transfer.
type ErrNotOwner struct {
	Identity  string
	ProductID uint64
	Owner     string
}

func (e ErrNotOwner) Error() string {
	return fmt.Sprintf("participant %q does not own product %d (current owner %q)", e.Identity, e.ProductID, e.Owner)
}

// ErrRecipientNotAuthorized indicates a transfer recipient is not an
// authorized participant.
type ErrRecipientNotAuthorized struct {
	Identity  string
	ProductID uint64
}

func (e ErrRecipientNotAuthorized) Error() string {
	return fmt.Sprintf("transfer recipient %q is not authorized", e.Identity)
}

// ErrSelfTransfer indicates a transfer where sender and recipient are the
// same identity.
type ErrSelfTransfer struct {
	Identity  string
	ProductID uint64
}

func (e ErrSelfTransfer) Error() string {
	return fmt.Sprintf("participant %q cannot transfer product %d to itself", e.Identity, e.ProductID)
}

// ErrAlreadyAuthorized indicates a participant was authorized twice. The
// role recorded by the first authorization is preserved.
type ErrAlreadyAuthorized struct {
	Identity string
	Role     string
}

func (e ErrAlreadyAuthorized) Error() string {
	return fmt.Sprintf("participant %q is already authorized with role %q", e.Identity, e.Role)
}

// ErrInvalidTarget indicates an authorization target with a blank identity.
type ErrInvalidTarget struct {
	Identity string
}

func (e ErrInvalidTarget) Error() string {
	return "authorization target identity is empty"
}

// ErrAlreadyInitialized indicates a history log was initialized twice for
// the same product. Unreachable through the registry service; kept as a
// defensive invariant on the history layer.
type ErrAlreadyInitialized struct {
	ProductID uint64
}

func (e ErrAlreadyInitialized) Error() string {
	return fmt.Sprintf("history for product %d is already initialized", e.ProductID)
}

// ErrChainBroken indicates the hash chain over a product history does not
// recompute, i.e. stored steps were altered out of band.
type ErrChainBroken struct {
	ProductID uint64
	Seq       uint64
}

func (e ErrChainBroken) Error() string {
	return fmt.Sprintf("history chain for product %d broken at step %d", e.ProductID, e.Seq)
}
