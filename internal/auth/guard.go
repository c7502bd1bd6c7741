package auth

import "errors"

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("only the organizer may modify this event")
)

type Policy int

const (
	Public Policy = iota
	AuthenticatedOnly
	OwnerOnly
)

func (p Policy) String() string {
	switch p {
	case Public:
		return "public"
	case AuthenticatedOnly:
		return "authenticated"
	case OwnerOnly:
		return "owner"
	}
	return "unknown"
}

type Operation string

const (
	OpListEvents   Operation = "events.list"
	OpGetEvent     Operation = "events.get"
	OpCreateEvent  Operation = "events.create"
	OpUpdateEvent  Operation = "events.update"
	OpDeleteEvent  Operation = "events.delete"
	OpRegister     Operation = "events.register"
	OpUnregister   Operation = "events.unregister"
	OpSignup       Operation = "users.create"
	OpObtainToken  Operation = "token.obtain"
	OpRefreshToken Operation = "token.refresh"
)

var policies = map[Operation]Policy{
	OpListEvents:   AuthenticatedOnly,
	OpGetEvent:     AuthenticatedOnly,
	OpCreateEvent:  AuthenticatedOnly, // requester becomes the organizer
	OpUpdateEvent:  OwnerOnly,
	OpDeleteEvent:  OwnerOnly,
	OpRegister:     AuthenticatedOnly,
	OpUnregister:   AuthenticatedOnly,
	OpSignup:       Public,
	OpObtainToken:  Public,
	OpRefreshToken: Public,
}

// PolicyFor returns OwnerOnly for operations it does not know.
func PolicyFor(op Operation) Policy {
	if p, ok := policies[op]; ok {
		return p
	}
	return OwnerOnly
}

// Authenticate applies only the identity half of op's policy. Handlers call
// it before loading the resource so anonymous callers get 401, never 404.
func Authenticate(op Operation, requester string) error {
	if PolicyFor(op) != Public && requester == "" {
		return ErrUnauthorized
	}
	return nil
}

// Check applies op's full policy against the resource owner.
func Check(op Operation, requester, owner string) error {
	if err := Authenticate(op, requester); err != nil {
		return err
	}
	if PolicyFor(op) == OwnerOnly && requester != owner {
		return ErrForbidden
	}
	return nil
}
