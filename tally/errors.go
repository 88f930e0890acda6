package tally

import (
	"errors"

	"github.com/hushvote/hushvote/fhe"
)

// Error taxonomy of the tally contract. Every failure is terminal for the
// attempted operation; nothing is retried internally.
var (
	// ErrInvalidConfiguration is returned on bad construction input.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnauthorized is returned when the caller fails the role check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAlreadyInitialized is returned when the encrypted totals have
	// already been initialized.
	ErrAlreadyInitialized = errors.New("totals already initialized")
	// ErrNotInitialized is returned when the encrypted totals have not been
	// initialized yet.
	ErrNotInitialized = errors.New("totals not initialized")
	// ErrAlreadyRegistered is returned when registering a voter twice.
	ErrAlreadyRegistered = errors.New("voter already registered")
	// ErrAlreadyVoted is returned on a second vote from the same voter.
	ErrAlreadyVoted = errors.New("voter already voted")
	// ErrVotingClosed is returned once the voting deadline has passed.
	ErrVotingClosed = errors.New("voting closed")
	// ErrInvalidArgument is returned on a malformed identity argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidCiphertext is the capability-layer proof rejection,
	// propagated verbatim.
	ErrInvalidCiphertext = fhe.ErrInvalidCiphertext
)
