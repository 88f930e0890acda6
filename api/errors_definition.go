package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hushvote/hushvote/fhe"
	"github.com/hushvote/hushvote/tally"
)

// Error codes in the 40001-49999 range are the user's fault and return HTTP
// status 400, 401, 403, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault and return HTTP status 500
// or 503.
//
// Never change an existing error code, only append new ones.
var (
	ErrMalformedBody        = Error{Code: 40001, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedSignature   = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed signature")}
	ErrUnauthorized         = Error{Code: 40003, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unauthorized")}
	ErrNotInitialized       = Error{Code: 40004, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("totals not initialized")}
	ErrAlreadyInitialized   = Error{Code: 40005, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("totals already initialized")}
	ErrAlreadyRegistered    = Error{Code: 40006, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already registered")}
	ErrAlreadyVoted         = Error{Code: 40007, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already voted")}
	ErrVotingClosed         = Error{Code: 40008, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voting closed")}
	ErrInvalidArgument      = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid argument")}
	ErrInvalidCiphertext    = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid ciphertext")}
	ErrDecryptAccessDenied  = Error{Code: 40011, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("decrypt access denied")}
	ErrInvalidConfiguration = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid configuration")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)

// fromTallyError maps the contract error taxonomy to stable API errors.
func fromTallyError(err error) Error {
	switch {
	case errors.Is(err, tally.ErrUnauthorized):
		return ErrUnauthorized.WithErr(err)
	case errors.Is(err, tally.ErrNotInitialized):
		return ErrNotInitialized
	case errors.Is(err, tally.ErrAlreadyInitialized):
		return ErrAlreadyInitialized
	case errors.Is(err, tally.ErrAlreadyRegistered):
		return ErrAlreadyRegistered.WithErr(err)
	case errors.Is(err, tally.ErrAlreadyVoted):
		return ErrAlreadyVoted.WithErr(err)
	case errors.Is(err, tally.ErrVotingClosed):
		return ErrVotingClosed
	case errors.Is(err, tally.ErrInvalidArgument):
		return ErrInvalidArgument.WithErr(err)
	case errors.Is(err, tally.ErrInvalidCiphertext):
		return ErrInvalidCiphertext.WithErr(err)
	case errors.Is(err, tally.ErrInvalidConfiguration):
		return ErrInvalidConfiguration.WithErr(err)
	case errors.Is(err, fhe.ErrAccessDenied):
		return ErrDecryptAccessDenied.WithErr(err)
	}
	return ErrGenericInternalServerError.WithErr(err)
}
