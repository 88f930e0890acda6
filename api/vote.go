package api

import (
	"net/http"
)

// castVote submits an encrypted weighted vote.
// POST /votes
func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	req := &CastVoteRequest{}
	caller, ok := decodeSigned(w, r, req)
	if !ok {
		return
	}
	if len(req.VoteHandle) == 0 || len(req.WeightHandle) == 0 {
		ErrMalformedBody.With("missing vote or weight handle").Write(w)
		return
	}
	if err := a.contract.CastVote(caller, req.VoteHandle, req.WeightHandle, req.Proof, req.Aux); err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// grantSelfDecryptAccess lets a registered voter regain decrypt access over
// their own submitted vote.
// POST /votes/access
func (a *API) grantSelfDecryptAccess(w http.ResponseWriter, r *http.Request) {
	req := &VoteAccessRequest{}
	caller, ok := decodeSigned(w, r, req)
	if !ok {
		return
	}
	if err := a.contract.GrantSelfDecryptAccess(caller, req.VoteHandle, req.Proof); err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// verifyVoteValidity checks a vote ciphertext encodes a {0,1} value and
// grants the caller decrypt access over the encrypted result.
// POST /votes/verify
func (a *API) verifyVoteValidity(w http.ResponseWriter, r *http.Request) {
	req := &VoteAccessRequest{}
	caller, ok := decodeSigned(w, r, req)
	if !ok {
		return
	}
	validHandle, err := a.contract.VerifyVoteValidity(caller, req.VoteHandle, req.Proof)
	if err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, VerifyVoteResponse{ValidHandle: validHandle})
}
