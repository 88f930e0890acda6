package api

import (
	"net/http"
)

// encryptedTally returns the two opaque ciphertext handles. The handles are
// not secret, only the ability to decrypt them is gated.
// GET /tally
func (a *API) encryptedTally(w http.ResponseWriter, _ *http.Request) {
	yes, no, err := a.contract.EncryptedTally()
	if err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, EncryptedTallyResponse{TotalYesVotes: yes, TotalNoVotes: no})
}

// grantTallyAccess grants a viewer decrypt permission over both totals.
// Admin-only, additive only.
// POST /tally/access
func (a *API) grantTallyAccess(w http.ResponseWriter, r *http.Request) {
	req := &TallyAccessRequest{}
	caller, ok := decodeSigned(w, r, req)
	if !ok {
		return
	}
	if err := a.contract.GrantTallyAccess(caller, req.Viewer, req.Aux); err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// makeTallyPublic marks both totals as publicly decryptable, irrevocably.
// Admin-only.
// POST /tally/public
func (a *API) makeTallyPublic(w http.ResponseWriter, r *http.Request) {
	caller, ok := decodeSigned(w, r, nil)
	if !ok {
		return
	}
	if err := a.contract.MakeTallyPublic(caller); err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// decryptTally returns the plaintext sums through the decryption oracle,
// for callers that have been granted access or once the tally is public.
// POST /tally/decrypt
func (a *API) decryptTally(w http.ResponseWriter, r *http.Request) {
	caller, ok := decodeSigned(w, r, nil)
	if !ok {
		return
	}
	yesHandle, noHandle, err := a.contract.EncryptedTally()
	if err != nil {
		fromTallyError(err).Write(w)
		return
	}
	yes, err := a.oracle.PublicDecrypt(yesHandle, caller)
	if err != nil {
		fromTallyError(err).Write(w)
		return
	}
	no, err := a.oracle.PublicDecrypt(noHandle, caller)
	if err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteJSON(w, DecryptedTallyResponse{YesVotes: yes, NoVotes: no})
}
