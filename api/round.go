package api

import (
	"net/http"
)

// roundInfo returns the round parameters and the oracle public key.
// GET /round
func (a *API) roundInfo(w http.ResponseWriter, _ *http.Request) {
	round, err := a.contract.Round()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	info := RoundInfo{
		Contract:      a.contract.Address(),
		Admin:         round.Admin,
		VotingEndTime: round.VotingEndTime,
		Initialized:   round.Initialized,
	}
	if a.oracleKey != nil {
		info.OraclePublicKey = a.oracleKey.Marshal()
	}
	httpWriteJSON(w, info)
}

// initializeTotals sets the encrypted totals to encrypted zero. Admin-only.
// POST /round/initialize
func (a *API) initializeTotals(w http.ResponseWriter, r *http.Request) {
	caller, ok := decodeSigned(w, r, nil)
	if !ok {
		return
	}
	if err := a.contract.InitializeTotals(caller); err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// registerVoter registers a voter explicitly. Admin-only.
// POST /round/voters
func (a *API) registerVoter(w http.ResponseWriter, r *http.Request) {
	req := &RegisterVoterRequest{}
	caller, ok := decodeSigned(w, r, req)
	if !ok {
		return
	}
	if err := a.contract.RegisterVoter(caller, req.Voter, req.Aux); err != nil {
		fromTallyError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// events returns the append-only audit log.
// GET /events
func (a *API) events(w http.ResponseWriter, _ *http.Request) {
	events, err := a.contract.Events()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, EventsResponse{Events: events})
}
