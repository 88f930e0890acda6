package api

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hushvote/hushvote/fhe"
	"github.com/hushvote/hushvote/tally"
	"github.com/hushvote/hushvote/types"
)

// SignedRequest is the envelope of every authenticated request: the payload
// is the raw JSON the signature was computed over, so the caller principal
// can be recovered from it.
type SignedRequest struct {
	Payload   json.RawMessage `json:"payload"`
	Signature types.HexBytes  `json:"signature"`
}

// RoundInfo describes the voting round and the parameters clients need to
// encrypt their inputs.
type RoundInfo struct {
	Contract        common.Address `json:"contract"`
	Admin           common.Address `json:"admin"`
	VotingEndTime   int64          `json:"votingEndTime"`
	Initialized     bool           `json:"initialized"`
	OraclePublicKey types.HexBytes `json:"oraclePublicKey"`
}

// RegisterVoterRequest is the payload of POST /round/voters.
type RegisterVoterRequest struct {
	Voter common.Address `json:"voter"`
	Aux   types.AuxData  `json:"aux,omitempty"`
}

// CastVoteRequest is the payload of POST /votes.
type CastVoteRequest struct {
	VoteHandle   fhe.Handle    `json:"voteHandle"`
	WeightHandle fhe.Handle    `json:"weightHandle"`
	Proof        *fhe.Proof    `json:"proof"`
	Aux          types.AuxData `json:"aux,omitempty"`
}

// VoteAccessRequest is the payload of POST /votes/access and /votes/verify.
type VoteAccessRequest struct {
	VoteHandle fhe.Handle `json:"voteHandle"`
	Proof      *fhe.Proof `json:"proof"`
}

// VerifyVoteResponse carries the handle of the encrypted well-formedness
// boolean, decryptable by the requester.
type VerifyVoteResponse struct {
	ValidHandle fhe.Handle `json:"validHandle"`
}

// TallyAccessRequest is the payload of POST /tally/access.
type TallyAccessRequest struct {
	Viewer common.Address `json:"viewer"`
	Aux    types.AuxData  `json:"aux,omitempty"`
}

// EncryptedTallyResponse carries the two opaque ciphertext handles.
type EncryptedTallyResponse struct {
	TotalYesVotes fhe.Handle `json:"totalYesVotes"`
	TotalNoVotes  fhe.Handle `json:"totalNoVotes"`
}

// DecryptedTallyResponse carries the plaintext sums, for authorized readers.
type DecryptedTallyResponse struct {
	YesVotes uint64 `json:"yesVotes"`
	NoVotes  uint64 `json:"noVotes"`
}

// EventsResponse is the audit log.
type EventsResponse struct {
	Events []tally.Event `json:"events"`
}
