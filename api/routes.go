package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// RoundEndpoint is the endpoint to get the round info
	RoundEndpoint = "/round"
	// InitializeEndpoint is the admin endpoint to initialize the encrypted totals
	InitializeEndpoint = "/round/initialize"
	// VotersEndpoint is the admin endpoint to register a voter
	VotersEndpoint = "/round/voters"
	// VotesEndpoint is the endpoint for submitting a vote
	VotesEndpoint = "/votes"
	// VoteAccessEndpoint is the endpoint for a voter to regain decrypt
	// access over their own vote
	VoteAccessEndpoint = "/votes/access"
	// VoteVerifyEndpoint is the endpoint to check a vote is in {0,1}
	VoteVerifyEndpoint = "/votes/verify"
	// TallyEndpoint is the endpoint to get the encrypted tally handles
	TallyEndpoint = "/tally"
	// TallyAccessEndpoint is the admin endpoint to grant tally decrypt access
	TallyAccessEndpoint = "/tally/access"
	// TallyPublicEndpoint is the admin endpoint to make the tally public
	TallyPublicEndpoint = "/tally/public"
	// TallyDecryptEndpoint is the endpoint for authorized readers to obtain
	// the plaintext sums
	TallyDecryptEndpoint = "/tally/decrypt"
	// EventsEndpoint is the endpoint to read the audit log
	EventsEndpoint = "/events"
)
