// Package api exposes the tally contract operations over HTTP. Mutating
// requests are signed; the caller principal is recovered from the signature,
// so the contract sees the same identity the ciphertexts were bound to.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.vocdoni.io/dvote/log"

	"github.com/hushvote/hushvote/crypto/ecc"
	"github.com/hushvote/hushvote/crypto/ethereum"
	"github.com/hushvote/hushvote/fhe"
	"github.com/hushvote/hushvote/tally"
)

// Config represents the configuration for the API HTTP server.
type Config struct {
	Host     string
	Port     int
	Contract *tally.Contract
	Oracle   fhe.Oracle
	// OraclePublicKey is published in the round info so clients can encrypt
	// their inputs.
	OraclePublicKey ecc.Point
}

// API is the HTTP server exposing the tally contract.
type API struct {
	router    *chi.Mux
	contract  *tally.Contract
	oracle    fhe.Oracle
	oracleKey ecc.Point
}

// New creates a new API instance and starts the HTTP server.
func New(conf *Config) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Contract == nil || conf.Oracle == nil {
		return nil, fmt.Errorf("missing contract or oracle instance")
	}
	a := &API{
		contract:  conf.Contract,
		oracle:    conf.Oracle,
		oracleKey: conf.OraclePublicKey,
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router, for testing purposes.
func (a *API) Router() *chi.Mux {
	if a.router == nil {
		a.initRouter()
	}
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", RoundEndpoint, "method", "GET")
	a.router.Get(RoundEndpoint, a.roundInfo)
	log.Infow("register handler", "endpoint", InitializeEndpoint, "method", "POST")
	a.router.Post(InitializeEndpoint, a.initializeTotals)
	log.Infow("register handler", "endpoint", VotersEndpoint, "method", "POST")
	a.router.Post(VotersEndpoint, a.registerVoter)
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.castVote)
	log.Infow("register handler", "endpoint", VoteAccessEndpoint, "method", "POST")
	a.router.Post(VoteAccessEndpoint, a.grantSelfDecryptAccess)
	log.Infow("register handler", "endpoint", VoteVerifyEndpoint, "method", "POST")
	a.router.Post(VoteVerifyEndpoint, a.verifyVoteValidity)
	log.Infow("register handler", "endpoint", TallyEndpoint, "method", "GET")
	a.router.Get(TallyEndpoint, a.encryptedTally)
	log.Infow("register handler", "endpoint", TallyAccessEndpoint, "method", "POST")
	a.router.Post(TallyAccessEndpoint, a.grantTallyAccess)
	log.Infow("register handler", "endpoint", TallyPublicEndpoint, "method", "POST")
	a.router.Post(TallyPublicEndpoint, a.makeTallyPublic)
	log.Infow("register handler", "endpoint", TallyDecryptEndpoint, "method", "POST")
	a.router.Post(TallyDecryptEndpoint, a.decryptTally)
	log.Infow("register handler", "endpoint", EventsEndpoint, "method", "GET")
	a.router.Get(EventsEndpoint, a.events)
}

// decodeSigned reads a SignedRequest from the body, recovers the caller
// principal from the signature over the raw payload bytes, and unmarshals
// the payload into dst (unless dst is nil). On failure it writes the error
// response and returns ok == false.
func decodeSigned(w http.ResponseWriter, r *http.Request, dst any) (common.Address, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return common.Address{}, false
	}
	req := &SignedRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return common.Address{}, false
	}
	if len(req.Payload) == 0 {
		ErrMalformedBody.With("missing payload").Write(w)
		return common.Address{}, false
	}
	caller, err := ethereum.AddrFromSignature(req.Payload, req.Signature)
	if err != nil {
		ErrMalformedSignature.WithErr(err).Write(w)
		return common.Address{}, false
	}
	if dst != nil {
		if err := json.Unmarshal(req.Payload, dst); err != nil {
			ErrMalformedBody.WithErr(err).Write(w)
			return common.Address{}, false
		}
	}
	return caller, true
}
