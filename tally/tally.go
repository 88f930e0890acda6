// Package tally implements the confidential tally contract: an
// authorization-gated state machine that tracks voter registration, enforces
// one vote per voter and a voting deadline, accumulates two homomorphically
// encrypted running totals and exposes controlled decryption-access grants.
//
// Encrypted values are consumed exclusively through the fhe capability
// interface; no plaintext ever materializes at this layer. State-mutating
// operations are applied atomically and serially, matching a
// ledger-of-transactions execution model.
package tally

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
	"go.vocdoni.io/dvote/log"

	"github.com/hushvote/hushvote/fhe"
	"github.com/hushvote/hushvote/types"
)

var (
	roundPrefix = []byte("r/")
	voterPrefix = []byte("v/")
	eventPrefix = []byte("e/")

	roundKey    = []byte("round")
	eventSeqKey = []byte("eventSeq")
)

// Round is the singleton state of a voting round. Admin and VotingEndTime
// are immutable after construction; Initialized is a one-way transition.
type Round struct {
	Admin         common.Address `json:"admin"`
	VotingEndTime int64          `json:"votingEndTime"`
	Initialized   bool           `json:"initialized"`
	TotalYes      fhe.Handle     `json:"totalYes,omitempty"`
	TotalNo       fhe.Handle     `json:"totalNo,omitempty"`
}

// VoterStatus is the registry record of a principal. Both flags are
// monotonic: once true, never reset.
type VoterStatus struct {
	IsRegistered bool `json:"isRegistered"`
	HasVoted     bool `json:"hasVoted"`
}

// Config carries the collaborators and parameters of a new Contract.
type Config struct {
	DB      db.Database
	Oracle  fhe.Oracle
	Address common.Address // principal of the contract itself, bound at encryption time
	Admin   common.Address
	// Duration is the voting window, measured from construction time.
	Duration time.Duration
	// Clock returns the current unix time. Defaults to time.Now().Unix.
	Clock func() int64
}

// Contract is the confidential tally state machine.
type Contract struct {
	db      db.Database
	oracle  fhe.Oracle
	address common.Address
	now     func() int64
	lock    sync.Mutex
}

// New constructs a new voting round. The duration must be strictly positive
// and the admin principal non-zero. It fails if a round already exists in
// the database.
func New(cfg Config) (*Contract, error) {
	if cfg.DB == nil || cfg.Oracle == nil {
		return nil, fmt.Errorf("%w: missing database or oracle", ErrInvalidConfiguration)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be strictly positive", ErrInvalidConfiguration)
	}
	if cfg.Admin == (common.Address{}) {
		return nil, fmt.Errorf("%w: missing admin principal", ErrInvalidConfiguration)
	}
	c := &Contract{
		db:      cfg.DB,
		oracle:  cfg.Oracle,
		address: cfg.Address,
		now:     cfg.Clock,
	}
	if c.now == nil {
		c.now = func() int64 { return time.Now().Unix() }
	}
	if _, err := c.loadRound(); err == nil {
		return nil, fmt.Errorf("%w: a round is already constructed in this database", ErrInvalidConfiguration)
	}
	round := &Round{
		Admin:         cfg.Admin,
		VotingEndTime: c.now() + int64(cfg.Duration/time.Second),
	}
	tx := c.db.WriteTx()
	if err := c.saveRound(tx, round); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Infow("voting round constructed",
		"admin", round.Admin.Hex(),
		"votingEndTime", round.VotingEndTime,
	)
	return c, nil
}

// Open loads an already constructed round from the database.
func Open(database db.Database, oracle fhe.Oracle, address common.Address, clock func() int64) (*Contract, error) {
	c := &Contract{db: database, oracle: oracle, address: address, now: clock}
	if c.now == nil {
		c.now = func() int64 { return time.Now().Unix() }
	}
	if _, err := c.loadRound(); err != nil {
		return nil, fmt.Errorf("no round constructed: %w", err)
	}
	return c, nil
}

// InitializeTotals sets both encrypted totals to encrypted zero and flips
// the initialized flag. Admin-only, must be called exactly once.
func (c *Contract) InitializeTotals(caller common.Address) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	round, err := c.loadRound()
	if err != nil {
		return err
	}
	if round.Initialized {
		return ErrAlreadyInitialized
	}
	yes, err := c.oracle.EncryptConst(0)
	if err != nil {
		return fmt.Errorf("failed to encrypt zero total: %w", err)
	}
	no, err := c.oracle.EncryptConst(0)
	if err != nil {
		return fmt.Errorf("failed to encrypt zero total: %w", err)
	}
	round.TotalYes = yes.Handle()
	round.TotalNo = no.Handle()
	round.Initialized = true
	tx := c.db.WriteTx()
	if err := c.saveRound(tx, round); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	// retain our own compute rights over the totals
	if err := yes.Allow(c.address); err != nil {
		return err
	}
	if err := no.Allow(c.address); err != nil {
		return err
	}
	log.Infow("encrypted totals initialized", "admin", caller.Hex())
	return nil
}

// RegisterVoter registers a voter explicitly. Admin-only.
func (c *Contract) RegisterVoter(caller, voter common.Address, aux types.AuxData) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	if voter == (common.Address{}) {
		return fmt.Errorf("%w: empty voter identity", ErrInvalidArgument)
	}
	status, err := c.voterStatus(voter)
	if err != nil {
		return err
	}
	if status.IsRegistered {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, voter)
	}
	tx := c.db.WriteTx()
	if err := c.writeVoterStatus(tx, voter, VoterStatus{IsRegistered: true, HasVoted: status.HasVoted}); err != nil {
		return err
	}
	if err := c.appendEvent(tx, EventVoterRegistered, voter, aux); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debugw("voter registered", "voter", voter.Hex())
	return nil
}

// CastVote is the core transition: it verifies the attested encrypted vote
// and weight, homomorphically accumulates them into the running totals and
// marks the caller as having voted.
//
// Preconditions are checked in a fixed, guaranteed order: initialization,
// deadline, auto-registration (a side-effecting step, not a failure), then
// the one-shot vote check. Auto-registration commits on its own, so it
// persists even if the proof verification afterwards fails.
func (c *Contract) CastVote(caller common.Address, voteHandle, weightHandle fhe.Handle, proof *fhe.Proof, aux types.AuxData) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	round, err := c.loadRound()
	if err != nil {
		return err
	}
	// 1. totals must be initialized
	if !round.Initialized {
		return ErrNotInitialized
	}
	// 2. strictly before the deadline
	if c.now() >= round.VotingEndTime {
		return ErrVotingClosed
	}
	// 3. auto-register first-time voters
	status, err := c.voterStatus(caller)
	if err != nil {
		return err
	}
	if !status.IsRegistered {
		tx := c.db.WriteTx()
		if err := c.writeVoterStatus(tx, caller, VoterStatus{IsRegistered: true, HasVoted: status.HasVoted}); err != nil {
			return err
		}
		if err := c.appendEvent(tx, EventVoterRegistered, caller, aux); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		status.IsRegistered = true
		log.Debugw("voter auto-registered", "voter", caller.Hex())
	}
	// 4. one vote per voter
	if status.HasVoted {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, caller)
	}
	// decode both attested inputs; failures propagate ErrInvalidCiphertext
	ctx := fhe.BoundContext{Contract: c.address, Caller: caller}
	vote, err := c.oracle.VerifyAndDecode(voteHandle, proof, ctx)
	if err != nil {
		return err
	}
	weight, err := c.oracle.VerifyAndDecode(weightHandle, proof, ctx)
	if err != nil {
		return err
	}
	// yesIncrement = vote * weight
	// noIncrement  = (1 - vote) * weight
	// vote is assumed constrained to {0,1} by the ciphertext width; see
	// VerifyVoteValidity for the opt-in well-formedness check.
	one, err := c.oracle.EncryptConst(1)
	if err != nil {
		return err
	}
	yesInc, err := vote.Mul(weight)
	if err != nil {
		return err
	}
	inverted, err := one.Sub(vote)
	if err != nil {
		return err
	}
	noInc, err := inverted.Mul(weight)
	if err != nil {
		return err
	}
	// accumulate with wraparound semantics; no overflow check by design
	newYes, err := fhe.NewEncryptedValue(c.oracle, round.TotalYes).Add(yesInc)
	if err != nil {
		return err
	}
	newNo, err := fhe.NewEncryptedValue(c.oracle, round.TotalNo).Add(noInc)
	if err != nil {
		return err
	}
	round.TotalYes = newYes.Handle()
	round.TotalNo = newNo.Handle()
	tx := c.db.WriteTx()
	if err := c.saveRound(tx, round); err != nil {
		return err
	}
	if err := c.writeVoterStatus(tx, caller, VoterStatus{IsRegistered: true, HasVoted: true}); err != nil {
		return err
	}
	if err := c.appendEvent(tx, EventVoteCast, caller, aux); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	// capability bookkeeping: retain compute rights over the new totals
	if err := newYes.Allow(c.address); err != nil {
		return err
	}
	if err := newNo.Allow(c.address); err != nil {
		return err
	}
	log.Infow("vote cast", "voter", caller.Hex())
	return nil
}

// GrantTallyAccess grants the viewer decrypt permission over both totals.
// Admin-only, additive only; there is no revoke.
func (c *Contract) GrantTallyAccess(caller, viewer common.Address, aux types.AuxData) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	if viewer == (common.Address{}) {
		return fmt.Errorf("%w: empty viewer identity", ErrInvalidArgument)
	}
	round, err := c.loadRound()
	if err != nil {
		return err
	}
	if !round.Initialized {
		return ErrNotInitialized
	}
	if err := c.oracle.GrantAccess(fhe.NewEncryptedValue(c.oracle, round.TotalYes), viewer); err != nil {
		return err
	}
	if err := c.oracle.GrantAccess(fhe.NewEncryptedValue(c.oracle, round.TotalNo), viewer); err != nil {
		return err
	}
	tx := c.db.WriteTx()
	if err := c.appendEvent(tx, EventTallyAccessGranted, viewer, aux); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Infow("tally access granted", "viewer", viewer.Hex())
	return nil
}

// MakeTallyPublic marks both totals as publicly decryptable, irrevocably.
// Admin-only.
func (c *Contract) MakeTallyPublic(caller common.Address) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	round, err := c.loadRound()
	if err != nil {
		return err
	}
	if !round.Initialized {
		return ErrNotInitialized
	}
	if err := c.oracle.MakePublic(fhe.NewEncryptedValue(c.oracle, round.TotalYes)); err != nil {
		return err
	}
	if err := c.oracle.MakePublic(fhe.NewEncryptedValue(c.oracle, round.TotalNo)); err != nil {
		return err
	}
	log.Infow("tally made public")
	return nil
}

// EncryptedTally returns the two opaque ciphertext handles of the running
// totals. Callable by anyone; handles are not secret, only the ability to
// decrypt them is gated.
func (c *Contract) EncryptedTally() (yes, no fhe.Handle, err error) {
	round, err := c.loadRound()
	if err != nil {
		return nil, nil, err
	}
	if !round.Initialized {
		return nil, nil, ErrNotInitialized
	}
	return round.TotalYes, round.TotalNo, nil
}

// GrantSelfDecryptAccess re-verifies the caller's own submitted ciphertext
// and grants them decrypt access to it, so a voter can later inspect their
// vote without exposing it to others. The caller must be registered.
func (c *Contract) GrantSelfDecryptAccess(caller common.Address, voteHandle fhe.Handle, proof *fhe.Proof) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.authorize(caller, RoleVoter); err != nil {
		return err
	}
	vote, err := c.oracle.VerifyAndDecode(voteHandle, proof, fhe.BoundContext{Contract: c.address, Caller: caller})
	if err != nil {
		return err
	}
	return vote.Allow(caller)
}

// VerifyVoteValidity homomorphically checks that the attested vote is in
// {0,1} and grants the caller decrypt access to the resulting encrypted
// boolean. Stateless, callable by anyone.
func (c *Contract) VerifyVoteValidity(caller common.Address, voteHandle fhe.Handle, proof *fhe.Proof) (fhe.Handle, error) {
	vote, err := c.oracle.VerifyAndDecode(voteHandle, proof, fhe.BoundContext{Contract: c.address, Caller: caller})
	if err != nil {
		return nil, err
	}
	zero, err := c.oracle.EncryptConst(0)
	if err != nil {
		return nil, err
	}
	one, err := c.oracle.EncryptConst(1)
	if err != nil {
		return nil, err
	}
	isZero, err := vote.Eq(zero)
	if err != nil {
		return nil, err
	}
	isOne, err := vote.Eq(one)
	if err != nil {
		return nil, err
	}
	valid, err := isZero.Or(isOne)
	if err != nil {
		return nil, err
	}
	if err := valid.Allow(caller); err != nil {
		return nil, err
	}
	return valid.Handle(), nil
}

// Round returns a copy of the current round state.
func (c *Contract) Round() (*Round, error) {
	return c.loadRound()
}

// Address returns the contract principal, the one ciphertexts must be bound
// to at encryption time.
func (c *Contract) Address() common.Address {
	return c.address
}

// IsRegistered reports whether the principal is a registered voter.
func (c *Contract) IsRegistered(voter common.Address) (bool, error) {
	status, err := c.voterStatus(voter)
	if err != nil {
		return false, err
	}
	return status.IsRegistered, nil
}

// HasVoted reports whether the principal has cast a vote.
func (c *Contract) HasVoted(voter common.Address) (bool, error) {
	status, err := c.voterStatus(voter)
	if err != nil {
		return false, err
	}
	return status.HasVoted, nil
}

func (c *Contract) loadRound() (*Round, error) {
	rTx := prefixeddb.NewPrefixedReader(c.db, roundPrefix)
	data, err := rTx.Get(roundKey)
	if err != nil {
		return nil, err
	}
	round := &Round{}
	if err := json.Unmarshal(data, round); err != nil {
		return nil, err
	}
	return round, nil
}

func (c *Contract) saveRound(tx db.WriteTx, round *Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(tx, roundPrefix)
	return wTx.Set(roundKey, data)
}

func (c *Contract) voterStatus(voter common.Address) (VoterStatus, error) {
	rTx := prefixeddb.NewPrefixedReader(c.db, voterPrefix)
	data, err := rTx.Get(voter.Bytes())
	switch err {
	case nil:
	case db.ErrKeyNotFound:
		return VoterStatus{}, nil
	default:
		return VoterStatus{}, err
	}
	var status VoterStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return VoterStatus{}, err
	}
	return status, nil
}

// writeVoterStatus is the single mutator of the voter registry. It asserts
// the monotonicity invariant: a flag that is true can never be unset.
func (c *Contract) writeVoterStatus(tx db.WriteTx, voter common.Address, next VoterStatus) error {
	prev, err := c.voterStatus(voter)
	if err != nil {
		return err
	}
	if (prev.IsRegistered && !next.IsRegistered) || (prev.HasVoted && !next.HasVoted) {
		panic(fmt.Sprintf("monotonic voter flag unset for %s: %+v -> %+v", voter, prev, next))
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(tx, voterPrefix)
	return wTx.Set(voter.Bytes(), data)
}
