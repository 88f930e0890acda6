package tally_test

import (
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/hushvote/hushvote/fhe"
	"github.com/hushvote/hushvote/fhe/client"
	"github.com/hushvote/hushvote/fhe/enclave"
	"github.com/hushvote/hushvote/tally"
	"github.com/hushvote/hushvote/types"
)

func TestMain(m *testing.M) {
	log.Init("error", "stderr", nil)
	os.Exit(m.Run())
}

var (
	contractAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	adminAddr    = common.HexToAddress("0x2000000000000000000000000000000000000002")
	voterX       = common.HexToAddress("0x3000000000000000000000000000000000000003")
	voterY       = common.HexToAddress("0x4000000000000000000000000000000000000004")
	viewerAddr   = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

// fixture wires a contract to a real enclave oracle with a manual clock.
type fixture struct {
	contract *tally.Contract
	oracle   *enclave.Enclave
	now      int64
}

func newFixture(t *testing.T, duration time.Duration) *fixture {
	c := qt.New(t)
	database := metadb.NewTest(t)
	oracle, err := enclave.New(database)
	c.Assert(err, qt.IsNil)

	f := &fixture{oracle: oracle, now: 1_700_000_000}
	contract, err := tally.New(tally.Config{
		DB:       database,
		Oracle:   oracle,
		Address:  contractAddr,
		Admin:    adminAddr,
		Duration: duration,
		Clock:    func() int64 { return f.now },
	})
	c.Assert(err, qt.IsNil)
	f.contract = contract
	return f
}

// encryptVote produces the attested handles and proof for a (vote, weight)
// pair bound to the contract and caller.
func (f *fixture) encryptVote(t *testing.T, caller common.Address, vote, weight uint64) (fhe.Handle, fhe.Handle, *fhe.Proof) {
	ctx := fhe.BoundContext{Contract: contractAddr, Caller: caller}
	handles, proof, err := client.EncryptBatch([]uint64{vote, weight}, f.oracle.PublicKey(), ctx)
	qt.Assert(t, err, qt.IsNil)
	return handles[0], handles[1], proof
}

// decryptTally grants the viewer access and decrypts both totals.
func (f *fixture) decryptTally(t *testing.T) (yes, no uint64) {
	c := qt.New(t)
	c.Assert(f.contract.GrantTallyAccess(adminAddr, viewerAddr, nil), qt.IsNil)
	yesHandle, noHandle, err := f.contract.EncryptedTally()
	c.Assert(err, qt.IsNil)
	yes, err = f.oracle.PublicDecrypt(yesHandle, viewerAddr)
	c.Assert(err, qt.IsNil)
	no, err = f.oracle.PublicDecrypt(noHandle, viewerAddr)
	c.Assert(err, qt.IsNil)
	return yes, no
}

func TestConstruct(t *testing.T) {
	c := qt.New(t)

	database := metadb.NewTest(t)
	oracle, err := enclave.New(database)
	c.Assert(err, qt.IsNil)

	// duration must be strictly positive
	for _, duration := range []time.Duration{0, -time.Second} {
		_, err := tally.New(tally.Config{
			DB:       database,
			Oracle:   oracle,
			Address:  contractAddr,
			Admin:    adminAddr,
			Duration: duration,
		})
		c.Assert(err, qt.ErrorIs, tally.ErrInvalidConfiguration)
	}

	contract, err := tally.New(tally.Config{
		DB:       database,
		Oracle:   oracle,
		Address:  contractAddr,
		Admin:    adminAddr,
		Duration: 24 * time.Hour,
	})
	c.Assert(err, qt.IsNil)

	round, err := contract.Round()
	c.Assert(err, qt.IsNil)
	c.Assert(round.Admin, qt.Equals, adminAddr)
	c.Assert(round.Initialized, qt.IsFalse)

	// a second construction over the same database must fail
	_, err = tally.New(tally.Config{
		DB:       database,
		Oracle:   oracle,
		Address:  contractAddr,
		Admin:    adminAddr,
		Duration: 24 * time.Hour,
	})
	c.Assert(err, qt.ErrorIs, tally.ErrInvalidConfiguration)

	// but reopening works
	reopened, err := tally.Open(database, oracle, contractAddr, nil)
	c.Assert(err, qt.IsNil)
	r2, err := reopened.Round()
	c.Assert(err, qt.IsNil)
	c.Assert(r2.Admin, qt.Equals, adminAddr)
}

// P1: a second InitializeTotals always fails and leaves the totals unchanged.
func TestOneShotInit(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)

	c.Assert(f.contract.InitializeTotals(voterX), qt.ErrorIs, tally.ErrUnauthorized)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	yesBefore, noBefore, err := f.contract.EncryptedTally()
	c.Assert(err, qt.IsNil)

	c.Assert(f.contract.InitializeTotals(adminAddr), qt.ErrorIs, tally.ErrAlreadyInitialized)

	yesAfter, noAfter, err := f.contract.EncryptedTally()
	c.Assert(err, qt.IsNil)
	c.Assert(yesAfter, qt.DeepEquals, yesBefore)
	c.Assert(noAfter, qt.DeepEquals, noBefore)
}

// Scenario A: a weighted yes vote accumulates into the yes total only.
func TestCastVote(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterX, 1, 5)
	c.Assert(f.contract.CastVote(voterX, voteHandle, weightHandle, proof, types.AuxData{"ballot": "prop-1"}), qt.IsNil)

	registered, err := f.contract.IsRegistered(voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(registered, qt.IsTrue)
	voted, err := f.contract.HasVoted(voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	yes, no := f.decryptTally(t)
	c.Assert(yes, qt.Equals, uint64(5))
	c.Assert(no, qt.Equals, uint64(0))
}

func TestCastVoteNo(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterX, 0, 7)
	c.Assert(f.contract.CastVote(voterX, voteHandle, weightHandle, proof, nil), qt.IsNil)

	yes, no := f.decryptTally(t)
	c.Assert(yes, qt.Equals, uint64(0))
	c.Assert(no, qt.Equals, uint64(7))
}

// P2 / Scenario B: at most one successful CastVote per voter; later attempts
// fail with ErrAlreadyVoted and leave the totals unchanged.
func TestOneVotePerVoter(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterX, 1, 5)
	c.Assert(f.contract.CastVote(voterX, voteHandle, weightHandle, proof, nil), qt.IsNil)

	yesBefore, noBefore, err := f.contract.EncryptedTally()
	c.Assert(err, qt.IsNil)

	voteHandle2, weightHandle2, proof2 := f.encryptVote(t, voterX, 1, 9)
	err = f.contract.CastVote(voterX, voteHandle2, weightHandle2, proof2, nil)
	c.Assert(err, qt.ErrorIs, tally.ErrAlreadyVoted)

	yesAfter, noAfter, err := f.contract.EncryptedTally()
	c.Assert(err, qt.IsNil)
	c.Assert(yesAfter, qt.DeepEquals, yesBefore)
	c.Assert(noAfter, qt.DeepEquals, noBefore)
}

// P3 / Scenario C: votes at or after the deadline fail with ErrVotingClosed.
func TestDeadline(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 1*time.Second)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterY, 1, 1)

	// exactly at the deadline: already closed (strictly-before gate)
	f.now += 1
	err := f.contract.CastVote(voterY, voteHandle, weightHandle, proof, nil)
	c.Assert(err, qt.ErrorIs, tally.ErrVotingClosed)

	f.now += 1
	err = f.contract.CastVote(voterY, voteHandle, weightHandle, proof, nil)
	c.Assert(err, qt.ErrorIs, tally.ErrVotingClosed)

	// the failed attempts did not register the voter either: the deadline
	// check precedes auto-registration
	registered, err := f.contract.IsRegistered(voterY)
	c.Assert(err, qt.IsNil)
	c.Assert(registered, qt.IsFalse)
}

// Scenario D: voting before InitializeTotals fails with ErrNotInitialized.
func TestVoteBeforeInit(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterX, 1, 5)
	err := f.contract.CastVote(voterX, voteHandle, weightHandle, proof, nil)
	c.Assert(err, qt.ErrorIs, tally.ErrNotInitialized)

	// the init check precedes auto-registration
	registered, err := f.contract.IsRegistered(voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(registered, qt.IsFalse)
}

// P4/P5: auto-registration persists even when the same call later fails on
// proof verification, and a corrected retry then succeeds.
func TestAutoRegistrationPersists(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	// proof bound to the wrong caller: verification must fail
	wrongCtx := fhe.BoundContext{Contract: contractAddr, Caller: voterY}
	handles, proof, err := client.EncryptBatch([]uint64{1, 5}, f.oracle.PublicKey(), wrongCtx)
	c.Assert(err, qt.IsNil)
	err = f.contract.CastVote(voterX, handles[0], handles[1], proof, nil)
	c.Assert(err, qt.ErrorIs, tally.ErrInvalidCiphertext)

	// the auto-registration side effect persisted, but no vote was recorded
	registered, err := f.contract.IsRegistered(voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(registered, qt.IsTrue)
	voted, err := f.contract.HasVoted(voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)

	// resubmitting with a fixed proof is safe since hasVoted was never set
	voteHandle, weightHandle, goodProof := f.encryptVote(t, voterX, 1, 5)
	c.Assert(f.contract.CastVote(voterX, voteHandle, weightHandle, goodProof, nil), qt.IsNil)

	yes, no := f.decryptTally(t)
	c.Assert(yes, qt.Equals, uint64(5))
	c.Assert(no, qt.Equals, uint64(0))
}

func TestRegisterVoter(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)

	c.Assert(f.contract.RegisterVoter(voterX, voterY, nil), qt.ErrorIs, tally.ErrUnauthorized)
	c.Assert(f.contract.RegisterVoter(adminAddr, common.Address{}, nil), qt.ErrorIs, tally.ErrInvalidArgument)

	c.Assert(f.contract.RegisterVoter(adminAddr, voterX, types.AuxData{"source": "census-import"}), qt.IsNil)
	registered, err := f.contract.IsRegistered(voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(registered, qt.IsTrue)

	// registered without having voted
	voted, err := f.contract.HasVoted(voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)

	err = f.contract.RegisterVoter(adminAddr, voterX, nil)
	c.Assert(err, qt.ErrorIs, tally.ErrAlreadyRegistered)
}

func TestWeightedAccumulation(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	for _, v := range []struct {
		voter        common.Address
		vote, weight uint64
	}{
		{voterX, 1, 5},
		{voterY, 0, 3},
		{viewerAddr, 1, 10},
	} {
		voteHandle, weightHandle, proof := f.encryptVote(t, v.voter, v.vote, v.weight)
		c.Assert(f.contract.CastVote(v.voter, voteHandle, weightHandle, proof, nil), qt.IsNil)
	}

	yes, no := f.decryptTally(t)
	c.Assert(yes, qt.Equals, uint64(15))
	c.Assert(no, qt.Equals, uint64(3))
}

// The 8-bit totals wrap around silently under sustained voting. This is the
// documented scale cap, not a bug.
func TestTallyWraparound(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	for _, v := range []struct {
		voter  common.Address
		weight uint64
	}{
		{voterX, 200},
		{voterY, 100},
	} {
		voteHandle, weightHandle, proof := f.encryptVote(t, v.voter, 1, v.weight)
		c.Assert(f.contract.CastVote(v.voter, voteHandle, weightHandle, proof, nil), qt.IsNil)
	}

	yes, _ := f.decryptTally(t)
	c.Assert(yes, qt.Equals, uint64(44)) // 300 mod 256
}

// Scenario E: a granted viewer decrypts the totals; everyone else is
// rejected by the oracle until the tally is made public.
func TestTallyAccess(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)

	// access control operations need initialized totals
	c.Assert(f.contract.GrantTallyAccess(adminAddr, viewerAddr, nil), qt.ErrorIs, tally.ErrNotInitialized)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterX, 1, 5)
	c.Assert(f.contract.CastVote(voterX, voteHandle, weightHandle, proof, nil), qt.IsNil)

	c.Assert(f.contract.GrantTallyAccess(voterX, viewerAddr, nil), qt.ErrorIs, tally.ErrUnauthorized)
	c.Assert(f.contract.GrantTallyAccess(adminAddr, common.Address{}, nil), qt.ErrorIs, tally.ErrInvalidArgument)
	c.Assert(f.contract.GrantTallyAccess(adminAddr, viewerAddr, nil), qt.IsNil)

	yesHandle, noHandle, err := f.contract.EncryptedTally()
	c.Assert(err, qt.IsNil)

	yes, err := f.oracle.PublicDecrypt(yesHandle, viewerAddr)
	c.Assert(err, qt.IsNil)
	c.Assert(yes, qt.Equals, uint64(5))

	// a non-granted principal is rejected by the oracle
	_, err = f.oracle.PublicDecrypt(yesHandle, voterY)
	c.Assert(err, qt.ErrorIs, fhe.ErrAccessDenied)

	c.Assert(f.contract.MakeTallyPublic(voterX), qt.ErrorIs, tally.ErrUnauthorized)
	c.Assert(f.contract.MakeTallyPublic(adminAddr), qt.IsNil)

	no, err := f.oracle.PublicDecrypt(noHandle, voterY)
	c.Assert(err, qt.IsNil)
	c.Assert(no, qt.Equals, uint64(0))
}

func TestGrantSelfDecryptAccess(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterX, 1, 5)

	// unregistered callers are rejected
	err := f.contract.GrantSelfDecryptAccess(voterX, voteHandle, proof)
	c.Assert(err, qt.ErrorIs, tally.ErrUnauthorized)

	c.Assert(f.contract.CastVote(voterX, voteHandle, weightHandle, proof, nil), qt.IsNil)
	c.Assert(f.contract.GrantSelfDecryptAccess(voterX, voteHandle, proof), qt.IsNil)

	vote, err := f.oracle.PublicDecrypt(voteHandle, voterX)
	c.Assert(err, qt.IsNil)
	c.Assert(vote, qt.Equals, uint64(1))

	// the grant is for the voter alone
	_, err = f.oracle.PublicDecrypt(voteHandle, voterY)
	c.Assert(err, qt.ErrorIs, fhe.ErrAccessDenied)
}

func TestVerifyVoteValidity(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)

	for _, tc := range []struct {
		vote uint64
		want uint64
	}{
		{0, 1},
		{1, 1},
		{5, 0}, // well-formed ciphertext, but not a {0,1} vote
	} {
		ctx := fhe.BoundContext{Contract: contractAddr, Caller: voterX}
		voteHandle, input, err := client.Encrypt(tc.vote, f.oracle.PublicKey(), ctx)
		c.Assert(err, qt.IsNil)
		proof := &fhe.Proof{Inputs: []fhe.ProofInput{input}}

		validHandle, err := f.contract.VerifyVoteValidity(voterX, voteHandle, proof)
		c.Assert(err, qt.IsNil)

		valid, err := f.oracle.PublicDecrypt(validHandle, voterX)
		c.Assert(err, qt.IsNil)
		c.Assert(valid, qt.Equals, tc.want, qt.Commentf("vote=%d", tc.vote))
	}
}

func TestAuditEvents(t *testing.T) {
	c := qt.New(t)
	f := newFixture(t, 24*time.Hour)
	c.Assert(f.contract.InitializeTotals(adminAddr), qt.IsNil)

	c.Assert(f.contract.RegisterVoter(adminAddr, voterY, types.AuxData{"source": "manual"}), qt.IsNil)

	voteHandle, weightHandle, proof := f.encryptVote(t, voterX, 1, 5)
	c.Assert(f.contract.CastVote(voterX, voteHandle, weightHandle, proof, types.AuxData{"ballot": "prop-1"}), qt.IsNil)

	c.Assert(f.contract.GrantTallyAccess(adminAddr, viewerAddr, nil), qt.IsNil)

	events, err := f.contract.Events()
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 4)

	c.Assert(events[0].Type, qt.Equals, tally.EventVoterRegistered)
	c.Assert(events[0].Principal, qt.Equals, voterY)
	c.Assert(events[0].Aux, qt.DeepEquals, types.AuxData{"source": "manual"})

	// auto-registration emits before the vote itself
	c.Assert(events[1].Type, qt.Equals, tally.EventVoterRegistered)
	c.Assert(events[1].Principal, qt.Equals, voterX)
	c.Assert(events[2].Type, qt.Equals, tally.EventVoteCast)
	c.Assert(events[2].Principal, qt.Equals, voterX)
	c.Assert(events[2].Aux, qt.DeepEquals, types.AuxData{"ballot": "prop-1"})

	c.Assert(events[3].Type, qt.Equals, tally.EventTallyAccessGranted)
	c.Assert(events[3].Principal, qt.Equals, viewerAddr)

	// sequence numbers are strictly increasing with unique ids
	seen := map[string]bool{}
	for i, event := range events {
		c.Assert(event.Seq, qt.Equals, uint64(i))
		c.Assert(seen[event.ID], qt.IsFalse)
		seen[event.ID] = true
	}
}
