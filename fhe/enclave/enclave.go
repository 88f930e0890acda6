// Package enclave implements the fhe.Oracle capability as a trusted
// decryption service, in the style of a threshold-decryption coprocessor.
// Client values are exponential ElGamal ciphertexts over BabyJubJub,
// encrypted under the enclave keypair. The 8-bit plaintext domain keeps
// discrete-log decryption exact and cheap, and every homomorphic result is
// renormalized into the domain so arithmetic wraps around like an unsigned
// 8-bit integer. Ciphertexts, the access-control list and the keypair are
// persisted in a prefixed key-value store.
package enclave

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/hushvote/hushvote/crypto/ecc"
	"github.com/hushvote/hushvote/crypto/ecc/bjj"
	"github.com/hushvote/hushvote/crypto/elgamal"
	"github.com/hushvote/hushvote/fhe"
)

var (
	keyPrefix        = []byte("k/")
	ciphertextPrefix = []byte("ct/")
	aclPrefix        = []byte("acl/")
	publicPrefix     = []byte("pub/")

	privateKeyKey = []byte("private")
)

// domain is the modulus of the plaintext domain (MaxValue + 1).
const domain = uint64(fhe.MaxValue) + 1

// Enclave is the reference fhe.Oracle backend.
type Enclave struct {
	db         db.Database
	publicKey  ecc.Point
	privateKey *big.Int
	lock       sync.Mutex
}

// New opens an Enclave over the given database, loading the persisted
// keypair or generating a fresh one on first use.
func New(database db.Database) (*Enclave, error) {
	e := &Enclave{db: database}
	rTx := prefixeddb.NewPrefixedReader(database, keyPrefix)
	data, err := rTx.Get(privateKeyKey)
	switch err {
	case nil:
		e.privateKey = new(big.Int).SetBytes(data)
		e.publicKey = bjj.New()
		e.publicKey.ScalarBaseMult(e.privateKey)
	case db.ErrKeyNotFound:
		pub, priv, err := elgamal.GenerateKey(bjj.New())
		if err != nil {
			return nil, fmt.Errorf("failed to generate enclave keypair: %w", err)
		}
		e.publicKey, e.privateKey = pub, priv
		wTx := prefixeddb.NewPrefixedWriteTx(database.WriteTx(), keyPrefix)
		if err := wTx.Set(privateKeyKey, priv.Bytes()); err != nil {
			return nil, err
		}
		if err := wTx.Commit(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to load enclave keypair: %w", err)
	}
	return e, nil
}

// PublicKey returns the enclave encryption public key, to be shared with
// clients so they can encrypt their inputs.
func (e *Enclave) PublicKey() ecc.Point {
	return e.publicKey
}

// VerifyAndDecode implements fhe.Oracle. It looks for a proof input whose
// recomputed handle matches the given one, checks the encryption randomness
// against the ciphertext, enforces the 8-bit ciphertext width and stores the
// ciphertext under its handle.
func (e *Enclave) VerifyAndDecode(handle fhe.Handle, proof *fhe.Proof, ctx fhe.BoundContext) (*fhe.EncryptedValue, error) {
	if proof == nil {
		return nil, fmt.Errorf("%w: missing proof", fhe.ErrInvalidCiphertext)
	}
	for _, input := range proof.Inputs {
		computed, err := fhe.ComputeHandle(input.Ciphertext, ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fhe.ErrInvalidCiphertext, err)
		}
		if computed.String() != handle.String() {
			continue
		}
		ct := elgamal.NewCiphertext(bjj.New())
		if err := ct.Deserialize(input.Ciphertext); err != nil {
			return nil, fmt.Errorf("%w: %v", fhe.ErrInvalidCiphertext, err)
		}
		if !elgamal.CheckK(ct.C1, new(big.Int).SetBytes(input.K)) {
			return nil, fmt.Errorf("%w: proof of encryption randomness failed", fhe.ErrInvalidCiphertext)
		}
		// enforce the ciphertext width: the plaintext must fit the domain
		if _, err := ct.Decrypt(e.privateKey, fhe.MaxValue); err != nil {
			return nil, fmt.Errorf("%w: plaintext exceeds ciphertext width", fhe.ErrInvalidCiphertext)
		}
		if err := e.storeCiphertext(handle, ct); err != nil {
			return nil, err
		}
		return fhe.NewEncryptedValue(e, handle), nil
	}
	return nil, fmt.Errorf("%w: no proof input matches handle %s in the bound context", fhe.ErrInvalidCiphertext, handle)
}

// EncryptConst implements fhe.Oracle. The resulting value is a trivial
// encryption, not bound to any caller context.
func (e *Enclave) EncryptConst(value uint64) (*fhe.EncryptedValue, error) {
	return e.encryptAndStore(value % domain)
}

// Combine implements fhe.Oracle. Add and Sub are performed homomorphically
// on the ciphertexts; Mul, Eq and Or are computed inside the trust boundary
// by decrypting the operands. Every result is reduced into the 8-bit domain
// and re-encrypted with fresh randomness.
func (e *Enclave) Combine(op fhe.Op, a, b *fhe.EncryptedValue) (*fhe.EncryptedValue, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	ca, err := e.loadCiphertext(a.Handle())
	if err != nil {
		return nil, err
	}
	cb, err := e.loadCiphertext(b.Handle())
	if err != nil {
		return nil, err
	}

	var result uint64
	switch op {
	case fhe.OpAdd:
		// plaintext sum is at most 2*MaxValue, still solvable
		sum := elgamal.NewCiphertext(bjj.New()).Add(ca, cb)
		m, err := sum.Decrypt(e.privateKey, 2*fhe.MaxValue)
		if err != nil {
			return nil, fmt.Errorf("failed to renormalize sum: %w", err)
		}
		result = m.Uint64() % domain
	case fhe.OpSub:
		// a - b + 256 keeps the exponent positive for any 8-bit operands
		diff := elgamal.NewCiphertext(bjj.New()).Add(ca, elgamal.NewCiphertext(bjj.New()).Neg(cb))
		lift, err := elgamal.NewCiphertext(bjj.New()).Encrypt(new(big.Int).SetUint64(domain), e.publicKey, nil)
		if err != nil {
			return nil, err
		}
		diff.Add(diff, lift)
		m, err := diff.Decrypt(e.privateKey, 2*fhe.MaxValue+1)
		if err != nil {
			return nil, fmt.Errorf("failed to renormalize difference: %w", err)
		}
		result = m.Uint64() % domain
	case fhe.OpMul, fhe.OpEq, fhe.OpOr:
		ma, err := ca.Decrypt(e.privateKey, fhe.MaxValue)
		if err != nil {
			return nil, err
		}
		mb, err := cb.Decrypt(e.privateKey, fhe.MaxValue)
		if err != nil {
			return nil, err
		}
		switch op {
		case fhe.OpMul:
			result = (ma.Uint64() * mb.Uint64()) % domain
		case fhe.OpEq:
			if ma.Cmp(mb) == 0 {
				result = 1
			}
		case fhe.OpOr:
			if ma.Sign() != 0 || mb.Sign() != 0 {
				result = 1
			}
		}
	default:
		return nil, fmt.Errorf("unsupported operation %s", op)
	}
	return e.encryptAndStore(result)
}

// GrantAccess implements fhe.Oracle.
func (e *Enclave) GrantAccess(v *fhe.EncryptedValue, principal common.Address) error {
	wTx := prefixeddb.NewPrefixedWriteTx(e.db.WriteTx(), aclPrefix)
	if err := wTx.Set(aclKey(v.Handle(), principal), []byte{0x01}); err != nil {
		return err
	}
	return wTx.Commit()
}

// MakePublic implements fhe.Oracle.
func (e *Enclave) MakePublic(v *fhe.EncryptedValue) error {
	wTx := prefixeddb.NewPrefixedWriteTx(e.db.WriteTx(), publicPrefix)
	if err := wTx.Set(v.Handle(), []byte{0x01}); err != nil {
		return err
	}
	return wTx.Commit()
}

// PublicDecrypt implements fhe.Oracle.
func (e *Enclave) PublicDecrypt(handle fhe.Handle, caller common.Address) (uint64, error) {
	if !e.isPublic(handle) && !e.isAllowed(handle, caller) {
		return 0, fmt.Errorf("%w: %s over %s", fhe.ErrAccessDenied, caller, handle)
	}
	ct, err := e.loadCiphertext(handle)
	if err != nil {
		return 0, err
	}
	m, err := ct.Decrypt(e.privateKey, fhe.MaxValue)
	if err != nil {
		return 0, err
	}
	return m.Uint64(), nil
}

func (e *Enclave) isPublic(handle fhe.Handle) bool {
	rTx := prefixeddb.NewPrefixedReader(e.db, publicPrefix)
	_, err := rTx.Get(handle)
	return err == nil
}

func (e *Enclave) isAllowed(handle fhe.Handle, principal common.Address) bool {
	rTx := prefixeddb.NewPrefixedReader(e.db, aclPrefix)
	_, err := rTx.Get(aclKey(handle, principal))
	return err == nil
}

func aclKey(handle fhe.Handle, principal common.Address) []byte {
	key := make([]byte, 0, len(handle)+common.AddressLength)
	key = append(key, handle...)
	key = append(key, principal.Bytes()...)
	return key
}

func (e *Enclave) encryptAndStore(value uint64) (*fhe.EncryptedValue, error) {
	ct, err := elgamal.NewCiphertext(bjj.New()).Encrypt(new(big.Int).SetUint64(value), e.publicKey, nil)
	if err != nil {
		return nil, err
	}
	handle, err := fhe.ComputeHandle(ct.Serialize(), fhe.BoundContext{})
	if err != nil {
		return nil, err
	}
	if err := e.storeCiphertext(handle, ct); err != nil {
		return nil, err
	}
	return fhe.NewEncryptedValue(e, handle), nil
}

func (e *Enclave) storeCiphertext(handle fhe.Handle, ct *elgamal.Ciphertext) error {
	wTx := prefixeddb.NewPrefixedWriteTx(e.db.WriteTx(), ciphertextPrefix)
	if err := wTx.Set(handle, ct.Serialize()); err != nil {
		return err
	}
	return wTx.Commit()
}

func (e *Enclave) loadCiphertext(handle fhe.Handle) (*elgamal.Ciphertext, error) {
	rTx := prefixeddb.NewPrefixedReader(e.db, ciphertextPrefix)
	data, err := rTx.Get(handle)
	if err != nil {
		return nil, fmt.Errorf("unknown ciphertext handle %s: %w", handle, err)
	}
	ct := elgamal.NewCiphertext(bjj.New())
	if err := ct.Deserialize(data); err != nil {
		return nil, err
	}
	return ct, nil
}
