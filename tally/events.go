package tally

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/hushvote/hushvote/types"
)

// EventType identifies an audit log entry kind.
type EventType string

const (
	EventVoterRegistered    EventType = "voterRegistered"
	EventVoteCast           EventType = "voteCast"
	EventTallyAccessGranted EventType = "tallyAccessGranted"
)

// Event is an append-only audit log entry. Aux carries caller-supplied
// metadata; the vote content itself is never recorded.
type Event struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	Principal common.Address `json:"principal"`
	Aux       types.AuxData  `json:"aux,omitempty"`
	Time      int64          `json:"time"`
}

// appendEvent writes an audit event inside the given write transaction, so
// it commits or rolls back together with the state change it describes.
func (c *Contract) appendEvent(tx db.WriteTx, typ EventType, principal common.Address, aux types.AuxData) error {
	seq, err := c.nextEventSeq(tx)
	if err != nil {
		return err
	}
	event := Event{
		ID:        uuid.New().String(),
		Seq:       seq,
		Type:      typ,
		Principal: principal,
		Aux:       aux,
		Time:      c.now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(tx, eventPrefix)
	return wTx.Set(eventKey(seq), data)
}

// Events returns the audit log in append order.
func (c *Contract) Events() ([]Event, error) {
	rd := prefixeddb.NewPrefixedReader(c.db, eventPrefix)
	var events []Event
	var iterErr error
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		var event Event
		if iterErr = json.Unmarshal(v, &event); iterErr != nil {
			return false
		}
		events = append(events, event)
		return true
	}); err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, iterErr
	}
	return events, nil
}

func (c *Contract) nextEventSeq(tx db.WriteTx) (uint64, error) {
	wTx := prefixeddb.NewPrefixedWriteTx(tx, roundPrefix)
	var seq uint64
	data, err := wTx.Get(eventSeqKey)
	switch err {
	case nil:
		seq = binary.BigEndian.Uint64(data)
	case db.ErrKeyNotFound:
	default:
		return 0, err
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, seq+1)
	if err := wTx.Set(eventSeqKey, next); err != nil {
		return 0, err
	}
	return seq, nil
}

func eventKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
