package derivedtables

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/model"
)

var (
	publicKeysBucket       = database.MakeBucket([]byte("public-keys"))
	publicKeyJournalBucket = database.MakeBucket([]byte("public-key-journal"))
	journalTipKey          = database.MakeBucket([]byte("public-key-journal-state")).Key([]byte("tip"))
	journalTrimmedKey      = database.MakeBucket([]byte("public-key-journal-state")).Key([]byte("trimmed"))
)

// PublicKeyTable binds every account to the public key it first appeared
// with. Each binding is journaled by height so that it can be undone.
type PublicKeyTable struct {
	recordedInBlock int
}

// NewPublicKeyTable returns a new PublicKeyTable
func NewPublicKeyTable() *PublicKeyTable {
	return &PublicKeyTable{}
}

// Name returns the name of the table.
func (pkt *PublicKeyTable) Name() string {
	return "public-keys"
}

func accountKey(accountID uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], accountID)
	return publicKeysBucket.Key(b[:])
}

func journalKey(height uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], height)
	return publicKeyJournalBucket.Key(b[:])
}

func serializeHeight(height uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], height)
	return b[:]
}

func readHeight(dbContext model.DBReader, key []byte) (uint32, bool, error) {
	serialized, err := dbContext.Get(key)
	if err != nil {
		if database.IsNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(serialized) != 4 {
		return 0, false, errors.Errorf("malformed height of length %d", len(serialized))
	}
	return binary.LittleEndian.Uint32(serialized), true, nil
}

// PublicKey returns the public key bound to an account.
func (pkt *PublicKeyTable) PublicKey(dbContext model.DBReader, accountID uint64) (model.PublicKey, bool, error) {
	serialized, err := dbContext.Get(accountKey(accountID))
	if err != nil {
		if database.IsNotFoundError(err) {
			return model.PublicKey{}, false, nil
		}
		return model.PublicKey{}, false, err
	}
	if len(serialized) != model.PublicKeySize+4 {
		return model.PublicKey{}, false, errors.Errorf("malformed public key entry of length %d", len(serialized))
	}
	var publicKey model.PublicKey
	copy(publicKey[:], serialized)
	return publicKey, true, nil
}

// Record binds the account of publicKey to it at height, unless the
// account is already bound.
func (pkt *PublicKeyTable) Record(dbTx model.DBWriter, publicKey model.PublicKey, height uint32) error {
	accountID := model.AccountID(publicKey)
	exists, err := dbTx.Has(accountKey(accountID))
	if err != nil || exists {
		return err
	}

	entry := make([]byte, 0, model.PublicKeySize+4)
	entry = append(entry, publicKey[:]...)
	entry = append(entry, serializeHeight(height)...)
	err = dbTx.Put(accountKey(accountID), entry)
	if err != nil {
		return err
	}

	journal, err := dbTx.Get(journalKey(height))
	if err != nil && !database.IsNotFoundError(err) {
		return err
	}
	var accountBytes [8]byte
	binary.LittleEndian.PutUint64(accountBytes[:], accountID)
	journal = append(append([]byte{}, journal...), accountBytes[:]...)
	err = dbTx.Put(journalKey(height), journal)
	if err != nil {
		return err
	}

	tip, found, err := readHeight(dbTx, journalTipKey)
	if err != nil {
		return err
	}
	if !found || height > tip {
		err = dbTx.Put(journalTipKey, serializeHeight(height))
		if err != nil {
			return err
		}
	}
	pkt.recordedInBlock++
	return nil
}

// Rollback unbinds every account bound at or after height.
func (pkt *PublicKeyTable) Rollback(dbTx model.DBWriter, height uint32) error {
	tip, found, err := readHeight(dbTx, journalTipKey)
	if err != nil || !found || tip < height {
		return err
	}

	for journalHeight := tip; ; journalHeight-- {
		journal, err := dbTx.Get(journalKey(journalHeight))
		if err != nil && !database.IsNotFoundError(err) {
			return err
		}
		for i := 0; i+8 <= len(journal); i += 8 {
			err = dbTx.Delete(accountKey(binary.LittleEndian.Uint64(journal[i : i+8])))
			if err != nil {
				return err
			}
		}
		err = dbTx.Delete(journalKey(journalHeight))
		if err != nil {
			return err
		}
		if journalHeight == height {
			break
		}
	}

	if height == 0 {
		return dbTx.Delete(journalTipKey)
	}
	return dbTx.Put(journalTipKey, serializeHeight(height-1))
}

// Trim drops the journal below height. Bindings made below height can no
// longer be rolled back.
func (pkt *PublicKeyTable) Trim(dbTx model.DBWriter, height uint32) error {
	trimmed, _, err := readHeight(dbTx, journalTrimmedKey)
	if err != nil {
		return err
	}
	for journalHeight := trimmed; journalHeight < height; journalHeight++ {
		err = dbTx.Delete(journalKey(journalHeight))
		if err != nil {
			return err
		}
	}
	if height > trimmed {
		return dbTx.Put(journalTrimmedKey, serializeHeight(height))
	}
	return nil
}

// Finish closes the bookkeeping of the current block.
func (pkt *PublicKeyTable) Finish(dbTx model.DBWriter) error {
	if pkt.recordedInBlock > 0 {
		log.Tracef("Bound %d new public keys", pkt.recordedInBlock)
	}
	pkt.recordedInBlock = 0
	return nil
}
