package chainstore

import (
	"encoding/binary"

	"github.com/pocnet/pocd/domain/consensus/database"
	"github.com/pocnet/pocd/domain/consensus/model"
)

var (
	blocksBucket            = database.MakeBucket([]byte("blocks"))
	heightsBucket           = database.MakeBucket([]byte("block-heights"))
	transactionsBucket      = database.MakeBucket([]byte("transactions"))
	transactionHashesBucket = database.MakeBucket([]byte("transaction-full-hashes"))
	tipKey                  = database.MakeBucket().Key([]byte("chain-tip"))
)

func idBytes(id uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return b[:]
}

func blockKey(id uint64) []byte {
	return blocksBucket.Key(idBytes(id))
}

// heightKey is big endian so that heights sort in numeric order.
func heightKey(height uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], height)
	return heightsBucket.Key(b[:])
}

func transactionKey(txID uint64) []byte {
	return transactionsBucket.Key(idBytes(txID))
}

func transactionHashKey(fullHash model.Hash) []byte {
	return transactionHashesBucket.Key(fullHash[:])
}
