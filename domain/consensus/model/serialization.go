package model

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// transactionFixedSize is the length of a transaction's canonical bytes
// without its attachment.
const transactionFixedSize = 1 + 1 + 1 + 4 + 2 + PublicKeySize + 8 + 8 + 8 + HashSize + 4 + 8 + 4 + SignatureSize

// maxAttachmentSize bounds attachments read from untrusted input.
const maxAttachmentSize = 1000

// maxContractPayloadSize bounds contract payloads read from untrusted input.
const maxContractPayloadSize = 255 * 176

// maxTransactionsPerBlock bounds the transaction count read from untrusted input.
const maxTransactionsPerBlock = 255

// Bytes returns the canonical bytes of the transaction. Its full hash,
// identity and signature are all computed over these bytes.
func (tx *Transaction) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, tx.Size()))
	tx.serializeUnsigned(buf)
	buf.Write(tx.Signature[:])
	return buf.Bytes()
}

// UnsignedBytes returns the canonical bytes of the transaction with the
// signature zeroed. This is the message the sender signs.
func (tx *Transaction) UnsignedBytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, tx.Size()))
	tx.serializeUnsigned(buf)
	buf.Write(make([]byte, SignatureSize))
	return buf.Bytes()
}

func (tx *Transaction) serializeUnsigned(buf *bytes.Buffer) {
	buf.WriteByte(tx.Type)
	buf.WriteByte(tx.Subtype)
	buf.WriteByte(tx.Version)
	putUint32(buf, tx.Timestamp)
	putUint16(buf, tx.Deadline)
	buf.Write(tx.SenderPublicKey[:])
	putUint64(buf, tx.RecipientID)
	putUint64(buf, uint64(tx.Amount))
	putUint64(buf, uint64(tx.Fee))
	if tx.ReferencedTransactionFullHash != nil {
		buf.Write(tx.ReferencedTransactionFullHash[:])
	} else {
		buf.Write(make([]byte, HashSize))
	}
	putUint32(buf, tx.ECBlockHeight)
	putUint64(buf, tx.ECBlockID)
	putUint32(buf, uint32(len(tx.Attachment)))
	buf.Write(tx.Attachment)
}

// DeserializeTransaction parses a transaction from its canonical bytes.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	tx, err := readTransaction(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after transaction", r.Len())
	}
	return tx, nil
}

func readTransaction(r *bytes.Reader) (*Transaction, error) {
	tx := &Transaction{}
	var err error
	if tx.Type, err = r.ReadByte(); err != nil {
		return nil, errors.Wrap(err, "failed to read transaction type")
	}
	if tx.Subtype, err = r.ReadByte(); err != nil {
		return nil, errors.Wrap(err, "failed to read transaction subtype")
	}
	if tx.Version, err = r.ReadByte(); err != nil {
		return nil, errors.Wrap(err, "failed to read transaction version")
	}
	if tx.Timestamp, err = readUint32(r); err != nil {
		return nil, errors.Wrap(err, "failed to read transaction timestamp")
	}
	if tx.Deadline, err = readUint16(r); err != nil {
		return nil, errors.Wrap(err, "failed to read transaction deadline")
	}
	if _, err = io.ReadFull(r, tx.SenderPublicKey[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read sender public key")
	}
	if tx.RecipientID, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "failed to read recipient")
	}
	amount, err := readUint64(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read amount")
	}
	tx.Amount = int64(amount)
	fee, err := readUint64(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read fee")
	}
	tx.Fee = int64(fee)
	var referencedFullHash Hash
	if _, err = io.ReadFull(r, referencedFullHash[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read referenced transaction hash")
	}
	if !referencedFullHash.IsZero() {
		tx.ReferencedTransactionFullHash = &referencedFullHash
	}
	if tx.ECBlockHeight, err = readUint32(r); err != nil {
		return nil, errors.Wrap(err, "failed to read EC block height")
	}
	if tx.ECBlockID, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "failed to read EC block id")
	}
	if tx.Attachment, err = readVarBytes(r, maxAttachmentSize, "attachment"); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, tx.Signature[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read transaction signature")
	}
	return tx, nil
}

// Bytes returns the canonical bytes of the block header. The block's hash,
// identity and the next block's previous-block hash are computed over these
// bytes. Transactions are committed to through the payload hash.
func (b *Block) Bytes() []byte {
	buf := &bytes.Buffer{}
	b.serializeUnsigned(buf)
	buf.Write(b.BlockSignature[:])
	return buf.Bytes()
}

// BytesWithoutSignature returns the canonical bytes of the block header
// without the block signature. This is the message the forger signs.
func (b *Block) BytesWithoutSignature() []byte {
	buf := &bytes.Buffer{}
	b.serializeUnsigned(buf)
	return buf.Bytes()
}

func (b *Block) serializeUnsigned(buf *bytes.Buffer) {
	putUint32(buf, uint32(b.Version))
	putUint32(buf, b.Timestamp)
	putUint64(buf, b.PreviousBlockID)
	putUint32(buf, uint32(len(b.Transactions)))
	putUint64(buf, uint64(b.TotalAmount))
	putUint64(buf, uint64(b.TotalFee))
	putUint32(buf, b.PayloadLength)
	buf.Write(b.PayloadHash[:])
	buf.Write(b.GeneratorPublicKey[:])
	buf.Write(b.GenerationSignature[:])
	if b.Version > 1 {
		buf.Write(b.PreviousBlockHash[:])
	}
	putUint64(buf, b.Nonce)
	putUint32(buf, uint32(len(b.ContractPayload)))
	buf.Write(b.ContractPayload)
}

// SerializeBlock returns the header bytes of the block followed by each of
// its transactions.
func SerializeBlock(block *Block) []byte {
	buf := bytes.NewBuffer(block.Bytes())
	for _, tx := range block.Transactions {
		txBytes := tx.Bytes()
		putUint32(buf, uint32(len(txBytes)))
		buf.Write(txBytes)
	}
	return buf.Bytes()
}

// DeserializeBlock parses a block produced by SerializeBlock. The returned
// block is unlinked.
func DeserializeBlock(data []byte) (*Block, error) {
	r := bytes.NewReader(data)
	block, err := readBlock(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after block", r.Len())
	}
	return block, nil
}

func readBlock(r *bytes.Reader) (*Block, error) {
	block := &Block{}
	version, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read block version")
	}
	block.Version = int32(version)
	if block.Timestamp, err = readUint32(r); err != nil {
		return nil, errors.Wrap(err, "failed to read block timestamp")
	}
	if block.PreviousBlockID, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "failed to read previous block id")
	}
	transactionCount, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transaction count")
	}
	if transactionCount > maxTransactionsPerBlock {
		return nil, errors.Errorf("block declares %d transactions, at most %d are allowed",
			transactionCount, maxTransactionsPerBlock)
	}
	totalAmount, err := readUint64(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read total amount")
	}
	block.TotalAmount = int64(totalAmount)
	totalFee, err := readUint64(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read total fee")
	}
	block.TotalFee = int64(totalFee)
	if block.PayloadLength, err = readUint32(r); err != nil {
		return nil, errors.Wrap(err, "failed to read payload length")
	}
	if _, err = io.ReadFull(r, block.PayloadHash[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read payload hash")
	}
	if _, err = io.ReadFull(r, block.GeneratorPublicKey[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read generator public key")
	}
	if _, err = io.ReadFull(r, block.GenerationSignature[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read generation signature")
	}
	if block.Version > 1 {
		if _, err = io.ReadFull(r, block.PreviousBlockHash[:]); err != nil {
			return nil, errors.Wrap(err, "failed to read previous block hash")
		}
	}
	if block.Nonce, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "failed to read nonce")
	}
	if block.ContractPayload, err = readVarBytes(r, maxContractPayloadSize, "contract payload"); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, block.BlockSignature[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read block signature")
	}

	block.Transactions = make([]*Transaction, 0, transactionCount)
	for i := uint32(0); i < transactionCount; i++ {
		txBytes, err := readVarBytes(r, transactionFixedSize+maxAttachmentSize, "transaction")
		if err != nil {
			return nil, err
		}
		tx, err := DeserializeTransaction(txBytes)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse transaction #%d", i)
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

func putUint16(buf *bytes.Buffer, value uint16) {
	var scratch [2]byte
	binary.LittleEndian.PutUint16(scratch[:], value)
	buf.Write(scratch[:])
}

func putUint32(buf *bytes.Buffer, value uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], value)
	buf.Write(scratch[:])
}

func putUint64(buf *bytes.Buffer, value uint64) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], value)
	buf.Write(scratch[:])
}

func readUint16(r io.Reader) (uint16, error) {
	var scratch [2]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	return binary.LittleEndian.Uint16(scratch[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var scratch [4]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	return binary.LittleEndian.Uint32(scratch[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return 0, errors.WithStack(err)
	}
	return binary.LittleEndian.Uint64(scratch[:]), nil
}

func readVarBytes(r *bytes.Reader, maxLength uint32, fieldName string) ([]byte, error) {
	length, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s length", fieldName)
	}
	if length > maxLength {
		return nil, errors.Errorf("%s is %d bytes long, at most %d are allowed",
			fieldName, length, maxLength)
	}
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", fieldName)
	}
	return data, nil
}

// CalculatePayloadHash returns the digest of the canonical bytes of every
// transaction, in block order.
func CalculatePayloadHash(transactions []*Transaction) Hash {
	data := make([][]byte, len(transactions))
	for i, tx := range transactions {
		data[i] = tx.Bytes()
	}
	return DigestBytes(data...)
}

// CalculatePayloadLength returns the total size of the transactions.
func CalculatePayloadLength(transactions []*Transaction) uint32 {
	length := 0
	for _, tx := range transactions {
		length += tx.Size()
	}
	return uint32(length)
}
