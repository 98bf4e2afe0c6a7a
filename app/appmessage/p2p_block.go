package appmessage

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// BlockJSON is the peer representation of a block. Identifiers are
// unsigned decimal strings and binary fields are hexadecimal.
type BlockJSON struct {
	Version             int32              `json:"version"`
	Timestamp           uint32             `json:"timestamp"`
	PreviousBlock       string             `json:"previousBlock"`
	TotalAmountNQT      int64              `json:"totalAmountNQT"`
	TotalFeeNQT         int64              `json:"totalFeeNQT"`
	PayloadLength       uint32             `json:"payloadLength"`
	PayloadHash         string             `json:"payloadHash"`
	GeneratorPublicKey  string             `json:"generatorPublicKey"`
	GenerationSignature string             `json:"generationSignature"`
	PreviousBlockHash   string             `json:"previousBlockHash,omitempty"`
	Nonce               string             `json:"nonce"`
	BlockATs            string             `json:"blockATs,omitempty"`
	BlockSignature      string             `json:"blockSignature"`
	Transactions        []*TransactionJSON `json:"transactions"`
}

// TransactionJSON is the peer representation of a transaction.
type TransactionJSON struct {
	Type                          uint8  `json:"type"`
	Subtype                       uint8  `json:"subtype"`
	Version                       uint8  `json:"version"`
	Timestamp                     uint32 `json:"timestamp"`
	Deadline                      uint16 `json:"deadline"`
	SenderPublicKey               string `json:"senderPublicKey"`
	Recipient                     string `json:"recipient"`
	AmountNQT                     int64  `json:"amountNQT"`
	FeeNQT                        int64  `json:"feeNQT"`
	ReferencedTransactionFullHash string `json:"referencedTransactionFullHash,omitempty"`
	ECBlockHeight                 uint32 `json:"ecBlockHeight"`
	ECBlockID                     string `json:"ecBlockId"`
	Attachment                    string `json:"attachmentBytes,omitempty"`
	Signature                     string `json:"signature"`
}

// DomainBlockToBlockJSON converts a block to its peer representation.
func DomainBlockToBlockJSON(block *model.Block) *BlockJSON {
	blockJSON := &BlockJSON{
		Version:             block.Version,
		Timestamp:           block.Timestamp,
		PreviousBlock:       model.IDToString(block.PreviousBlockID),
		TotalAmountNQT:      block.TotalAmount,
		TotalFeeNQT:         block.TotalFee,
		PayloadLength:       block.PayloadLength,
		PayloadHash:         block.PayloadHash.String(),
		GeneratorPublicKey:  block.GeneratorPublicKey.String(),
		GenerationSignature: block.GenerationSignature.String(),
		Nonce:               model.IDToString(block.Nonce),
		BlockATs:            hex.EncodeToString(block.ContractPayload),
		BlockSignature:      hex.EncodeToString(block.BlockSignature[:]),
		Transactions:        make([]*TransactionJSON, len(block.Transactions)),
	}
	if block.Version > 1 {
		blockJSON.PreviousBlockHash = block.PreviousBlockHash.String()
	}
	for i, tx := range block.Transactions {
		blockJSON.Transactions[i] = DomainTransactionToTransactionJSON(tx)
	}
	return blockJSON
}

// DomainTransactionToTransactionJSON converts a transaction to its peer
// representation.
func DomainTransactionToTransactionJSON(tx *model.Transaction) *TransactionJSON {
	txJSON := &TransactionJSON{
		Type:            tx.Type,
		Subtype:         tx.Subtype,
		Version:         tx.Version,
		Timestamp:       tx.Timestamp,
		Deadline:        tx.Deadline,
		SenderPublicKey: tx.SenderPublicKey.String(),
		Recipient:       model.IDToString(tx.RecipientID),
		AmountNQT:       tx.Amount,
		FeeNQT:          tx.Fee,
		ECBlockHeight:   tx.ECBlockHeight,
		ECBlockID:       model.IDToString(tx.ECBlockID),
		Attachment:      hex.EncodeToString(tx.Attachment),
		Signature:       hex.EncodeToString(tx.Signature[:]),
	}
	if tx.ReferencedTransactionFullHash != nil {
		txJSON.ReferencedTransactionFullHash = tx.ReferencedTransactionFullHash.String()
	}
	return txJSON
}

// BlockJSONToDomainBlock parses the peer representation of a block. The
// returned block is unlinked.
func BlockJSONToDomainBlock(blockJSON *BlockJSON) (*model.Block, error) {
	if blockJSON == nil {
		return nil, errors.New("missing block")
	}
	block := &model.Block{
		Version:       blockJSON.Version,
		Timestamp:     blockJSON.Timestamp,
		TotalAmount:   blockJSON.TotalAmountNQT,
		TotalFee:      blockJSON.TotalFeeNQT,
		PayloadLength: blockJSON.PayloadLength,
		Transactions:  make([]*model.Transaction, len(blockJSON.Transactions)),
	}

	var err error
	if block.PreviousBlockID, err = model.IDFromString(blockJSON.PreviousBlock); err != nil {
		return nil, errors.Wrap(err, "malformed previous block id")
	}
	if block.Nonce, err = model.IDFromString(blockJSON.Nonce); err != nil {
		return nil, errors.Wrap(err, "malformed nonce")
	}
	if block.PayloadHash, err = model.HashFromString(blockJSON.PayloadHash); err != nil {
		return nil, errors.Wrap(err, "malformed payload hash")
	}
	if err = decodeFixed(blockJSON.GeneratorPublicKey, block.GeneratorPublicKey[:], "generator public key"); err != nil {
		return nil, err
	}
	if block.GenerationSignature, err = model.HashFromString(blockJSON.GenerationSignature); err != nil {
		return nil, errors.Wrap(err, "malformed generation signature")
	}
	if block.Version > 1 {
		if block.PreviousBlockHash, err = model.HashFromString(blockJSON.PreviousBlockHash); err != nil {
			return nil, errors.Wrap(err, "malformed previous block hash")
		}
	}
	if block.ContractPayload, err = decodeVariable(blockJSON.BlockATs, "contract payload"); err != nil {
		return nil, err
	}
	var signature model.Signature
	if err = decodeFixed(blockJSON.BlockSignature, signature[:], "block signature"); err != nil {
		return nil, err
	}
	block.SetBlockSignature(signature)

	for i, txJSON := range blockJSON.Transactions {
		tx, err := TransactionJSONToDomainTransaction(txJSON)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed transaction #%d", i)
		}
		block.Transactions[i] = tx
	}
	return block, nil
}

// TransactionJSONToDomainTransaction parses the peer representation of a
// transaction.
func TransactionJSONToDomainTransaction(txJSON *TransactionJSON) (*model.Transaction, error) {
	if txJSON == nil {
		return nil, errors.New("missing transaction")
	}
	tx := &model.Transaction{
		Type:          txJSON.Type,
		Subtype:       txJSON.Subtype,
		Version:       txJSON.Version,
		Timestamp:     txJSON.Timestamp,
		Deadline:      txJSON.Deadline,
		Amount:        txJSON.AmountNQT,
		Fee:           txJSON.FeeNQT,
		ECBlockHeight: txJSON.ECBlockHeight,
	}

	var err error
	if err = decodeFixed(txJSON.SenderPublicKey, tx.SenderPublicKey[:], "sender public key"); err != nil {
		return nil, err
	}
	if tx.RecipientID, err = model.IDFromString(txJSON.Recipient); err != nil {
		return nil, errors.Wrap(err, "malformed recipient")
	}
	if tx.ECBlockID, err = model.IDFromString(txJSON.ECBlockID); err != nil {
		return nil, errors.Wrap(err, "malformed EC block id")
	}
	if txJSON.ReferencedTransactionFullHash != "" {
		referencedFullHash, err := model.HashFromString(txJSON.ReferencedTransactionFullHash)
		if err != nil {
			return nil, errors.Wrap(err, "malformed referenced transaction hash")
		}
		tx.ReferencedTransactionFullHash = &referencedFullHash
	}
	if tx.Attachment, err = decodeVariable(txJSON.Attachment, "attachment"); err != nil {
		return nil, err
	}
	var signature model.Signature
	if err = decodeFixed(txJSON.Signature, signature[:], "transaction signature"); err != nil {
		return nil, err
	}
	tx.SetSignature(signature)
	return tx, nil
}

func decodeFixed(s string, destination []byte, fieldName string) error {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrapf(err, "malformed %s", fieldName)
	}
	if len(decoded) != len(destination) {
		return errors.Errorf("%s has length %d, expected %d", fieldName, len(decoded), len(destination))
	}
	copy(destination, decoded)
	return nil
}

func decodeVariable(s string, fieldName string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed %s", fieldName)
	}
	return decoded, nil
}
