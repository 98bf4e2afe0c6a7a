package testutils

import (
	"fmt"
	"testing"

	"github.com/pocnet/pocd/domain/chaincfg"
	"github.com/pocnet/pocd/domain/consensus/model"
	"github.com/pocnet/pocd/domain/consensus/processes/blockverifier"
	"github.com/pocnet/pocd/util/signing"
)

// BlockSpacing is the number of seconds between consecutive test blocks.
const BlockSpacing = 10

// KeyPair derives a deterministic key pair from name.
func KeyPair(t testing.TB, name string) *signing.KeyPair {
	keyPair, err := signing.KeyPairFromSeed([]byte(name))
	if err != nil {
		t.Fatalf("KeyPair: %s", err)
	}
	return keyPair
}

// BuildBlock forges and signs an unlinked block on top of previous, BlockSpacing
// seconds after it. The totals and payload fields are derived from txs.
func BuildBlock(t testing.TB, params *chaincfg.Params, previous *model.Block,
	generator *signing.KeyPair, txs ...*model.Transaction) *model.Block {

	return BuildBlockAt(t, params, previous, generator, previous.Timestamp+BlockSpacing, txs...)
}

// BuildBlockAt is BuildBlock with an explicit timestamp.
func BuildBlockAt(t testing.TB, params *chaincfg.Params, previous *model.Block,
	generator *signing.KeyPair, timestamp uint32, txs ...*model.Transaction) *model.Block {

	if txs == nil {
		txs = []*model.Transaction{}
	}
	block := &model.Block{
		Version:             params.BlockVersion,
		Timestamp:           timestamp,
		PreviousBlockID:     previous.ID(),
		GeneratorPublicKey:  generator.PublicKey(),
		GenerationSignature: blockverifier.GenerationSignature(previous),
		PreviousBlockHash:   previous.Hash(),
		Transactions:        txs,
	}
	for _, tx := range txs {
		block.TotalAmount += tx.Amount
		block.TotalFee += tx.Fee
	}
	block.PayloadLength = model.CalculatePayloadLength(txs)
	block.PayloadHash = model.CalculatePayloadHash(txs)
	Resign(t, block, generator)
	return block
}

// Resign signs block again after a test tampered with it.
func Resign(t testing.TB, block *model.Block, generator *signing.KeyPair) {
	err := signing.SignBlock(block, generator)
	if err != nil {
		t.Fatalf("Resign: %s", err)
	}
}

// BuildChain forges length blocks on top of previous, each by generator
// and without transactions.
func BuildChain(t testing.TB, params *chaincfg.Params, previous *model.Block,
	generator *signing.KeyPair, length int) []*model.Block {

	blocks := make([]*model.Block, 0, length)
	for i := 0; i < length; i++ {
		block := BuildBlock(t, params, previous, generator)
		blocks = append(blocks, block)
		previous = block
	}
	return blocks
}

// PaymentOptions customize BuildPayment.
type PaymentOptions struct {
	Amount     int64
	Fee        int64
	Deadline   uint16
	Reference  *model.Hash
	ECBlock    *model.Block
	Attachment []byte
}

// BuildPayment returns an ordinary payment from sender to recipientID,
// signed and valid from timestamp. Zero options get working defaults and
// the transaction references the genesis block for economic clustering.
func BuildPayment(t testing.TB, params *chaincfg.Params, sender *signing.KeyPair, recipientID uint64,
	timestamp uint32, options PaymentOptions) *model.Transaction {

	if options.Amount == 0 {
		options.Amount = chaincfg.OneCoin
	}
	if options.Fee == 0 {
		options.Fee = chaincfg.OneCoin
	}
	if options.Deadline == 0 {
		options.Deadline = 1440
	}
	ecBlock := options.ECBlock
	if ecBlock == nil {
		ecBlock = params.GenesisBlock()
	}

	tx := &model.Transaction{
		Type:                          model.TypePayment,
		Subtype:                       model.SubtypeOrdinaryPayment,
		Version:                       params.TransactionVersion(ecBlock.Height()),
		Timestamp:                     timestamp,
		Deadline:                      options.Deadline,
		SenderPublicKey:               sender.PublicKey(),
		RecipientID:                   recipientID,
		Amount:                        options.Amount,
		Fee:                           options.Fee,
		ReferencedTransactionFullHash: options.Reference,
		ECBlockHeight:                 ecBlock.Height(),
		ECBlockID:                     ecBlock.ID(),
		Attachment:                    options.Attachment,
	}
	err := signing.SignTransaction(tx, sender)
	if err != nil {
		t.Fatalf("BuildPayment: %s", err)
	}
	return tx
}

// BuildAliasAssignment returns a signed alias assignment of alias to
// sender.
func BuildAliasAssignment(t testing.TB, params *chaincfg.Params, sender *signing.KeyPair,
	alias string, timestamp uint32) *model.Transaction {

	genesis := params.GenesisBlock()
	tx := &model.Transaction{
		Type:            model.TypeMessaging,
		Subtype:         model.SubtypeAliasAssignment,
		Version:         params.TransactionVersion(0),
		Timestamp:       timestamp,
		Deadline:        1440,
		SenderPublicKey: sender.PublicKey(),
		Fee:             chaincfg.OneCoin,
		ECBlockHeight:   0,
		ECBlockID:       genesis.ID(),
		Attachment:      []byte(alias),
	}
	err := signing.SignTransaction(tx, sender)
	if err != nil {
		t.Fatalf("BuildAliasAssignment: %s", err)
	}
	return tx
}

// Account returns the identifier of a recipient account named name.
func Account(t testing.TB, name string) uint64 {
	return KeyPair(t, fmt.Sprintf("account-%s", name)).AccountID()
}
