// Package signing signs and verifies blocks and transactions with Schnorr
// keys over secp256k1.
package signing

import (
	"crypto/sha256"

	"github.com/kaspanet/go-secp256k1"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/domain/consensus/model"
)

// KeyPair is a Schnorr private key along with its serialized public key.
type KeyPair struct {
	keyPair   *secp256k1.SchnorrKeyPair
	publicKey model.PublicKey
}

// KeyPairFromSeed derives a key pair whose private key is the SHA-256
// digest of seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	privateKey := sha256.Sum256(seed)
	keyPair, err := secp256k1.DeserializeSchnorrPrivateKeyFromSlice(privateKey[:])
	if err != nil {
		return nil, errors.Wrap(err, "seed does not derive a valid private key")
	}
	publicKey, err := keyPair.SchnorrPublicKey()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	serialized, err := publicKey.Serialize()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &KeyPair{
		keyPair:   keyPair,
		publicKey: model.PublicKey(*serialized),
	}, nil
}

// PublicKey returns the serialized public key.
func (kp *KeyPair) PublicKey() model.PublicKey {
	return kp.publicKey
}

// AccountID returns the account controlled by the key pair.
func (kp *KeyPair) AccountID() uint64 {
	return model.AccountID(kp.publicKey)
}

// Sign returns the signature of the SHA-256 digest of message.
func (kp *KeyPair) Sign(message []byte) (model.Signature, error) {
	secpHash := secp256k1.Hash(model.DigestBytes(message))
	signature, err := kp.keyPair.SchnorrSign(&secpHash)
	if err != nil {
		return model.Signature{}, errors.Errorf("cannot sign message: %s", err)
	}
	return model.Signature(*signature.Serialize()), nil
}

// Verify returns whether signature signs the SHA-256 digest of message
// for publicKey. Malformed keys and signatures do not verify.
func Verify(publicKey model.PublicKey, message []byte, signature model.Signature) bool {
	pubKey, err := secp256k1.DeserializeSchnorrPubKey(publicKey[:])
	if err != nil {
		return false
	}
	sig, err := secp256k1.DeserializeSchnorrSignatureFromSlice(signature[:])
	if err != nil {
		return false
	}
	secpHash := secp256k1.Hash(model.DigestBytes(message))
	return pubKey.SchnorrVerify(&secpHash, sig)
}

// SignBlock signs a block in place.
func SignBlock(block *model.Block, keyPair *KeyPair) error {
	signature, err := keyPair.Sign(block.BytesWithoutSignature())
	if err != nil {
		return err
	}
	block.SetBlockSignature(signature)
	return nil
}

// VerifyBlockSignature returns whether the block is signed by its
// generator.
func VerifyBlockSignature(block *model.Block) bool {
	return Verify(block.GeneratorPublicKey, block.BytesWithoutSignature(), block.BlockSignature)
}

// SignTransaction signs a transaction in place.
func SignTransaction(tx *model.Transaction, keyPair *KeyPair) error {
	signature, err := keyPair.Sign(tx.UnsignedBytes())
	if err != nil {
		return err
	}
	tx.SetSignature(signature)
	return nil
}

// VerifyTransactionSignature returns whether the transaction is signed by
// its sender.
func VerifyTransactionSignature(tx *model.Transaction) bool {
	return Verify(tx.SenderPublicKey, tx.UnsignedBytes(), tx.Signature)
}
