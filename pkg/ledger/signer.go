package ledger

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the trading identity: one private key producing EIP-155
// signed transactions for a fixed chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  ethtypes.Signer
}

// NewSigner parses a hex private key (with or without 0x prefix) and binds it
// to the given chain id.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}

	id := big.NewInt(chainID)

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKey),
		chainID: id,
		signer:  ethtypes.NewEIP155Signer(id),
	}, nil
}

// Address returns the signer's account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer is bound to.
func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Key exposes the private key for collaborators that sign off-chain payloads
// (EIP-712 order signing).
func (s *Signer) Key() *ecdsa.PrivateKey {
	return s.key
}

// Sign produces an EIP-155 signed transaction.
func (s *Signer) Sign(tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	signed, err := ethtypes.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed, nil
}
