// Package ledger wraps the blockchain surface the execution core needs:
// nonce queries, gas pricing, broadcast, receipts and the CTF/collateral
// contract reads and writes used for position redemption.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Client is the subset of the Ethereum JSON-RPC surface used by the core.
// *ethclient.Client satisfies it; tests use in-memory fakes.
type Client interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to an RPC endpoint and verifies the chain id matches the
// configured one.
func Dial(ctx context.Context, rpcURL string, chainID int64, logger *zap.Logger) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	gotChainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	if gotChainID.Int64() != chainID {
		client.Close()
		return nil, errors.New("chain id mismatch: rpc reports " + gotChainID.String())
	}

	logger.Info("ledger-connected",
		zap.String("rpc-url", rpcURL),
		zap.Int64("chain-id", chainID))

	return client, nil
}

// IsNotFound reports whether err is the "receipt not available yet" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}
