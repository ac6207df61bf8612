package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// Polygon mainnet contract addresses.
const (
	DefaultCTFAddress        = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
	DefaultCollateralAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	DefaultExchangeAddress   = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

var (
	ctfABI   abi.ABI
	erc20ABI abi.ABI
)

//nolint:gochecknoinits // static ABI parsing
func init() {
	var err error

	ctfABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "mergePositions",
			"type": "function",
			"inputs": [
				{"name": "collateralToken", "type": "address"},
				{"name": "parentCollectionId", "type": "bytes32"},
				{"name": "conditionId", "type": "bytes32"},
				{"name": "partition", "type": "uint256[]"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": []
		},
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "id", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("ctf abi parse: " + err.Error())
	}

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "owner", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// Contracts reads and encodes calls against the CTF and collateral contracts
// for one ledger connection.
type Contracts struct {
	client     Client
	ctf        common.Address
	collateral common.Address
}

// NewContracts binds the contract helpers to a client and a pair of contract
// addresses.
func NewContracts(client Client, ctfAddress, collateralAddress string) *Contracts {
	return &Contracts{
		client:     client,
		ctf:        common.HexToAddress(ctfAddress),
		collateral: common.HexToAddress(collateralAddress),
	}
}

// CTFAddress returns the conditional-token contract address.
func (c *Contracts) CTFAddress() common.Address {
	return c.ctf
}

// CollateralAddress returns the collateral token contract address.
func (c *Contracts) CollateralAddress() common.Address {
	return c.collateral
}

// MergeCalldata encodes a mergePositions call converting amount YES+NO pairs
// of the given condition back into collateral. Partition [1, 2] selects the
// two outcome slots; the parent collection id is zero for top-level markets.
func (c *Contracts) MergeCalldata(conditionID common.Hash, amount fixedpoint.Amount) ([]byte, error) {
	data, err := ctfABI.Pack("mergePositions",
		c.collateral,
		common.Hash{},
		conditionID,
		[]*big.Int{big.NewInt(1), big.NewInt(2)},
		amount.BigInt(),
	)
	if err != nil {
		return nil, fmt.Errorf("pack mergePositions: %w", err)
	}
	return data, nil
}

// ApproveCalldata encodes an ERC20 approve of the collateral token.
func (c *Contracts) ApproveCalldata(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}

// PositionBalance reads the ERC1155 outcome-token balance for an owner.
func (c *Contracts) PositionBalance(ctx context.Context, owner common.Address, tokenID *big.Int) (fixedpoint.Amount, error) {
	data, err := ctfABI.Pack("balanceOf", owner, tokenID)
	if err != nil {
		return 0, fmt.Errorf("pack balanceOf: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.ctf, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call contract: %w", err)
	}

	return fixedpoint.FromBigInt(new(big.Int).SetBytes(result)), nil
}

// CollateralBalance reads the collateral token balance for an owner.
func (c *Contracts) CollateralBalance(ctx context.Context, owner common.Address) (fixedpoint.Amount, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return 0, fmt.Errorf("pack balanceOf: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.collateral, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call contract: %w", err)
	}

	return fixedpoint.FromBigInt(new(big.Int).SetBytes(result)), nil
}
