// Package wallet reads the funding wallet's balances and open positions and
// exposes them as Prometheus gauges via the Tracker.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

const (
	// Polymarket CTF Exchange on Polygon, the collateral allowance spender.
	defaultExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	dataAPIBaseURL         = "https://data-api.polymarket.com"
)

// ChainReader is the on-chain read surface the client needs.
// *ethclient.Client satisfies it.
type ChainReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client fetches wallet balances from the chain and open positions from the
// Polymarket Data API.
type Client struct {
	chain      ChainReader
	collateral common.Address
	spender    common.Address
	dataAPI    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Balances holds the funding wallet's balances.
type Balances struct {
	Native     *big.Int          // gas token, in wei
	Collateral fixedpoint.Amount // USDC
	Allowance  fixedpoint.Amount // USDC approved to the exchange
}

// Position is an open market position reported by the Data API.
type Position struct {
	MarketSlug   string
	Outcome      string
	Size         float64
	Value        float64
	InitialValue float64
	CashPnL      float64
	PercentPnL   float64
}

type dataAPIPosition struct {
	Size         float64 `json:"size"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CashPnL      float64 `json:"cashPnl"`
	PercentPnL   float64 `json:"percentPnl"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
}

// NewClient creates a wallet client. An empty exchangeAddress uses the
// Polygon CTF Exchange.
func NewClient(chain ChainReader, collateralAddress, exchangeAddress string, logger *zap.Logger) (*Client, error) {
	if chain == nil {
		return nil, errors.New("chain reader cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if exchangeAddress == "" {
		exchangeAddress = defaultExchangeAddress
	}

	return &Client{
		chain:      chain,
		collateral: common.HexToAddress(collateralAddress),
		spender:    common.HexToAddress(exchangeAddress),
		dataAPI:    dataAPIBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

// GetBalances fetches the wallet's native, collateral and allowance balances.
func (c *Client) GetBalances(ctx context.Context, address common.Address) (*Balances, error) {
	native, err := c.chain.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}

	collateral, err := c.erc20Balance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get collateral balance: %w", err)
	}

	allowance, err := c.erc20Allowance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get collateral allowance: %w", err)
	}

	return &Balances{
		Native:     native,
		Collateral: fixedpoint.FromBigInt(collateral),
		Allowance:  fixedpoint.FromBigInt(allowance),
	}, nil
}

func (c *Client) erc20Balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	balanceOfABI := `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	result, err := c.chain.CallContract(ctx, ethereum.CallMsg{To: &c.collateral, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

func (c *Client) erc20Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	allowanceABI := `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(allowanceABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("allowance", owner, c.spender)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	result, err := c.chain.CallContract(ctx, ethereum.CallMsg{To: &c.collateral, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// GetPositions fetches open positions from the Data API. Dust below the
// size threshold is filtered server-side.
func (c *Client) GetPositions(ctx context.Context, address string) ([]Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.01", c.dataAPI, address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var apiPositions []dataAPIPosition
	if err := json.NewDecoder(resp.Body).Decode(&apiPositions); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	positions := make([]Position, 0, len(apiPositions))
	for _, pos := range apiPositions {
		if pos.Size <= 0 {
			continue
		}
		positions = append(positions, Position{
			MarketSlug:   pos.Slug,
			Outcome:      pos.Outcome,
			Size:         pos.Size,
			Value:        pos.CurrentValue,
			InitialValue: pos.InitialValue,
			CashPnL:      pos.CashPnL,
			PercentPnL:   pos.PercentPnL,
		})
	}

	return positions, nil
}
