// Package venue implements the CLOB client used to submit, cancel and price
// orders. Orders are EIP-712 signed off-chain and authenticated with the
// venue's HMAC scheme.
package venue

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantfold/polyarb/internal/orders"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

const (
	DefaultBaseURL = "https://clob.polymarket.com"
	zeroAddress    = "0x0000000000000000000000000000000000000000"
)

// Config holds CLOB client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Secret     string
	Passphrase string

	PrivateKey    string // hex, with or without 0x prefix
	ProxyAddress  string // maker/funder when trading through a proxy wallet
	SignatureType int
	ChainID       int64

	RequestsPerSecond float64 // venue rate limit, default 10
	Timeout           time.Duration
	Logger            *zap.Logger
}

// Client talks to one CLOB venue.
type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	passphrase string

	privateKey    *ecdsa.PrivateKey
	address       string
	proxyAddress  string
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder

	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a CLOB client. The signing address is derived from the private
// key; orders are built for the configured chain (Polygon when zero).
func New(cfg Config) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	address := crypto.PubkeyToAddress(*privateKey.Public().(*ecdsa.PublicKey)).Hex()

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 137
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(cfg.ChainID), nil),
		http:          &http.Client{Timeout: cfg.Timeout},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)),
		logger:        cfg.Logger,
	}, nil
}

// Address returns the signing address.
func (c *Client) Address() string {
	return c.address
}

type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type orderResponse struct {
	OrderID   string `json:"orderID"`
	Status    string `json:"status"`
	Success   bool   `json:"success"`
	ErrorMsg  string `json:"errorMsg"`
	TakingAmt string `json:"takingAmount"`
	MakingAmt string `json:"makingAmount"`
}

// SubmitOrder signs and posts one Fill-Or-Kill buy. A venue rejection with
// the not-filled code is a clean miss, reported as an unfilled Result rather
// than an error; any other rejection is an error.
func (c *Client) SubmitOrder(ctx context.Context, o *orders.Order) (*orders.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	maker := c.address
	if c.proxyAddress != "" {
		maker = c.proxyAddress
	}

	// Buying o.Size outcome tokens with o.Price*o.Size collateral.
	makerAmount := o.Price.Mul(o.Size)
	orderData := &model.OrderData{
		Maker:         maker,
		Taker:         zeroAddress,
		TokenId:       o.TokenID,
		MakerAmount:   makerAmount.BigInt().String(),
		TakerAmount:   o.Size.BigInt().String(),
		Side:          model.BUY,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signed, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"order":     toJSONOrder(signed),
		"owner":     c.apiKey,
		"orderType": "FOK",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/order", reqBody)
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		if strings.Contains(resp.ErrorMsg, types.ErrCodeFOKNotFilled) {
			return &orders.Result{Filled: false}, nil
		}
		return nil, fmt.Errorf("order rejected (status %d): %s", status, string(body))
	}
	if resp.ErrorMsg != "" {
		if strings.Contains(resp.ErrorMsg, types.ErrCodeFOKNotFilled) {
			return &orders.Result{Filled: false}, nil
		}
		return nil, fmt.Errorf("order rejected: %s", resp.ErrorMsg)
	}

	fillPrice := c.fillPrice(o, resp)
	c.logger.Debug("order-accepted",
		zap.String("order-id", resp.OrderID),
		zap.String("token-id", o.TokenID),
		zap.String("fill-price", fillPrice.String()))

	return &orders.Result{
		Filled:        true,
		FillPrice:     fillPrice,
		SettlementRef: resp.OrderID,
	}, nil
}

// fillPrice derives the realized price from the matched amounts, falling back
// to the limit price when the venue omits them.
func (c *Client) fillPrice(o *orders.Order, resp orderResponse) fixedpoint.Amount {
	making, okM := new(big.Int).SetString(resp.MakingAmt, 10)
	taking, okT := new(big.Int).SetString(resp.TakingAmt, 10)
	if !okM || !okT || taking.Sign() == 0 {
		return o.Price
	}
	spent := fixedpoint.FromBigInt(making)
	got := fixedpoint.FromBigInt(taking)
	if got <= 0 {
		return o.Price
	}
	return spent.Div(got)
}

type cancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// CancelOrder asks the venue to cancel an order. The bool reports whether the
// venue actually canceled it; an already-matched order returns false with no
// error.
func (c *Client) CancelOrder(ctx context.Context, ref string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	reqBody, err := json.Marshal(map[string]string{"orderID": ref})
	if err != nil {
		return false, fmt.Errorf("marshal cancel: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodDelete, "/order", reqBody)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("cancel rejected (status %d): %s", status, string(body))
	}

	var resp cancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("parse cancel response: %w", err)
	}
	for _, id := range resp.Canceled {
		if id == ref {
			return true, nil
		}
	}
	if reason, ok := resp.NotCanceled[ref]; ok {
		c.logger.Warn("cancel-refused",
			zap.String("order-id", ref),
			zap.String("reason", reason))
	}
	return false, nil
}

type priceResponse struct {
	Price string `json:"price"`
}

// Price fetches the best executable price for a token on one side of the
// book. It is a public endpoint and carries no auth headers.
func (c *Client) Price(ctx context.Context, tokenID, side string) (fixedpoint.Amount, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/price?token_id=%s&side=%s", c.baseURL, tokenID, side)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return 0, fmt.Errorf("parse price response: %w", err)
	}
	return fixedpoint.Parse(pr.Price)
}

// do sends an authenticated request and returns the body and status code.
// Non-2xx statuses are returned to the caller for endpoint-specific handling.
func (c *Client) do(ctx context.Context, method, path string, reqBody []byte) ([]byte, int, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature, err := c.sign(timestamp, method, path, reqBody)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// sign computes the URL-safe base64 HMAC over timestamp+method+path+body.
func (c *Client) sign(timestamp, method, path string, body []byte) (string, error) {
	secret, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(timestamp + method + path))
	h.Write(body)
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

func toJSONOrder(order *model.SignedOrder) signedOrderJSON {
	side := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		side = "SELL"
	}
	return signedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          side,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}
}
