// Package txmgr owns the trading wallet's nonce sequence and the set of
// broadcast-but-unconfirmed transactions. Every blockchain write in the
// system goes through the Manager; no other component tracks nonces.
package txmgr

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/ledger"
	"github.com/quantfold/polyarb/pkg/types"
)

// Payload describes one transaction to broadcast. GasPrice is optional; the
// chain's suggested price is used when nil.
type Payload struct {
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// PendingTransaction is one broadcast-but-unconfirmed write. The payload is
// retained so a stuck transaction can be rebuilt and resubmitted with the
// same nonce.
type PendingTransaction struct {
	Hash        common.Hash
	Nonce       uint64
	SubmittedAt time.Time
	GasPrice    *big.Int
	Payload     Payload
}

// Config holds transaction manager configuration.
type Config struct {
	MaxPending     int           // hard admission-control cap on in-flight writes
	StuckAfter     time.Duration // age after which a pending tx counts as stuck
	ConfirmTimeout time.Duration // default AwaitConfirmation bound
	PollInterval   time.Duration // receipt polling interval
	Logger         *zap.Logger
}

// Defaults for zero-valued Config fields.
const (
	DefaultMaxPending     = 5
	DefaultStuckAfter     = 60 * time.Second
	DefaultConfirmTimeout = 120 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

// Manager serializes nonce allocation and tracks pending transactions for a
// single signer.
type Manager struct {
	client ledger.Client
	signer *ledger.Signer
	cfg    Config
	logger *zap.Logger

	// All nonce and pending-set state below is guarded by mu. This is the
	// one critical section in the system; it must not grow to cover order
	// submission or merging.
	mu        sync.Mutex
	localNext uint64
	hasLocal  bool
	reserved  map[uint64]struct{}
	pending   map[common.Hash]*PendingTransaction
	admitted  int // sends past the capacity check but not yet recorded
}

// New creates a transaction manager for the given client and signer.
func New(client ledger.Client, signer *ledger.Signer, cfg Config) *Manager {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = DefaultStuckAfter
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Manager{
		client:   client,
		signer:   signer,
		cfg:      cfg,
		logger:   cfg.Logger,
		reserved: make(map[uint64]struct{}),
		pending:  make(map[common.Hash]*PendingTransaction),
	}
}

// AllocateNonce reserves and returns the next free nonce. It re-reads the
// chain's pending nonce on every call so externally-caused advancement is
// absorbed, takes the max with the local counter, and skips nonces still
// reserved by in-flight transactions. A nonce is never handed out twice,
// even after its transaction confirms and the reservation is released.
func (m *Manager) AllocateNonce(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.allocateNonceLocked(ctx)
}

func (m *Manager) allocateNonceLocked(ctx context.Context) (uint64, error) {
	chainNonce, err := m.client.PendingNonceAt(ctx, m.signer.Address())
	if err != nil {
		return 0, &types.TransactionError{Kind: types.TxErrBroadcast, Err: err}
	}

	if !m.hasLocal || chainNonce > m.localNext {
		m.localNext = chainNonce
		m.hasLocal = true
	}

	nonce := m.localNext
	for {
		if _, taken := m.reserved[nonce]; !taken {
			break
		}
		nonce++
	}

	m.reserved[nonce] = struct{}{}
	m.localNext = nonce + 1

	NoncesAllocatedTotal.Inc()
	m.logger.Debug("nonce-allocated",
		zap.Uint64("nonce", nonce),
		zap.Uint64("chain-nonce", chainNonce),
		zap.Int("reserved", len(m.reserved)))

	return nonce, nil
}

// Send signs and broadcasts a transaction for the payload and records it as
// pending. The capacity check runs before nonce allocation, so a rejected
// send never consumes a nonce.
func (m *Manager) Send(ctx context.Context, payload Payload) (common.Hash, error) {
	m.mu.Lock()
	inFlight := len(m.pending) + m.admitted
	if inFlight >= m.cfg.MaxPending {
		m.mu.Unlock()
		CapacityRejectionsTotal.Inc()
		return common.Hash{}, &types.CapacityError{Pending: inFlight, Max: m.cfg.MaxPending}
	}
	m.admitted++

	nonce, err := m.allocateNonceLocked(ctx)
	if err != nil {
		m.admitted--
		m.mu.Unlock()
		return common.Hash{}, err
	}
	m.mu.Unlock()

	hash, err := m.broadcast(ctx, payload, nonce)
	if err != nil {
		// Release the reservation; the local counter stays advanced so
		// the nonce is never handed out again by this process.
		m.mu.Lock()
		delete(m.reserved, nonce)
		m.admitted--
		m.mu.Unlock()
		return common.Hash{}, err
	}

	m.mu.Lock()
	m.admitted--
	m.mu.Unlock()

	return hash, nil
}

// broadcast signs, sends and records one transaction at the given nonce.
func (m *Manager) broadcast(ctx context.Context, payload Payload, nonce uint64) (common.Hash, error) {
	gasPrice := payload.GasPrice
	if gasPrice == nil {
		suggested, err := m.client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, &types.TransactionError{Kind: types.TxErrBroadcast, Err: err}
		}
		gasPrice = suggested
	}

	value := payload.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := ethtypes.NewTransaction(nonce, payload.To, value, payload.GasLimit, gasPrice, payload.Data)

	signed, err := m.signer.Sign(tx)
	if err != nil {
		return common.Hash{}, &types.TransactionError{Kind: types.TxErrSign, Err: err}
	}

	err = m.client.SendTransaction(ctx, signed)
	if err != nil {
		return common.Hash{}, &types.TransactionError{Kind: types.TxErrBroadcast, Err: err}
	}

	hash := signed.Hash()

	m.mu.Lock()
	m.pending[hash] = &PendingTransaction{
		Hash:        hash,
		Nonce:       nonce,
		SubmittedAt: time.Now(),
		GasPrice:    new(big.Int).Set(gasPrice),
		Payload:     payload,
	}
	PendingTransactions.Set(float64(len(m.pending)))
	m.mu.Unlock()

	TransactionsSentTotal.Inc()
	m.logger.Info("transaction-sent",
		zap.String("tx-hash", hash.Hex()),
		zap.Uint64("nonce", nonce),
		zap.String("gas-price", gasPrice.String()))

	return hash, nil
}

// AwaitConfirmation polls for a receipt until timeout. Confirmation retires
// the pending entry and releases the nonce; an on-chain revert is a hard
// failure. A timeout returns an error without discarding the entry, which
// remains trackable as possibly stuck.
func (m *Manager) AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (*ethtypes.Receipt, error) {
	if timeout <= 0 {
		timeout = m.cfg.ConfirmTimeout
	}

	start := time.Now()
	deadline := start.Add(timeout)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := m.client.TransactionReceipt(ctx, hash)
		if err != nil && !ledger.IsNotFound(err) {
			m.logger.Warn("receipt-poll-failed",
				zap.String("tx-hash", hash.Hex()),
				zap.Error(err))
		}

		if receipt != nil {
			m.retire(hash)
			ConfirmationWaitSeconds.Observe(time.Since(start).Seconds())

			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				ConfirmationsTotal.WithLabelValues("reverted").Inc()
				m.logger.Error("transaction-reverted", zap.String("tx-hash", hash.Hex()))
				return nil, &types.TransactionError{Kind: types.TxErrReverted, Hash: hash.Hex()}
			}

			ConfirmationsTotal.WithLabelValues("success").Inc()
			m.logger.Info("transaction-confirmed",
				zap.String("tx-hash", hash.Hex()),
				zap.Uint64("gas-used", receipt.GasUsed))
			return receipt, nil
		}

		if time.Now().After(deadline) {
			ConfirmationsTotal.WithLabelValues("timeout").Inc()
			return nil, &types.TransactionError{Kind: types.TxErrTimeout, Hash: hash.Hex()}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ResubmitStuck replaces a stuck transaction with an identical payload at the
// same nonce and a 10% higher gas price (rounded up). It first re-checks
// whether the transaction was mined in the interim; if so, it is treated as
// confirmed and the original hash is returned.
func (m *Manager) ResubmitStuck(ctx context.Context, hash common.Hash) (common.Hash, error) {
	m.mu.Lock()
	entry, ok := m.pending[hash]
	m.mu.Unlock()
	if !ok {
		return common.Hash{}, &types.ValidationError{Field: "tx-hash", Reason: "not tracked as pending: " + hash.Hex()}
	}

	receipt, err := m.client.TransactionReceipt(ctx, hash)
	if err == nil && receipt != nil {
		m.logger.Info("stuck-transaction-already-mined", zap.String("tx-hash", hash.Hex()))
		m.retire(hash)
		return hash, nil
	}

	newGasPrice := bumpGasPrice(entry.GasPrice)

	payload := entry.Payload
	payload.GasPrice = newGasPrice

	gasValue := payload.Value
	if gasValue == nil {
		gasValue = big.NewInt(0)
	}

	tx := ethtypes.NewTransaction(entry.Nonce, payload.To, gasValue, payload.GasLimit, newGasPrice, payload.Data)

	signed, err := m.signer.Sign(tx)
	if err != nil {
		return common.Hash{}, &types.TransactionError{Kind: types.TxErrSign, Err: err}
	}

	err = m.client.SendTransaction(ctx, signed)
	if err != nil {
		return common.Hash{}, &types.TransactionError{Kind: types.TxErrBroadcast, Err: err}
	}

	newHash := signed.Hash()

	m.mu.Lock()
	delete(m.pending, hash)
	m.pending[newHash] = &PendingTransaction{
		Hash:        newHash,
		Nonce:       entry.Nonce,
		SubmittedAt: time.Now(),
		GasPrice:    newGasPrice,
		Payload:     payload,
	}
	PendingTransactions.Set(float64(len(m.pending)))
	m.mu.Unlock()

	ResubmissionsTotal.Inc()
	m.logger.Info("stuck-transaction-resubmitted",
		zap.String("old-tx-hash", hash.Hex()),
		zap.String("new-tx-hash", newHash.Hex()),
		zap.Uint64("nonce", entry.Nonce),
		zap.String("old-gas-price", entry.GasPrice.String()),
		zap.String("new-gas-price", newGasPrice.String()))

	return newHash, nil
}

// bumpGasPrice returns ceil(old * 1.1).
func bumpGasPrice(old *big.Int) *big.Int {
	bumped := new(big.Int).Mul(old, big.NewInt(11))
	bumped.Add(bumped, big.NewInt(9))
	bumped.Quo(bumped, big.NewInt(10))
	return bumped
}

// Reconcile polls every pending entry for a receipt and retires those that
// confirmed without AwaitConfirmation observing it. Returns the number of
// entries retired.
func (m *Manager) Reconcile(ctx context.Context) int {
	m.mu.Lock()
	hashes := make([]common.Hash, 0, len(m.pending))
	for h := range m.pending {
		hashes = append(hashes, h)
	}
	m.mu.Unlock()

	var retired int
	for _, h := range hashes {
		receipt, err := m.client.TransactionReceipt(ctx, h)
		if err != nil || receipt == nil {
			continue
		}
		m.retire(h)
		retired++
	}

	if retired > 0 {
		m.logger.Info("pending-transactions-reconciled", zap.Int("retired", retired))
	}
	return retired
}

// StuckTransactions returns pending entries older than the stuck threshold.
func (m *Manager) StuckTransactions() []*PendingTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var stuck []*PendingTransaction
	for _, entry := range m.pending {
		if now.Sub(entry.SubmittedAt) > m.cfg.StuckAfter {
			stuck = append(stuck, entry)
		}
	}
	return stuck
}

// PendingCount returns the number of tracked pending transactions.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// SuggestGasPrice proxies the chain's current gas price for collaborators
// that report gas cost estimates.
func (m *Manager) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return m.client.SuggestGasPrice(ctx)
}

// retire removes a confirmed entry and releases its nonce reservation.
func (m *Manager) retire(hash common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pending[hash]
	if !ok {
		return
	}

	delete(m.pending, hash)
	delete(m.reserved, entry.Nonce)
	PendingTransactions.Set(float64(len(m.pending)))

	m.logger.Debug("pending-transaction-retired",
		zap.String("tx-hash", hash.Hex()),
		zap.Uint64("nonce", entry.Nonce))
}
