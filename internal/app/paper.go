package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/orders"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// paperVenue simulates the venue for paper trading: every order fills at its
// limit price.
type paperVenue struct {
	logger *zap.Logger
}

func (v *paperVenue) SubmitOrder(ctx context.Context, o *orders.Order) (*orders.Result, error) {
	v.logger.Info("paper-order-filled",
		zap.String("order-id", o.ID),
		zap.String("side", string(o.Side)),
		zap.String("price", o.Price.String()),
		zap.String("size", o.Size.String()))

	return &orders.Result{
		Filled:        true,
		FillPrice:     o.Price,
		SettlementRef: "paper-" + uuid.New().String(),
	}, nil
}

func (v *paperVenue) CancelOrder(ctx context.Context, ref string) (bool, error) {
	return true, nil
}

// paperMerger simulates merges: every merge redeems exactly the merged
// amount at zero gas.
type paperMerger struct{}

func (m *paperMerger) Merge(ctx context.Context, conditionID common.Hash, yesToken, noToken *big.Int, amount fixedpoint.Amount) (*ethtypes.Receipt, error) {
	return &ethtypes.Receipt{
		Status:            ethtypes.ReceiptStatusSuccessful,
		TxHash:            common.Hash{},
		GasUsed:           0,
		EffectiveGasPrice: big.NewInt(0),
	}, nil
}

func (m *paperMerger) Halted() bool {
	return false
}
