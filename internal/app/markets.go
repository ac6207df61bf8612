package app

import (
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/quotes"
)

// handleNewMarkets feeds newly discovered markets into the quote feed.
func (a *App) handleNewMarkets() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case market, ok := <-a.discoverySvc.NewMarkets():
			if !ok {
				return
			}
			a.watchMarket(market)
		}
	}
}

func (a *App) watchMarket(market quotes.Market) {
	if err := a.feed.Watch(a.ctx, []quotes.Market{market}); err != nil {
		a.logger.Error("watch-market-failed",
			zap.String("market-id", market.MarketID),
			zap.Error(err))
		return
	}

	a.logger.Info("watching-market", zap.String("market-id", market.MarketID))
}
