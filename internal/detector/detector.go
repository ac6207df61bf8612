// Package detector evaluates market quotes for riskless arbitrage. A binary
// market where YES and NO together cost less than $1.00 after fees can be
// bought on both sides and merged for exactly $1.00 of collateral, so
// detection reduces to exact fee-inclusive cost arithmetic plus a minimum
// profit threshold.
package detector

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/feecalc"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// Strategy tags how an opportunity was found.
type Strategy string

const (
	StrategySingleVenue Strategy = "single_venue"
	StrategyCrossVenue  Strategy = "cross_venue"
)

// DefaultMinProfitPct is the minimum profit as a fraction of total cost.
var DefaultMinProfitPct = fixedpoint.MustParse("0.005")

// Opportunity is a fully-costed arbitrage candidate. Prices and fees are the
// values the detector evaluated; execution may still fill worse and must
// re-check against these.
type Opportunity struct {
	ID          string
	Strategy    Strategy
	MarketID    string
	ConditionID string

	YesTokenID string
	NoTokenID  string
	YesVenue   string
	NoVenue    string

	YesPrice fixedpoint.Amount
	NoPrice  fixedpoint.Amount
	YesFee   fixedpoint.Amount
	NoFee    fixedpoint.Amount

	TotalCost      fixedpoint.Amount // per pair, fee inclusive
	ExpectedProfit fixedpoint.Amount // per pair: 1.00 - TotalCost
	ProfitPct      fixedpoint.Amount // ExpectedProfit / TotalCost

	PositionSize fixedpoint.Amount // pairs to execute, set by the sizer
	DetectedAt   time.Time
}

// Config holds detector configuration.
type Config struct {
	MinProfitPct fixedpoint.Amount
	Fees         feecalc.Calculator
	Logger       *zap.Logger
}

// Detector finds arbitrage opportunities in quotes.
type Detector struct {
	minProfitPct fixedpoint.Amount
	fees         feecalc.Calculator
	logger       *zap.Logger
}

// New creates a detector. A zero MinProfitPct falls back to the default and a
// nil fee calculator falls back to the dynamic schedule.
func New(cfg Config) *Detector {
	if cfg.MinProfitPct <= 0 {
		cfg.MinProfitPct = DefaultMinProfitPct
	}
	if cfg.Fees == nil {
		cfg.Fees = feecalc.NewDynamic()
	}

	return &Detector{
		minProfitPct: cfg.MinProfitPct,
		fees:         cfg.Fees,
		logger:       cfg.Logger,
	}
}

// Detect evaluates one quote. It returns nil when no opportunity clears the
// profit threshold, and an error only when the quote itself is malformed.
func (d *Detector) Detect(quote types.MarketQuote) (*Opportunity, error) {
	if err := validPrice("yes_price", quote.YesPrice); err != nil {
		return nil, err
	}
	if err := validPrice("no_price", quote.NoPrice); err != nil {
		return nil, err
	}

	yesFee, noFee, totalCost := d.fees.TotalCost(quote.YesPrice, quote.NoPrice)
	profit := fixedpoint.One - totalCost
	if profit <= 0 {
		QuotesEvaluated.WithLabelValues("no_edge").Inc()
		return nil, nil
	}

	profitPct := profit.Div(totalCost)
	if profitPct < d.minProfitPct {
		QuotesEvaluated.WithLabelValues("below_threshold").Inc()
		return nil, nil
	}

	opp := &Opportunity{
		ID:             uuid.New().String(),
		Strategy:       StrategySingleVenue,
		MarketID:       quote.MarketID,
		ConditionID:    quote.ConditionID,
		YesTokenID:     quote.YesTokenID,
		NoTokenID:      quote.NoTokenID,
		YesPrice:       quote.YesPrice,
		NoPrice:        quote.NoPrice,
		YesFee:         yesFee,
		NoFee:          noFee,
		TotalCost:      totalCost,
		ExpectedProfit: profit,
		ProfitPct:      profitPct,
		DetectedAt:     quote.Timestamp,
	}
	if opp.DetectedAt.IsZero() {
		opp.DetectedAt = time.Now()
	}

	QuotesEvaluated.WithLabelValues("opportunity").Inc()
	OpportunityProfitPct.Observe(profitPct.Float64())
	d.logger.Info("opportunity-detected",
		zap.String("opportunity-id", opp.ID),
		zap.String("market-id", opp.MarketID),
		zap.String("yes-price", opp.YesPrice.String()),
		zap.String("no-price", opp.NoPrice.String()),
		zap.String("total-cost", opp.TotalCost.String()),
		zap.String("expected-profit", opp.ExpectedProfit.String()))

	return opp, nil
}

// DetectCrossVenue evaluates the same market priced independently on two
// venues. Both pairings are costed with each venue's withdrawal surcharge
// folded into its leg; the more profitable direction is returned when it
// clears the threshold.
func (d *Detector) DetectCrossVenue(marketID, conditionID string, yesA, noA, yesB, noB types.VenueQuote) (*Opportunity, error) {
	legs := []struct {
		yes, no types.VenueQuote
	}{
		{yesA, noB},
		{yesB, noA},
	}

	var best *Opportunity
	for _, pair := range legs {
		opp, err := d.costCrossVenue(marketID, conditionID, pair.yes, pair.no)
		if err != nil {
			return nil, err
		}
		if opp == nil {
			continue
		}
		if best == nil || opp.ExpectedProfit > best.ExpectedProfit {
			best = opp
		}
	}

	if best != nil {
		QuotesEvaluated.WithLabelValues("opportunity").Inc()
		OpportunityProfitPct.Observe(best.ProfitPct.Float64())
		d.logger.Info("cross-venue-opportunity-detected",
			zap.String("opportunity-id", best.ID),
			zap.String("market-id", best.MarketID),
			zap.String("yes-venue", best.YesVenue),
			zap.String("no-venue", best.NoVenue),
			zap.String("expected-profit", best.ExpectedProfit.String()))
	}
	return best, nil
}

func (d *Detector) costCrossVenue(marketID, conditionID string, yes, no types.VenueQuote) (*Opportunity, error) {
	if err := validPrice("yes_price", yes.Price); err != nil {
		return nil, err
	}
	if err := validPrice("no_price", no.Price); err != nil {
		return nil, err
	}

	yesFee, noFee, totalCost := d.fees.TotalCost(yes.Price, no.Price)
	totalCost += yes.WithdrawalFee + no.WithdrawalFee

	profit := fixedpoint.One - totalCost
	if profit <= 0 {
		return nil, nil
	}
	profitPct := profit.Div(totalCost)
	if profitPct < d.minProfitPct {
		return nil, nil
	}

	return &Opportunity{
		ID:             uuid.New().String(),
		Strategy:       StrategyCrossVenue,
		MarketID:       marketID,
		ConditionID:    conditionID,
		YesTokenID:     yes.TokenID,
		NoTokenID:      no.TokenID,
		YesVenue:       yes.Venue,
		NoVenue:        no.Venue,
		YesPrice:       yes.Price,
		NoPrice:        no.Price,
		YesFee:         yesFee,
		NoFee:          noFee,
		TotalCost:      totalCost,
		ExpectedProfit: profit,
		ProfitPct:      profitPct,
		DetectedAt:     time.Now(),
	}, nil
}

func validPrice(field string, price fixedpoint.Amount) error {
	if price <= 0 || price >= fixedpoint.One {
		return &types.ValidationError{Field: field, Reason: "must be in (0, 1), got " + price.String()}
	}
	return nil
}
