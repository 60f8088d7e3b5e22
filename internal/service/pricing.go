package service

import (
	"math"

	"sitegen/internal/config"
)

const (
	MinPurchaseCredits = 1
	MaxPurchaseCredits = 1000
)

type Quote struct {
	Credits        int64   `json:"credits"`
	PricePerCredit float64 `json:"price_per_credit"`
	Currency       string  `json:"currency"`
	Total          float64 `json:"quote"`
}

// PricingService quotes credit purchases. Taking payment is out of scope;
// credits are granted through admin adjustments.
type PricingService struct {
	pricePerCredit float64
	currency       string
}

func NewPricingService(cfg *config.BusinessConfig) *PricingService {
	return &PricingService{pricePerCredit: cfg.PricePerCredit, currency: cfg.Currency}
}

func (s *PricingService) Quote(credits int64) (*Quote, error) {
	if credits < MinPurchaseCredits || credits > MaxPurchaseCredits {
		return nil, invalid("credits must be between 1 and 1000")
	}
	return &Quote{
		Credits:        credits,
		PricePerCredit: s.pricePerCredit,
		Currency:       s.currency,
		Total:          math.Round(float64(credits)*s.pricePerCredit*100) / 100,
	}, nil
}
