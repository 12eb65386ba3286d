package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one official price observation from an external provider.
type Quote struct {
	Symbol     string
	Price      decimal.Decimal
	Source     string    // provider label, e.g. "finnhub", "synthetic"
	ProviderTs time.Time // timestamp reported by the provider
	FetchedAt  time.Time // local fetch time
}
