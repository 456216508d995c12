// Package tariff derives buy/sell prices from a raw spot price using the
// fixed regulatory surcharges configured for a run.
package tariff

import "github.com/oakfield-energy/battery-dispatch/config"

// Price holds the spot price alongside the derived buy/sell prices, all in
// SEK/kWh.
type Price struct {
	Spot float64
	Buy  float64
	Sell float64
}

// Constants carries the four surcharge/rebate figures §4.A derives buy/sell
// from. Centralizing them here (instead of reading *config.Config directly
// from every caller) keeps tariff a pure, state-free package per its
// contract.
type Constants struct {
	DeliveryFee float64
	EnergyTax   float64
	GridBenefit float64
	TaxRebate   float64
}

// ConstantsFromConfig extracts the tariff constants carried in cfg.
func ConstantsFromConfig(cfg *config.Config) Constants {
	return Constants{
		DeliveryFee: cfg.DeliveryFee,
		EnergyTax:   cfg.EnergyTax,
		GridBenefit: cfg.GridBenefit,
		TaxRebate:   cfg.TaxRebate,
	}
}

// Derive computes buy = spot + delivery_fee + energy_tax and
// sell = spot + grid_benefit + tax_rebate. It is a pure function: negative
// spot prices propagate unchanged, since the day-ahead market permits them.
func (c Constants) Derive(spot float64) Price {
	return Price{
		Spot: spot,
		Buy:  spot + c.DeliveryFee + c.EnergyTax,
		Sell: spot + c.GridBenefit + c.TaxRebate,
	}
}
