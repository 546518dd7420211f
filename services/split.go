package services

import "math"

// Split is the commission/tax/provider breakdown of a gross payment amount.
// tax + commission + provider always reconstruct the gross to the cent: the
// provider share is computed as the residual after rounding the other two.
type Split struct {
	Tax            float64
	Commission     float64
	ProviderAmount float64
}

// ComputeSplit breaks a gross amount into tax, platform commission and
// provider share. A positive taxRate means the gross is tax-inclusive:
// tax = gross * rate / (100 + rate). Commission is taken from the net base.
// Card and cash settlements both go through here so the two paths can never
// silently diverge.
func ComputeSplit(gross, taxRate, commissionRate float64) Split {
	var tax float64
	if taxRate > 0 {
		tax = round2(gross * taxRate / (100 + taxRate))
	}

	netBase := gross - tax
	commission := round2(netBase * commissionRate / 100)
	provider := round2(gross - tax - commission)

	return Split{
		Tax:            tax,
		Commission:     commission,
		ProviderAmount: provider,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
