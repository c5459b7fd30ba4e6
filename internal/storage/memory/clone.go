package memory

import (
	"math/big"

	"round-indexer/internal/domain"
)

// Stores hand out copies so callers can never mutate shared state.
// big.Int and pointer fields need a deep copy; the shallow struct copy
// alone would alias them.

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneRound(r *domain.Round) *domain.Round {
	c := *r
	c.Founder = cloneString(r.Founder)
	c.EquityToken = cloneString(r.EquityToken)
	c.TargetRaise = cloneBig(r.TargetRaise)
	c.TotalRaised = cloneBig(r.TotalRaised)
	c.TotalWithdrawn = cloneBig(r.TotalWithdrawn)
	c.TokensIssued = cloneBig(r.TokensIssued)
	return &c
}

func cloneInvestment(inv *domain.Investment) *domain.Investment {
	c := *inv
	c.USDCAmount = cloneBig(inv.USDCAmount)
	c.TokensReceived = cloneBig(inv.TokensReceived)
	c.TotalRaised = cloneBig(inv.TotalRaised)
	return &c
}

func cloneWithdrawal(w *domain.Withdrawal) *domain.Withdrawal {
	c := *w
	c.PrincipalAmount = cloneBig(w.PrincipalAmount)
	c.YieldAmount = cloneBig(w.YieldAmount)
	c.TotalAmount = cloneBig(w.TotalAmount)
	return &c
}

func cloneYieldClaim(y *domain.YieldClaim) *domain.YieldClaim {
	c := *y
	c.Amount = cloneBig(y.Amount)
	return &c
}

func cloneYieldDistribution(d *domain.YieldDistribution) *domain.YieldDistribution {
	c := *d
	c.TotalYield = cloneBig(d.TotalYield)
	c.FounderYield = cloneBig(d.FounderYield)
	c.InvestorYield = cloneBig(d.InvestorYield)
	return &c
}

func cloneStats(s *domain.PlatformStats) *domain.PlatformStats {
	c := *s
	c.TotalRaised = cloneBig(s.TotalRaised)
	return &c
}

func cloneArchivedEvent(e *domain.ArchivedEvent) *domain.ArchivedEvent {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	return &c
}
