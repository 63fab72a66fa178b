// Package ledger holds the simulated portfolio and applies rebalance
// transitions to it.
package ledger

import (
	"sort"

	"github.com/bobmcallan/navrank/internal/models"
)

// Portfolio is the set of open positions plus a cash balance.
// It is mutated only by Ledger.Rebalance.
type Portfolio struct {
	cash      float64
	positions map[string]models.Position
}

// NewPortfolio creates an empty portfolio holding only cash
func NewPortfolio(cash float64) *Portfolio {
	return &Portfolio{
		cash:      cash,
		positions: make(map[string]models.Position),
	}
}

// Cash returns the uninvested balance
func (p *Portfolio) Cash() float64 { return p.cash }

// Len returns the number of open positions
func (p *Portfolio) Len() int { return len(p.positions) }

// Position returns the open position for a fund
func (p *Portfolio) Position(fundID string) (models.Position, bool) {
	pos, ok := p.positions[fundID]
	return pos, ok
}

// Positions returns a copy of all positions ordered by fund ID
func (p *Portfolio) Positions() []models.Position {
	ids := p.fundIDs()
	out := make([]models.Position, len(ids))
	for i, id := range ids {
		out[i] = clonePosition(p.positions[id])
	}
	return out
}

// Value returns cash plus every position at its last known NAV.
// Unvaluable positions contribute 0.
func (p *Portfolio) Value() float64 {
	total := p.cash
	for _, id := range p.fundIDs() {
		total += p.positions[id].Value()
	}
	return total
}

func (p *Portfolio) fundIDs() []string {
	ids := make([]string, 0, len(p.positions))
	for id := range p.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func clonePosition(pos models.Position) models.Position {
	if pos.LastKnownNAV != nil {
		v := *pos.LastKnownNAV
		pos.LastKnownNAV = &v
	}
	return pos
}

func floatPtr(v float64) *float64 { return &v }
