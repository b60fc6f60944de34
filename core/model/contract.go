package model

import (
	"fmt"
	"sort"
	"strings"
)

// Direction tells whether power is bought from or sold to the counterparty.
type Direction int

const (
	Purchase Direction = iota
	Sell
)

// String returns a human-readable representation of the direction.
func (d Direction) String() string {
	switch d {
	case Purchase:
		return "PURCHASE"
	case Sell:
		return "SELL"
	default:
		return "unknown"
	}
}

// Sign is +1 for purchases and -1 for sales.
func (d Direction) Sign() float64 {
	if d == Sell {
		return -1
	}
	return 1
}

// ParseDirection converts the textual form back to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(s) {
	case "PURCHASE":
		return Purchase, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown contract direction %q", s)
	}
}

// ContractParams holds the raw contract definition passed to NewContract.
type ContractParams struct {
	ID        int
	Name      string
	Direction Direction
	// UnitPrice also defines the active interval range of the contract.
	UnitPrice Profile
	MinPower  map[int]float64
	MaxPower  map[int]float64
	MinEnergy []SumConstraint
	MaxEnergy []SumConstraint
}

// Contract is an electricity purchase or sell agreement. Two contracts are
// the same contract when their ids match.
type Contract struct {
	id        int
	name      string
	direction Direction
	unitPrice Profile
	minPower  map[int]float64
	maxPower  map[int]float64
	minEnergy []SumConstraint
	maxEnergy []SumConstraint
}

// NewContract validates p and returns an immutable Contract. Every power
// bound key and every sum constraint endpoint must fall in the active range.
func NewContract(p ContractParams) (*Contract, error) {
	if p.Direction != Purchase && p.Direction != Sell {
		return nil, fmt.Errorf("%w: contract %d: unknown direction %d", ErrInvalidContract, p.ID, p.Direction)
	}
	if p.UnitPrice.StartInterval < 0 {
		return nil, fmt.Errorf("%w: contract %d: negative start interval", ErrInvalidContract, p.ID)
	}
	c := &Contract{
		id:        p.ID,
		name:      p.Name,
		direction: p.Direction,
		unitPrice: p.UnitPrice.clone(),
	}
	var err error
	if c.minPower, err = c.checkPowerBounds("minimal power", p.MinPower); err != nil {
		return nil, err
	}
	if c.maxPower, err = c.checkPowerBounds("maximal power", p.MaxPower); err != nil {
		return nil, err
	}
	if c.minEnergy, err = c.checkSumConstraints("minimal energy", p.MinEnergy); err != nil {
		return nil, err
	}
	if c.maxEnergy, err = c.checkSumConstraints("maximal energy", p.MaxEnergy); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Contract) checkPowerBounds(kind string, bounds map[int]float64) (map[int]float64, error) {
	if bounds == nil {
		return nil, nil
	}
	out := make(map[int]float64, len(bounds))
	for interval, v := range bounds {
		if !c.ActiveAt(interval) {
			return nil, fmt.Errorf("%w: contract %d: %s constraint at interval %d outside active range [%d, %d)",
				ErrInvalidContract, c.id, kind, interval, c.StartInterval(), c.LastInterval())
		}
		out[interval] = v
	}
	return out, nil
}

func (c *Contract) checkSumConstraints(kind string, cs []SumConstraint) ([]SumConstraint, error) {
	if cs == nil {
		return nil, nil
	}
	out := make([]SumConstraint, 0, len(cs))
	for _, sc := range cs {
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("%w: contract %d: %s constraint: %v", ErrInvalidContract, c.id, kind, err)
		}
		if !c.ActiveAt(sc.StartInterval) || !c.ActiveAt(sc.EndInterval) {
			return nil, fmt.Errorf("%w: contract %d: %s constraint [%d, %d] outside active range [%d, %d)",
				ErrInvalidContract, c.id, kind, sc.StartInterval, sc.EndInterval, c.StartInterval(), c.LastInterval())
		}
		out = append(out, sc)
	}
	return out, nil
}

func (c *Contract) ID() int              { return c.id }
func (c *Contract) Name() string         { return c.name }
func (c *Contract) Direction() Direction { return c.direction }

// UnitPrice returns a copy of the price profile.
func (c *Contract) UnitPrice() Profile { return c.unitPrice.clone() }

// StartInterval is the first interval at which the contract is active.
func (c *Contract) StartInterval() int { return c.unitPrice.StartInterval }

// LastInterval is the first interval after the active range.
func (c *Contract) LastInterval() int { return c.unitPrice.LastInterval() }

// Length is the number of active intervals.
func (c *Contract) Length() int { return c.unitPrice.Length() }

// ActiveAt reports whether the contract may carry power at interval.
func (c *Contract) ActiveAt(interval int) bool { return c.unitPrice.Covers(interval) }

// PriceAt returns the unit price at the absolute interval.
func (c *Contract) PriceAt(interval int) (float64, bool) { return c.unitPrice.ValueAtInterval(interval) }

// MinPower returns the explicit lower power bound at interval, if any.
func (c *Contract) MinPower(interval int) (float64, bool) {
	v, ok := c.minPower[interval]
	return v, ok
}

// MaxPower returns the explicit upper power bound at interval, if any.
func (c *Contract) MaxPower(interval int) (float64, bool) {
	v, ok := c.maxPower[interval]
	return v, ok
}

// MinPowerIntervals lists the intervals carrying a lower bound in ascending order.
func (c *Contract) MinPowerIntervals() []int { return sortedKeys(c.minPower) }

// MaxPowerIntervals lists the intervals carrying an upper bound in ascending order.
func (c *Contract) MaxPowerIntervals() []int { return sortedKeys(c.maxPower) }

// MinEnergy returns the lower energy sum constraints.
func (c *Contract) MinEnergy() []SumConstraint { return append([]SumConstraint(nil), c.minEnergy...) }

// MaxEnergy returns the upper energy sum constraints.
func (c *Contract) MaxEnergy() []SumConstraint { return append([]SumConstraint(nil), c.maxEnergy...) }

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func copyBounds(m map[int]float64) map[int]float64 {
	if m == nil {
		return nil
	}
	out := make(map[int]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
