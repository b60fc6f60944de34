package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileLookup(t *testing.T) {
	p := NewOffsetProfile(2, []float64{1, 2, 3})
	if p.Length() != 3 || p.LastInterval() != 5 {
		t.Fatalf("unexpected shape: length %d last %d", p.Length(), p.LastInterval())
	}
	if v, ok := p.ValueAtInterval(3); !ok || v != 2 {
		t.Fatalf("expected 2 at interval 3 got %v %v", v, ok)
	}
	if _, ok := p.ValueAtInterval(1); ok {
		t.Fatalf("interval 1 should be outside profile")
	}
	if _, ok := p.ValueAtIndex(3); ok {
		t.Fatalf("index 3 should be outside profile")
	}
	if v := p.ValueOr(7, -1); v != -1 {
		t.Fatalf("expected default got %v", v)
	}
	assert.Equal(t, 6.0, p.Sum())
}

func TestConstantProfile(t *testing.T) {
	p := ConstantOffsetProfile(1, 3, 0.25)
	assert.Equal(t, []float64{0.25, 0.25, 0.25}, p.Values)
	assert.Equal(t, 1, p.StartInterval)
	assert.Equal(t, 0, ConstantProfile(-2, 1).Length())
}

func TestNewSumConstraintRejectsReversedRange(t *testing.T) {
	_, err := NewSumConstraint(3, 1, 10)
	if !errors.Is(err, ErrInvalidSumConstraint) {
		t.Fatalf("expected ErrInvalidSumConstraint got %v", err)
	}
	sc, err := NewSumConstraint(1, 1, 10)
	require.NoError(t, err)
	assert.True(t, sc.Contains(1))
	assert.False(t, sc.Contains(2))
}

func TestNewContractValidation(t *testing.T) {
	price := NewOffsetProfile(1, []float64{1, 1, 1})
	tests := []struct {
		name    string
		params  ContractParams
		wantErr bool
	}{
		{"valid", ContractParams{ID: 1, UnitPrice: price, MinPower: map[int]float64{1: 1, 3: 2}}, false},
		{"power key before start", ContractParams{ID: 1, UnitPrice: price, MaxPower: map[int]float64{0: 1}}, true},
		{"power key after end", ContractParams{ID: 1, UnitPrice: price, MinPower: map[int]float64{4: 1}}, true},
		{"sum end outside", ContractParams{ID: 1, UnitPrice: price, MinEnergy: []SumConstraint{{StartInterval: 1, EndInterval: 4, Sum: 1}}}, true},
		{"sum start outside", ContractParams{ID: 1, UnitPrice: price, MaxEnergy: []SumConstraint{{StartInterval: 0, EndInterval: 2, Sum: 1}}}, true},
		{"reversed sum", ContractParams{ID: 1, UnitPrice: price, MaxEnergy: []SumConstraint{{StartInterval: 3, EndInterval: 2, Sum: 1}}}, true},
		{"unknown direction", ContractParams{ID: 1, Direction: Direction(7), UnitPrice: price}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContract(tt.params)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidContract) {
					t.Fatalf("expected ErrInvalidContract got %v", err)
				}
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestContractAccessorsReturnCopies(t *testing.T) {
	c, err := NewContract(ContractParams{
		ID:        3,
		Name:      "grid",
		Direction: Sell,
		UnitPrice: NewProfile(5, 6),
		MaxPower:  map[int]float64{1: 4, 0: 2},
	})
	require.NoError(t, err)
	up := c.UnitPrice()
	up.Values[0] = 100
	if v, _ := c.PriceAt(0); v != 5 {
		t.Fatalf("contract price mutated through accessor: %v", v)
	}
	assert.Equal(t, []int{0, 1}, c.MaxPowerIntervals())
	assert.Equal(t, -1.0, c.Direction().Sign())
	assert.True(t, c.ActiveAt(1))
	assert.False(t, c.ActiveAt(2))
}

func TestNewStorageValidation(t *testing.T) {
	base := StorageParams{ID: 1, MaxCharge: 10, MaxDischarge: 20, MaxCapacity: 40, InitialEnergy: 5}
	tests := []struct {
		name   string
		mutate func(p *StorageParams)
	}{
		{"initial above capacity", func(p *StorageParams) { p.InitialEnergy = 41 }},
		{"negative initial", func(p *StorageParams) { p.InitialEnergy = -1 }},
		{"negative max charge", func(p *StorageParams) { p.MaxCharge = -1 }},
		{"charge bound above max", func(p *StorageParams) { p.MaxChargeAt = map[int]float64{0: 11} }},
		{"min discharge above max", func(p *StorageParams) { p.MinDischarge = map[int]float64{1: 21} }},
		{"energy bound above capacity", func(p *StorageParams) { p.MinEnergy = map[int]float64{1: 41} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if _, err := NewStorage(p); !errors.Is(err, ErrInvalidStorage) {
				t.Fatalf("expected ErrInvalidStorage got %v", err)
			}
		})
	}
	_, err := NewStorage(base)
	require.NoError(t, err)
}

func TestStorageBounds(t *testing.T) {
	s, err := NewStorage(StorageParams{
		ID: 1, MaxCharge: 10, MaxDischarge: 20, MaxCapacity: 40,
		MaxDischargeAt:     map[int]float64{0: 5},
		MinEnergy:          map[int]float64{2: 25},
		ForbiddenDischarge: []int{2, 1},
	})
	require.NoError(t, err)
	lo, hi := s.DischargeBounds(0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 5.0, hi)
	_, hi = s.DischargeBounds(1)
	assert.Equal(t, 20.0, hi)
	lo, hi = s.EnergyBounds(2)
	assert.Equal(t, 25.0, lo)
	assert.Equal(t, 40.0, hi)
	assert.Equal(t, []int{1, 2}, s.ForbiddenDischarge())
	assert.True(t, s.DischargeForbidden(2))
	assert.False(t, s.ChargeForbidden(2))
	assert.Equal(t, 2000.0, s.BigM())
}

func TestNewMovableDemandValidation(t *testing.T) {
	if _, err := NewMovableDemand(1, "wash", []float64{1}, nil); !errors.Is(err, ErrInvalidMovableDemand) {
		t.Fatalf("expected ErrInvalidMovableDemand got %v", err)
	}
	if _, err := NewMovableDemand(1, "wash", []float64{1}, []int{-1}); !errors.Is(err, ErrInvalidMovableDemand) {
		t.Fatalf("expected ErrInvalidMovableDemand got %v", err)
	}
	m, err := NewMovableDemand(1, "wash", []float64{1, 2}, []int{3, 0, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, m.StartIntervals())
	assert.True(t, m.CanStartAt(3))
}

func TestNewTaskValidation(t *testing.T) {
	c, _ := NewContract(ContractParams{ID: 1, UnitPrice: NewProfile(1)})
	tests := []struct {
		name   string
		params TaskParams
	}{
		{"empty horizon", TaskParams{ID: 1}},
		{"zero duration", TaskParams{ID: 1, Intervals: NewProfile(1, 0)}},
		{"negative timeout", TaskParams{ID: 1, TimeoutSeconds: -1, Intervals: NewProfile(1)}},
		{"negative gap", TaskParams{ID: 1, RelativeGap: -0.1, Intervals: NewProfile(1)}},
		{"duplicate contract", TaskParams{ID: 1, Intervals: NewProfile(1), Contracts: []*Contract{c, c}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTask(tt.params); !errors.Is(err, ErrInvalidTask) {
				t.Fatalf("expected ErrInvalidTask got %v", err)
			}
		})
	}
}

func TestTaskNetDemand(t *testing.T) {
	task, err := NewTask(TaskParams{
		ID:         7,
		Intervals:  ConstantProfile(3, 1),
		Production: &FixedProfile{ID: 1, Profile: NewProfile(5, 5)},
		Demand:     &FixedProfile{ID: 2, Profile: NewOffsetProfile(1, []float64{10, 10})},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, task.HorizonLength())
	assert.Equal(t, -5.0, task.NetDemand(0))
	assert.Equal(t, 5.0, task.NetDemand(1))
	assert.Equal(t, 10.0, task.NetDemand(2))

	noCurves, err := NewTask(TaskParams{ID: 8, Intervals: NewProfile(1)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, noCurves.NetDemand(0))
}

func TestStorageModeText(t *testing.T) {
	b, err := json.Marshal([]StorageMode{Disabled, Charging, Discharging})
	require.NoError(t, err)
	assert.JSONEq(t, `["DISABLED","CHARGING","DISCHARGING"]`, string(b))

	var modes []StorageMode
	require.NoError(t, json.Unmarshal(b, &modes))
	assert.Equal(t, []StorageMode{Disabled, Charging, Discharging}, modes)

	var m StorageMode
	assert.Error(t, m.UnmarshalText([]byte("IDLE")))
}

func TestResultLookup(t *testing.T) {
	r := &Result{
		ContractResults:      []ContractResult{{ID: 2}},
		StorageResults:       []StorageResult{{ID: 3}},
		MovableDemandResults: []MovableDemandResult{{ID: 4, StartInterval: 1}},
	}
	_, ok := r.Contract(2)
	assert.True(t, ok)
	_, ok = r.Storage(9)
	assert.False(t, ok)
	md, ok := r.MovableDemand(4)
	assert.True(t, ok)
	assert.Equal(t, 1, md.StartInterval)

	nf := NotFound(5, "boom")
	assert.Equal(t, SolutionNotFound, nf.Status)
	assert.Equal(t, "boom", nf.ErrorMessage)
}
