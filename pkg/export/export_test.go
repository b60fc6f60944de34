package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/pvopt/core/dto"
	"github.com/kilianp07/pvopt/core/model"
)

func sample() *model.Result {
	return &model.Result{
		ID:             3,
		Status:         model.SolutionFound,
		ObjectiveValue: 20,
		ContractResults: []model.ContractResult{{
			ID: 1, Name: "grid",
			Power:  model.NewOffsetProfile(1, []float64{5, 5}),
			Energy: model.NewOffsetProfile(1, []float64{5, 5}),
			Cost:   model.NewOffsetProfile(1, []float64{10, 10}),
		}},
		StorageResults: []model.StorageResult{{
			ID: 2, Name: "battery",
			Charge:    model.NewProfile(1, 0),
			Discharge: model.NewProfile(0, 0.5),
			Energy:    model.NewProfile(1, 0.5),
			Mode:      []model.StorageMode{model.Charging, model.Discharging},
		}},
		MovableDemandResults: []model.MovableDemandResult{{ID: 4, Name: "washer", StartInterval: 1}},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sample()))
	var out dto.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, dto.FromResult(sample()), out)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "yaml", sample()))
	assert.Contains(t, buf.String(), "status: SOLUTION_FOUND")
	var out dto.Result
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, dto.FromResult(sample()), out)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "csv", sample()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	// header + 6 contract + 6 storage series + 2 modes + 1 start
	require.Len(t, rows, 16)
	assert.Equal(t, []string{"kind", "id", "name", "interval", "quantity", "value"}, rows[0])
	assert.Equal(t, []string{"contract", "1", "grid", "1", "power", "5"}, rows[1])
	assert.Equal(t, []string{"contract", "1", "grid", "2", "cost", "10"}, rows[6])
	assert.Equal(t, []string{"storage", "2", "battery", "1", "discharge", "0.5"}, rows[10])
	assert.Equal(t, []string{"storage", "2", "battery", "0", "mode", "CHARGING"}, rows[13])
	assert.Equal(t, []string{"movable_demand", "4", "washer", "1", "start", "1"}, rows[15])
}

func TestWriteNotFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, model.NotFound(1, "infeasible")))
	assert.Equal(t, "kind,id,name,interval,quantity,value\n", buf.String())

	assert.Error(t, Write(&buf, "xml", sample()))
}
