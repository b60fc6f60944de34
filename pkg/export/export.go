// Package export writes optimization results as JSON, YAML or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/pvopt/core/dto"
	"github.com/kilianp07/pvopt/core/model"
)

// Formats lists the names accepted by Write.
var Formats = []string{"json", "yaml", "csv"}

// Write encodes res in the named format.
func Write(w io.Writer, format string, res *model.Result) error {
	switch format {
	case "json":
		return WriteJSON(w, res)
	case "yaml", "yml":
		return WriteYAML(w, res)
	case "csv":
		return WriteCSV(w, res)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the result in its wire form.
func WriteJSON(w io.Writer, res *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.FromResult(res))
}

// WriteYAML writes the result in its wire form as YAML.
func WriteYAML(w io.Writer, res *model.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(dto.FromResult(res)); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV writes one row per entity, quantity and interval. Storage modes
// and movable demand starts are written in the value column as text.
func WriteCSV(w io.Writer, res *model.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "id", "name", "interval", "quantity", "value"}); err != nil {
		return err
	}
	row := func(kind string, id int, name string, interval int, quantity, value string) error {
		return cw.Write([]string{kind, strconv.Itoa(id), name, strconv.Itoa(interval), quantity, value})
	}
	series := func(kind string, id int, name, quantity string, p model.Profile) error {
		for i, v := range p.Values {
			if err := row(kind, id, name, p.StartInterval+i, quantity, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
				return err
			}
		}
		return nil
	}

	for _, c := range res.ContractResults {
		for _, s := range []struct {
			q string
			p model.Profile
		}{{"power", c.Power}, {"energy", c.Energy}, {"cost", c.Cost}} {
			if err := series("contract", c.ID, c.Name, s.q, s.p); err != nil {
				return err
			}
		}
	}
	for _, st := range res.StorageResults {
		for _, s := range []struct {
			q string
			p model.Profile
		}{{"charge", st.Charge}, {"discharge", st.Discharge}, {"energy", st.Energy}} {
			if err := series("storage", st.ID, st.Name, s.q, s.p); err != nil {
				return err
			}
		}
		for t, m := range st.Mode {
			if err := row("storage", st.ID, st.Name, t, "mode", m.String()); err != nil {
				return err
			}
		}
	}
	for _, m := range res.MovableDemandResults {
		if err := row("movable_demand", m.ID, m.Name, m.StartInterval, "start", "1"); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
