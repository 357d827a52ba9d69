package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"
)

// ExportCSV writes step, time, lane and one column per key.
func ExportCSV(w io.Writer, s *Series) error {
	cw := csv.NewWriter(w)

	header := append([]string{"step", "time", "lane"}, s.Keys...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range s.Rows {
		rec := make([]string, 0, len(header))
		rec = append(rec,
			strconv.Itoa(r.Step),
			strconv.FormatFloat(r.Time, 'g', -1, 64),
			strconv.Itoa(r.Lane),
		)
		for _, v := range r.Values {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type ExportData struct {
	Run    RunMetadata             `json:"run"`
	Keys   []string                `json:"keys"`
	Lanes  int                     `json:"lanes"`
	Times  []float64               `json:"times"`
	Series map[string][][]*float64 `json:"series"`
}

// ExportJSON writes the run metadata and, per key, one value slice per lane.
// Values that are not finite are written as null.
func ExportJSON(w io.Writer, meta RunMetadata, s *Series) error {
	lanes := s.Lanes()
	data := ExportData{
		Run:    meta,
		Keys:   s.Keys,
		Lanes:  lanes,
		Series: make(map[string][][]*float64, len(s.Keys)),
	}
	for _, r := range s.Rows {
		if r.Lane == 0 {
			data.Times = append(data.Times, r.Time)
		}
	}
	for _, k := range s.Keys {
		perLane := make([][]*float64, lanes)
		for lane := range lanes {
			_, vals, _ := s.Column(k, lane)
			perLane[lane] = finite(vals)
		}
		data.Series[k] = perLane
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func finite(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i := range vals {
		if !math.IsNaN(vals[i]) && !math.IsInf(vals[i], 0) {
			out[i] = &vals[i]
		}
	}
	return out
}
