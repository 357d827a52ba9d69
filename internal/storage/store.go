package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/physim/internal/state"
)

var ErrNotFound = errors.New("storage: run not found")

// RunMetadata describes a finished or halted run.
type RunMetadata struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Steps      int                `json:"steps"`
	StepsTaken int                `json:"steps_taken"`
	Batch      int                `json:"batch"`
	Backend    string             `json:"backend"`
	Solvers    []string           `json:"solvers,omitempty"`
	Couplers   []string           `json:"couplers,omitempty"`
	Keys       []string           `json:"keys"`
	Metrics    map[string]float64 `json:"metrics"`
	Error      string             `json:"error,omitempty"`
}

// Row is one lane of one snapshot. Values follow Series.Keys.
type Row struct {
	Step   int
	Time   float64
	Lane   int
	Values []float64
}

// Series is the stored trajectory of a run.
type Series struct {
	Keys []string
	Rows []Row
}

// Column returns the time axis and values of key for one lane.
func (s *Series) Column(key string, lane int) ([]float64, []float64, error) {
	idx := -1
	for i, k := range s.Keys {
		if k == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, fmt.Errorf("storage: key %q not recorded", key)
	}
	var times, vals []float64
	for _, r := range s.Rows {
		if r.Lane != lane {
			continue
		}
		times = append(times, r.Time)
		vals = append(vals, r.Values[idx])
	}
	return times, vals, nil
}

// Lanes is the number of distinct lanes in the series.
func (s *Series) Lanes() int {
	n := 0
	for _, r := range s.Rows {
		n = max(n, r.Lane+1)
	}
	return n
}

// Store persists runs. Save assigns the run id when meta.ID is empty.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, meta RunMetadata, snaps []state.Snapshot) (string, error)
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, runID string) (*RunMetadata, error)
	LoadSeries(ctx context.Context, runID string) (*Series, error)
	Close() error
}

// Open returns a store of the given kind: "file" (a directory of runs) or
// "sqlite" (a database file).
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("storage: unknown store %q (file, sqlite)", kind)
	}
}

func newRunID(name string) string {
	if name == "" {
		name = "run"
	}
	return name + "_" + uuid.NewString()
}

// prepare fills the id, timestamp and key list, and flattens the snapshots.
func prepare(meta *RunMetadata, snaps []state.Snapshot) *Series {
	if meta.ID == "" {
		meta.ID = newRunID(meta.Name)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	if len(meta.Keys) == 0 && len(snaps) > 0 {
		meta.Keys = snaps[0].Keys()
	}
	if meta.StepsTaken == 0 {
		meta.StepsTaken = len(snaps)
	}
	metrics := make(map[string]float64, len(meta.Metrics))
	for k, v := range meta.Metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			metrics[k] = v
		}
	}
	meta.Metrics = metrics
	return FromSnapshots(meta.Keys, snaps)
}

// FromSnapshots flattens snapshots into rows, one per lane. Keys missing
// from a snapshot are recorded as NaN.
func FromSnapshots(keys []string, snaps []state.Snapshot) *Series {
	s := &Series{Keys: append([]string(nil), keys...)}
	for _, snap := range snaps {
		vals := make([]state.Value, len(keys))
		present := make([]bool, len(keys))
		for i, k := range keys {
			vals[i], present[i] = snap.Get(k)
		}
		for lane := range snap.LaneCount() {
			row := Row{Step: snap.Step, Time: snap.Time, Lane: lane, Values: make([]float64, len(keys))}
			for i := range keys {
				if present[i] {
					row.Values[i] = vals[i].At(lane)
				} else {
					row.Values[i] = math.NaN()
				}
			}
			s.Rows = append(s.Rows, row)
		}
	}
	return s
}

func sortRuns(runs []RunMetadata) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
}
