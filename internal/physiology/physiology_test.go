package physiology

import (
	"context"
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/san-kum/physim/internal/compute"
	"github.com/san-kum/physim/internal/engine"
	"github.com/san-kum/physim/internal/state"
)

func step(t *testing.T, solvers []engine.Solver, couplers []engine.Coupler, dt float64, opts ...engine.Option) state.Snapshot {
	t.Helper()
	eng, err := engine.New(solvers, couplers, dt, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	snap, err := eng.Step(context.Background())
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	return snap
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestLibraryPlan(t *testing.T) {
	eng, err := engine.New(Solvers(), Couplers(), 1.0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := [][]string{
		{"fever_metabolic", "infection_hemogram"},
		{"coagulation_fluid"},
		{"meds_vitals", "fluid_electrolytes"},
	}
	if got := eng.Plan().Levels; !reflect.DeepEqual(got, want) {
		t.Errorf("Levels = %v, want %v", got, want)
	}
}

func TestLibraryRunsWithoutHalting(t *testing.T) {
	tests := []struct {
		name    string
		opts    []engine.Option
		backend compute.Backend
	}{
		{"scalar", nil, compute.NewSerialBackend()},
		{"batched", []engine.Option{engine.WithBatch(8)}, compute.NewCPUBackend(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append(tt.opts, engine.WithBackend(tt.backend))
			eng, err := engine.New(Solvers(), Couplers(), 1.0, opts...)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := eng.Collect(context.Background(), 500); err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			snap := eng.Snapshot()
			if hr := snap.Float(KeyHeartRate); hr < 60 || hr > 120 {
				t.Errorf("heart_rate = %f after baseline run", hr)
			}
			if v := snap.Float(KeyFluidVolume); !near(v, 1500) {
				t.Errorf("fluid_volume = %f, want 1500", v)
			}
		})
	}
}

func TestMedsEliminates(t *testing.T) {
	snap := step(t, []engine.Solver{NewMeds()}, nil, 1.0,
		engine.WithInitialState(map[string]float64{KeyEpinephrine: 10}))
	if got := snap.Float(KeyEpinephrine); !near(got, 9.5) {
		t.Errorf("epinephrine = %f, want 9.5", got)
	}
}

func TestCardioEpinephrine(t *testing.T) {
	tests := []struct {
		epi    float64
		wantHR float64
	}{
		{0, 80},
		{10, 85},
	}

	for _, tt := range tests {
		snap := step(t, []engine.Solver{NewCardio(), NewMeds()}, nil, 1.0,
			engine.WithInitialState(map[string]float64{KeyEpinephrine: tt.epi}))
		if got := snap.Float(KeyHeartRate); !near(got, tt.wantHR) {
			t.Errorf("epi=%v: heart_rate = %f, want %f", tt.epi, got, tt.wantHR)
		}
		if got := snap.Float(KeyBloodPressure); !near(got, 80) {
			t.Errorf("epi=%v: blood_pressure = %f, want 80", tt.epi, got)
		}
	}
}

func TestFeverLanes(t *testing.T) {
	snap := step(t, []engine.Solver{NewFever()}, nil, 1.0,
		engine.WithBatch(3),
		engine.WithInitialLanes(map[string][]float64{KeyInfectionLevel: {0, 50, 100}}))

	temp, _ := snap.Get(KeyTemperature)
	want := []float64{37.0, 38.5, 40.0}
	for i, w := range want {
		if !near(temp.At(i), w) {
			t.Errorf("lane %d temperature = %f, want %f", i, temp.At(i), w)
		}
	}
	if got := snap.Lane(1)[KeyInfectionLevel]; !near(got, 49.9) {
		t.Errorf("infection_level = %f, want 49.9", got)
	}
}

func TestLactatePerfusion(t *testing.T) {
	alone := step(t, []engine.Solver{NewLactate()}, nil, 1.0)
	if got := alone.Float(KeyPerfusion); got != 100 {
		t.Errorf("perfusion without cardio = %f, want 100", got)
	}
	if got := alone.Float(KeyLactate); !near(got, 0.78) {
		t.Errorf("lactate = %f, want 0.78", got)
	}

	shock := step(t, []engine.Solver{NewLactate(), NewCardio()}, nil, 1.0,
		engine.WithInitialState(map[string]float64{KeyBloodPressure: 40}))
	if got := shock.Float(KeyPerfusion); !near(got, 50) {
		t.Errorf("perfusion at MAP 40 = %f, want 50", got)
	}
	if got := shock.Float(KeyLactate); !near(got, 0.85) {
		t.Errorf("lactate at MAP 40 = %f, want 0.85", got)
	}
}

func TestElectrolytesRelax(t *testing.T) {
	snap := step(t, []engine.Solver{NewElectrolytes()}, nil, 1.0,
		engine.WithInitialState(map[string]float64{KeySodium: 130}))
	if got := snap.Float(KeySodium); !near(got, 130.2) {
		t.Errorf("sodium = %f, want 130.2", got)
	}
	if got := snap.Float(KeyPotassium); got != 4.0 {
		t.Errorf("potassium = %f, want 4.0", got)
	}
}

func TestFluidElectrolytesDilution(t *testing.T) {
	snap := step(t,
		[]engine.Solver{NewFluids(), NewElectrolytes()},
		[]engine.Coupler{NewFluidElectrolytes()},
		1.0,
		engine.WithInitialState(map[string]float64{KeyFluidVolume: 4000}))

	got := snap.Float(KeySodium)
	if got >= 139 || got <= 138.5 {
		t.Errorf("sodium = %f, want diluted to about 138.8", got)
	}
}

func TestCoagulopathyStartsBleeding(t *testing.T) {
	snap := step(t,
		[]engine.Solver{NewCoagulation(), NewFluids(), NewHemogram()},
		[]engine.Coupler{NewCoagulationFluid()},
		6.0,
		engine.WithInitialState(map[string]float64{KeyPlateletCount: 50}))

	if got := snap.Float(KeyBleedingRate); got <= 0 {
		t.Errorf("bleeding_rate = %f, want > 0", got)
	}
}

func TestHealthyCoagulationIsQuiet(t *testing.T) {
	snap := step(t,
		[]engine.Solver{NewCoagulation(), NewFluids(), NewHemogram()},
		[]engine.Coupler{NewCoagulationFluid()},
		1.0)

	if got := snap.Float(KeyBleedingRate); got != 0 {
		t.Errorf("bleeding_rate = %f, want 0", got)
	}
	if got := snap.Float(KeyPlateletCount); !near(got, 250) {
		t.Errorf("platelet_count = %f, want 250 at equilibrium", got)
	}
}

func TestDrainsAccumulate(t *testing.T) {
	snap := step(t, []engine.Solver{NewDrains()}, nil, 60.0)
	if got := snap.Float(KeyTotalDrainOutput); !near(got, 35) {
		t.Errorf("total_drain_output = %f, want 35", got)
	}
}

// hold owns fixed values that couplers are allowed to adjust.
type hold map[string]float64

func (h hold) Name() string { return "hold" }

func (h hold) OwnedKeys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h hold) CoupledKeys() []string             { return h.OwnedKeys() }
func (h hold) InitialState() map[string]float64 { return h }
func (h hold) Solve(*engine.Scope) error        { return nil }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestMedsVitals(t *testing.T) {
	tests := []struct {
		name           string
		epi, vol, temp float64
		dt             float64
		wantHR, wantBP float64
	}{
		{"no drug", 0, 2000, 37, 1, 80, 90},
		{"small dose", 0.3, 2000, 37, 1, 80.6, 90.15},
		{"full dose", 10, 2000, 37, 1, 100, 95},
		{"low volume blunts", 10, 1000, 37, 1, 90, 92.5},
		{"fever below threshold step", 0, 2000, 39, 1, 80, 90},
		{"fever tachycardia", 0, 2000, 39, 6, 82, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := step(t,
				[]engine.Solver{hold{
					KeyEpinephrine: tt.epi, KeyFluidVolume: tt.vol, KeyTemperature: tt.temp,
					KeyHeartRate: 80, KeyBloodPressure: 90,
				}},
				[]engine.Coupler{NewMedsVitals()}, tt.dt)
			if got := snap.Float(KeyHeartRate); !approx(got, tt.wantHR) {
				t.Errorf("heart_rate = %f, want %f", got, tt.wantHR)
			}
			if got := snap.Float(KeyBloodPressure); !approx(got, tt.wantBP) {
				t.Errorf("blood_pressure = %f, want %f", got, tt.wantBP)
			}
		})
	}
}

func TestFeverMetabolic(t *testing.T) {
	tests := []struct {
		name        string
		temp        float64
		wantOxy     float64
		wantMetabol float64
	}{
		{"afebrile", 37.1, 98, 1.0},
		{"oxygen below threshold", 39, 98, 1.014},
		{"high fever", 41, 97.88, 1.028},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := step(t,
				[]engine.Solver{hold{KeyTemperature: tt.temp, KeyOxySaturation: 98}},
				[]engine.Coupler{NewFeverMetabolic()}, 6.0)
			if got := snap.Float(KeyOxySaturation); !approx(got, tt.wantOxy) {
				t.Errorf("oxy_saturation = %f, want %f", got, tt.wantOxy)
			}
			if got := snap.Float(KeyMetabolicRate); !approx(got, tt.wantMetabol) {
				t.Errorf("metabolic_rate = %f, want %f", got, tt.wantMetabol)
			}
		})
	}
}

func TestInfectionHemogram(t *testing.T) {
	tests := []struct {
		name                string
		tss, infection      float64
		wantWBC, wantPlatel float64
	}{
		{"quiet", 0.5, 0.5, 7.5, 250},
		{"moderate infection", 0, 40, 8.1, 247.5},
		{"severe infection", 0, 80, 7.5, 245},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := step(t,
				[]engine.Solver{hold{
					KeyTSSSeverity: tt.tss, KeyInfectionLevel: tt.infection,
					KeyWBC: 7.5, KeyPlateletCount: 250,
				}},
				[]engine.Coupler{NewInfectionHemogram()}, 3600)
			if got := snap.Float(KeyWBC); !approx(got, tt.wantWBC) {
				t.Errorf("wbc = %f, want %f", got, tt.wantWBC)
			}
			if got := snap.Float(KeyPlateletCount); !approx(got, tt.wantPlatel) {
				t.Errorf("platelet_count = %f, want %f", got, tt.wantPlatel)
			}
		})
	}
}

func TestSolverSingleStep(t *testing.T) {
	tests := []struct {
		name    string
		solvers []engine.Solver
		dt      float64
		want    map[string]float64
	}{
		{
			name:    "tss at rest",
			solvers: []engine.Solver{NewTSS()},
			dt:      1,
			want: map[string]float64{
				KeyToxinLevel: 0.05, KeyTissueDamage: 0.001,
				KeyImmuneResponse: 50.005, KeyTSSSeverity: 10.0194,
			},
		},
		{
			name:    "tss with fever",
			solvers: []engine.Solver{NewTSS(), hold{KeyTemperature: 39}},
			dt:      1,
			want:    map[string]float64{KeyImmuneResponse: 51.006, KeyTSSSeverity: 9.8192},
		},
		{
			name:    "hemogram under infection",
			solvers: []engine.Solver{NewHemogram(), hold{KeyInfectionLevel: 20}},
			dt:      1,
			want: map[string]float64{
				KeyWBC: 7.6, KeyNeutrophils: 60.4, KeyLymphocytes: 29.8,
				KeyHemoglobin: 14, KeyHematocrit: 42,
			},
		},
		{
			name:    "crp clears without infection",
			solvers: []engine.Solver{NewCRP()},
			dt:      1,
			want:    map[string]float64{KeyCRP: 0.96, KeyInflammation: 0},
		},
		{
			name:    "crp follows infection",
			solvers: []engine.Solver{NewCRP(), hold{KeyInfectionLevel: 50}},
			dt:      1,
			want:    map[string]float64{KeyCRP: 1.96, KeyInflammation: 5},
		},
		{
			name:    "sinus rhythm tracks qt",
			solvers: []engine.Solver{NewRhythm(), hold{KeyHeartRate: 100, KeyPotassium: 3.0, KeyOxygenDebt: 0}},
			dt:      1,
			want: map[string]float64{
				KeyRhythmType: RhythmSinus, KeyPRInterval: 160, KeyQRSDuration: 80,
				KeyQTInterval: 400.5, KeyRRVariability: 0,
			},
		},
		{
			name:    "hyperkalemic arrest",
			solvers: []engine.Solver{NewRhythm(), hold{KeyHeartRate: 80, KeyPotassium: 7.5, KeyOxygenDebt: 60}},
			dt:      2,
			want: map[string]float64{
				KeyRhythmType: RhythmArrest, KeyPRInterval: 0, KeyQRSDuration: 0,
				KeyQTInterval: 0, KeyRRVariability: 0,
			},
		},
		{
			name:    "sedation light",
			solvers: []engine.Solver{NewSedation()},
			dt:      1,
			want:    map[string]float64{KeyConsciousness: 100, KeySedationScore: 0},
		},
		{
			name:    "urine at rest",
			solvers: []engine.Solver{NewUrine()},
			dt:      1,
			want: map[string]float64{
				KeyUrineOutput: 60, KeyKidneyFunction: 100, KeyUrineSodium: 104,
				KeyUrineSpecificGravity: 1.015, KeyUrineOsmolality: 600, KeyUrineProtein: 0,
			},
		},
		{
			name:    "urine in hypotension",
			solvers: []engine.Solver{NewUrine(), hold{KeyBloodPressure: 50}},
			dt:      1,
			want: map[string]float64{
				KeyKidneyFunction: 99.7, KeyUrineOutput: 57.323333,
				KeyUrineSpecificGravity: 1.0150803, KeyUrineOsmolality: 601.338333,
				KeyUrineSodium: 103.958, KeyUrineProtein: 0.06,
			},
		},
		{
			name:    "metabolytes at rest",
			solvers: []engine.Solver{NewMetabolytes()},
			dt:      1,
			want: map[string]float64{
				KeyPO2: 150, KeyGlucose: 99, KeyKetones: 0.095, KeyInsulin: 10,
				KeyPCO2: 40, KeyHCO3: 24, KeyPH: 7.40103, KeyBaseExcess: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := step(t, tt.solvers, nil, tt.dt)
			for k, w := range tt.want {
				if got := snap.Float(k); math.Abs(got-w) > 1e-4 {
					t.Errorf("%s = %f, want %f", k, got, w)
				}
			}
		})
	}
}

func TestSedationScoreBands(t *testing.T) {
	snap := step(t, []engine.Solver{NewSedation()}, nil, 1.0,
		engine.WithInitialState(map[string]float64{KeyPropofol: 200}))
	if got := snap.Float(KeyPropofol); !approx(got, 180) {
		t.Errorf("propofol = %f, want 180", got)
	}
	if got := snap.Float(KeyConsciousness); !approx(got, 64) {
		t.Errorf("consciousness = %f, want 64", got)
	}
	if got := snap.Float(KeySedationScore); got != 2 {
		t.Errorf("sedation_score = %f, want 2", got)
	}
}

func TestRhythmReseedIsReproducible(t *testing.T) {
	run := func(seed int64) state.Value {
		r := NewRhythm()
		r.Reseed(seed)
		eng, err := engine.New(
			[]engine.Solver{r, hold{KeyHeartRate: 80, KeyPotassium: 6.5, KeyOxygenDebt: 20}}, nil, 1.0,
			engine.WithBatch(32), engine.WithBackend(compute.NewCPUBackend(4)))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := eng.Collect(context.Background(), 50); err != nil {
			t.Fatal(err)
		}
		v, _ := eng.Snapshot().Get(KeyHeartBlock)
		return v
	}
	if a, b := run(9), run(9); !a.Equal(b) {
		t.Errorf("heart_block differs for the same seed: %v vs %v", a, b)
	}
}
