package simulation

import (
	"reflect"
	"strings"
	"testing"

	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/population"
	"github.com/nvandessel/rabbitsim/internal/rng"
	"github.com/nvandessel/rabbitsim/internal/survival"
)

func newSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sim
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"zero months", Config{Months: 0, InitialPopulation: 2}, "months"},
		{"negative months", Config{Months: -3, InitialPopulation: 2}, "months"},
		{"zero population", Config{Months: 12, InitialPopulation: 0}, "population"},
		{
			"adult rate above 100",
			Config{Months: 12, InitialPopulation: 2, Params: population.Params{Strategy: survival.Static{}, AdultSurvivalRate: 120}},
			"adult survival rate",
		},
		{
			"unknown litter policy",
			Config{Months: 12, InitialPopulation: 2, Params: population.Params{Strategy: survival.Static{}, Litters: "sometimes"}},
			"litter policy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil {
				t.Fatal("New() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("New() error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestNew_DefaultsParams(t *testing.T) {
	sim := newSimulator(t, Config{Months: 1, InitialPopulation: 2})
	p := sim.Config().Params
	if p.Strategy == nil || p.Strategy.Method() != constants.SurvivalStatic {
		t.Errorf("Strategy = %v, want static", p.Strategy)
	}
	if p.AdultSurvivalRate != constants.AdultSurvivalRate || p.Litters != constants.LitterReset {
		t.Errorf("Params = %+v, want defaults", p)
	}
}

func TestRun_Deterministic(t *testing.T) {
	for _, method := range []constants.SurvivalMethod{constants.SurvivalStatic, constants.SurvivalGaussian, constants.SurvivalExponential} {
		t.Run(string(method), func(t *testing.T) {
			strategy, err := survival.New(method)
			if err != nil {
				t.Fatalf("survival.New() error = %v", err)
			}
			sim := newSimulator(t, Config{
				Months:            36,
				InitialPopulation: 50,
				BaseSeed:          77,
				Params:            population.DefaultParams(strategy),
				KeepSeries:        true,
			})

			a := sim.Run(3)
			b := sim.Run(3)
			a.Duration, b.Duration = 0, 0
			if !reflect.DeepEqual(a, b) {
				t.Errorf("two runs of index 3 differ:\n%+v\n%+v", a, b)
			}
		})
	}
}

func TestRun_IndicesAreIndependent(t *testing.T) {
	sim := newSimulator(t, Config{Months: 24, InitialPopulation: 200, BaseSeed: 9, KeepSeries: true})

	a := sim.Run(0)
	b := sim.Run(1)
	a.Duration, b.Duration = 0, 0
	a.RunIndex, b.RunIndex = 0, 0
	if reflect.DeepEqual(a, b) {
		t.Error("runs 0 and 1 produced identical results")
	}
}

func TestSeed_Founders(t *testing.T) {
	p := population.NewPool(population.PoolOptions{InitialCapacity: 4})
	s := &rng.Scripted{Uniforms: []float64{0.5}} // female litter target -> 6

	if err := seed(p, s, Config{InitialPopulation: constants.FounderPopulation, Params: population.DefaultParams(nil)}); err != nil {
		t.Fatalf("seed() error = %v", err)
	}

	if p.Alive() != 2 {
		t.Fatalf("Alive() = %d, want 2", p.Alive())
	}
	female, male := p.Agent(0), p.Agent(1)
	if female.Sex != population.Female || male.Sex != population.Male {
		t.Errorf("sexes = %s, %s, want female, male", female.Sex, male.Sex)
	}
	for _, a := range []*population.Agent{female, male} {
		if !a.Mature || a.Age != constants.FounderAge || a.MaturityAge != constants.FounderAge {
			t.Errorf("founder = %+v, want mature at age %d", *a, constants.FounderAge)
		}
		if a.SurvivalRate != constants.FounderSurvivalRate {
			t.Errorf("founder SurvivalRate = %v, want %v", a.SurvivalRate, constants.FounderSurvivalRate)
		}
	}
	if female.LittersTarget != 6 || male.LittersTarget != 0 {
		t.Errorf("litter targets = %d, %d, want 6, 0", female.LittersTarget, male.LittersTarget)
	}
}

func TestSeed_RandomAdults(t *testing.T) {
	p := population.NewPool(population.PoolOptions{InitialCapacity: 512})
	cfg := Config{InitialPopulation: 500, Params: population.DefaultParams(nil)}

	if err := seed(p, rng.New(1, 1), cfg); err != nil {
		t.Fatalf("seed() error = %v", err)
	}
	if p.Alive() != 500 {
		t.Fatalf("Alive() = %d, want 500", p.Alive())
	}
	females, males := p.Census()
	if females == 0 || males == 0 {
		t.Errorf("Census() = %d females, %d males, want both sexes", females, males)
	}
	p.Each(func(_ int, a *population.Agent) bool {
		if a.Age < constants.SeedAgeMin || a.Age >= constants.SeedAgeMin+constants.SeedAgeSpan {
			t.Errorf("seeded age %d outside [%d, %d)", a.Age, constants.SeedAgeMin, constants.SeedAgeMin+constants.SeedAgeSpan)
		}
		if !a.Mature || a.SurvivalRate != constants.AdultSurvivalRate {
			t.Errorf("seeded agent = %+v, want mature adult", *a)
		}
		if a.Sex == population.Female && (a.LittersTarget < 3 || a.LittersTarget > 9) {
			t.Errorf("female LittersTarget = %d, want 3..9", a.LittersTarget)
		}
		return true
	})
}

func TestRun_ExtinctionStops(t *testing.T) {
	params := population.DefaultParams(nil)
	params.AdultSurvivalRate = 0
	params.InitialSurvivalRate = 0
	sim := newSimulator(t, Config{Months: 120, InitialPopulation: 10, BaseSeed: 5, Params: params, KeepSeries: true})

	res := sim.Run(0)

	if res.Failed() {
		t.Fatalf("run failed: %s", res.Error)
	}
	if !res.Extinct() || res.ExtinctionMonth != 1 || res.MonthsSimulated != 1 {
		t.Errorf("ExtinctionMonth = %d, MonthsSimulated = %d, want 1 and 1", res.ExtinctionMonth, res.MonthsSimulated)
	}
	if res.FinalAlive != 0 || res.TotalDeaths != 10 || res.TotalBirths != 0 {
		t.Errorf("final = %d alive, %d deaths, %d births, want 0, 10, 0", res.FinalAlive, res.TotalDeaths, res.TotalBirths)
	}
	if res.Peak != 10 || res.PeakMonth != 0 {
		t.Errorf("peak = %d at %d, want 10 at 0", res.Peak, res.PeakMonth)
	}
	if res.Trough != 0 || res.TroughMonth != 1 {
		t.Errorf("trough = %d at %d, want 0 at 1", res.Trough, res.TroughMonth)
	}
	if res.PopulationMonths != 0 {
		t.Errorf("PopulationMonths = %d, want 0", res.PopulationMonths)
	}
	if len(res.Series) != 1 {
		t.Errorf("len(Series) = %d, want 1", len(res.Series))
	}
}

func TestRun_SeriesConsistency(t *testing.T) {
	sim := newSimulator(t, Config{Months: 48, InitialPopulation: 2, BaseSeed: 2024, KeepSeries: true})

	for index := 0; index < 5; index++ {
		res := sim.Run(index)
		if res.Failed() {
			t.Fatalf("run %d failed: %s", index, res.Error)
		}
		if len(res.Series) != res.MonthsSimulated {
			t.Fatalf("run %d: len(Series) = %d, MonthsSimulated = %d", index, len(res.Series), res.MonthsSimulated)
		}

		var births, deaths, popMonths int64
		prev := 2
		for i, row := range res.Series {
			if row.Month != i+1 {
				t.Errorf("run %d: row %d has month %d", index, i, row.Month)
			}
			if row.Males+row.Females != row.Alive {
				t.Errorf("run %d month %d: %d males + %d females != %d alive", index, row.Month, row.Males, row.Females, row.Alive)
			}
			if prev+row.Births-row.Deaths != row.Alive {
				t.Errorf("run %d month %d: %d + %d - %d != %d", index, row.Month, prev, row.Births, row.Deaths, row.Alive)
			}
			if row.Alive > res.Peak || row.Alive < res.Trough {
				t.Errorf("run %d month %d: alive %d outside [trough %d, peak %d]", index, row.Month, row.Alive, res.Trough, res.Peak)
			}
			births += int64(row.Births)
			deaths += int64(row.Deaths)
			popMonths += int64(row.Alive)
			prev = row.Alive
		}

		if births != res.TotalBirths || deaths != res.TotalDeaths {
			t.Errorf("run %d: series totals %d/%d, result %d/%d", index, births, deaths, res.TotalBirths, res.TotalDeaths)
		}
		if popMonths != res.PopulationMonths {
			t.Errorf("run %d: PopulationMonths = %d, series sum %d", index, res.PopulationMonths, popMonths)
		}
		if res.FinalAlive != prev || res.FinalFemales+res.FinalMales != res.FinalAlive {
			t.Errorf("run %d: final counts %d (%d f, %d m), last row %d", index, res.FinalAlive, res.FinalFemales, res.FinalMales, prev)
		}
		if res.Extinct() && res.FinalAlive != 0 {
			t.Errorf("run %d: extinct with %d alive", index, res.FinalAlive)
		}
	}
}

func TestRun_SeriesOffByDefault(t *testing.T) {
	sim := newSimulator(t, Config{Months: 12, InitialPopulation: 20, BaseSeed: 1})
	if res := sim.Run(0); res.Series != nil {
		t.Errorf("Series = %d rows, want nil", len(res.Series))
	}
}

func TestRun_CapacityFailure(t *testing.T) {
	params := population.DefaultParams(nil)
	params.AdultSurvivalRate = 100
	params.InitialSurvivalRate = 100
	sim := newSimulator(t, Config{
		Months:            36,
		InitialPopulation: 40,
		BaseSeed:          3,
		Params:            params,
		Pool:              population.PoolOptions{InitialCapacity: 8, MaxCapacity: 48},
	})

	res := sim.Run(0)

	if !res.Failed() {
		t.Fatalf("Status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, population.ErrCapacityExceeded.Error()) {
		t.Errorf("Error = %q, want capacity error", res.Error)
	}
	if res.FinalAlive > 48 {
		t.Errorf("FinalAlive = %d beyond max capacity", res.FinalAlive)
	}
}

func TestRun_SeedingFailure(t *testing.T) {
	sim := newSimulator(t, Config{
		Months:            12,
		InitialPopulation: 100,
		Pool:              population.PoolOptions{InitialCapacity: 16, MaxCapacity: 32},
	})

	res := sim.Run(0)
	if !res.Failed() || res.MonthsSimulated != 0 {
		t.Errorf("Status = %s, MonthsSimulated = %d, want failed before month 1", res.Status, res.MonthsSimulated)
	}
}
