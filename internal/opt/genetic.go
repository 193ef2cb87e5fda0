package opt

import (
	"context"
	"math/rand"
	"sort"
	"time"
)

// GADefaults are the hyperparameters used when the caller overrides nothing.
const (
	gaDefaultPopulation = 100
	gaDefaultGens       = 200
	gaDefaultCrossover  = 0.8
	gaDefaultMutation   = 0.2
	gaDefaultElite      = 10
	gaDefaultTournament = 5
	gaDefaultPatience   = 20
)

// GAParams is the normalized hyperparameter set for one run.
type GAParams struct {
	PopulationSize int
	Generations    int
	CrossoverRate  float64
	MutationRate   float64
	EliteSize      int
	TournamentSize int
	EarlyStop      bool
	Patience       int
	Epsilon        float64
	AllowOverflow  bool
	Seed           int64
}

// NormalizeGA overlays defaults onto unset caller values.
func NormalizeGA(c GAParams) GAParams {
	if c.PopulationSize <= 0 {
		c.PopulationSize = gaDefaultPopulation
	}
	if c.Generations <= 0 {
		c.Generations = gaDefaultGens
	}
	if c.CrossoverRate <= 0 || c.CrossoverRate > 1 {
		c.CrossoverRate = gaDefaultCrossover
	}
	if c.MutationRate <= 0 || c.MutationRate > 1 {
		c.MutationRate = gaDefaultMutation
	}
	if c.EliteSize <= 0 {
		c.EliteSize = gaDefaultElite
	}
	if c.EliteSize > c.PopulationSize {
		c.EliteSize = c.PopulationSize
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = gaDefaultTournament
	}
	if c.TournamentSize > c.PopulationSize {
		c.TournamentSize = c.PopulationSize
	}
	if c.Patience <= 0 {
		c.Patience = gaDefaultPatience
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// GAStats reports how a run behaved, mainly for diagnostics and tests.
type GAStats struct {
	Generations  int
	BestHistory  []float64 // best fitness per generation, non-increasing
	StoppedEarly bool
	Seed         int64
}

type individual struct {
	perm    []int
	fitness float64
}

// SolveGenetic evolves order permutations against the shared cost model and
// returns the best decoded plan. It never fails for non-empty inputs: a
// cancelled context just ends evolution at the current best.
func SolveGenetic(ctx context.Context, in *Instance, params GAParams) (Plan, GAStats) {
	p := NormalizeGA(params)
	rng := rand.New(rand.NewSource(p.Seed))
	n := len(in.Orders)
	stats := GAStats{Seed: p.Seed}

	eval := func(perm []int) individual {
		return individual{perm: perm, fitness: Decode(in, perm, p.AllowOverflow).Fitness()}
	}

	pop := make([]individual, p.PopulationSize)
	for i := range pop {
		pop[i] = eval(rng.Perm(n))
	}
	sortByFitness(pop)
	best := pop[0]
	sinceImproved := 0

	for gen := 0; gen < p.Generations; gen++ {
		if ctx.Err() != nil {
			break
		}
		next := make([]individual, 0, p.PopulationSize)
		for i := 0; i < p.EliteSize; i++ {
			next = append(next, pop[i])
		}
		for len(next) < p.PopulationSize {
			a := tournament(pop, p.TournamentSize, rng)
			b := tournament(pop, p.TournamentSize, rng)
			child := append([]int(nil), a.perm...)
			if rng.Float64() < p.CrossoverRate {
				child = orderCrossover(a.perm, b.perm, rng)
			}
			if rng.Float64() < p.MutationRate {
				mutate(child, rng)
			}
			next = append(next, eval(child))
		}
		pop = next
		sortByFitness(pop)
		if pop[0].fitness < best.fitness {
			if best.fitness-pop[0].fitness > p.Epsilon*best.fitness {
				sinceImproved = 0
			} else {
				sinceImproved++
			}
			best = pop[0]
		} else {
			sinceImproved++
		}
		stats.Generations = gen + 1
		stats.BestHistory = append(stats.BestHistory, best.fitness)
		if p.EarlyStop && sinceImproved >= p.Patience {
			stats.StoppedEarly = true
			break
		}
	}
	return Decode(in, best.perm, p.AllowOverflow), stats
}

func sortByFitness(pop []individual) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].fitness < pop[j].fitness })
}

// tournament picks the best of k random individuals.
func tournament(pop []individual, k int, rng *rand.Rand) individual {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < k; i++ {
		c := pop[rng.Intn(len(pop))]
		if c.fitness < best.fitness {
			best = c
		}
	}
	return best
}

// orderCrossover copies a random segment of a verbatim, then fills the rest
// in b's relative order skipping values already placed.
func orderCrossover(a, b []int, rng *rand.Rand) []int {
	n := len(a)
	if n < 2 {
		return append([]int(nil), a...)
	}
	i := rng.Intn(n)
	j := rng.Intn(n)
	if i > j {
		i, j = j, i
	}
	child := make([]int, n)
	taken := make([]bool, n)
	for k := i; k <= j; k++ {
		child[k] = a[k]
		taken[a[k]] = true
	}
	pos := (j + 1) % n
	for k := 0; k < n; k++ {
		v := b[(j+1+k)%n]
		if taken[v] {
			continue
		}
		child[pos] = v
		taken[v] = true
		pos = (pos + 1) % n
	}
	return child
}

// mutate applies either a two-position swap or a segment reversal.
func mutate(perm []int, rng *rand.Rand) {
	n := len(perm)
	if n < 2 {
		return
	}
	i := rng.Intn(n)
	j := rng.Intn(n)
	if i > j {
		i, j = j, i
	}
	if rng.Float64() < 0.5 || i == j {
		perm[i], perm[j] = perm[j], perm[i]
		return
	}
	for a, b := i, j; a < b; a, b = a+1, b-1 {
		perm[a], perm[b] = perm[b], perm[a]
	}
}
