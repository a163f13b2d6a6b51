// Package bitorg is a bit-string organism: its genome is a string of '0' and
// '1' sites and its fitness is the number of '1' sites.
package bitorg

import (
	"fmt"
	"math/rand"
	"strings"
)

const DefaultMutationRate = 0.01

// Masked marks a site that does not affect fitness in a skeleton.
const Masked = '_'

type Organism struct {
	Genome string
}

func New(genome string) (*Organism, error) {
	if err := Validate(genome); err != nil {
		return nil, err
	}
	return &Organism{Genome: genome}, nil
}

func Validate(genome string) error {
	for i, c := range genome {
		if c != '0' && c != '1' {
			return fmt.Errorf("invalid genome site %d: %q", i, c)
		}
	}
	return nil
}

// Random returns an organism of length sites, each set with probability p.
func Random(rng *rand.Rand, length int, p float64) *Organism {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		if rng.Float64() < p {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return &Organism{Genome: b.String()}
}

func (o *Organism) Clone() *Organism {
	cp := *o
	return &cp
}

func (o *Organism) Fitness() float64 {
	return float64(strings.Count(o.Genome, "1"))
}

// Mutate flips each site with DefaultMutationRate.
func (o *Organism) Mutate(rng *rand.Rand) bool {
	return Mutator{Rate: DefaultMutationRate}.Mutate(o, rng)
}

func (o *Organism) String() string {
	return o.Genome
}

// Mutator flips each site independently with probability Rate.
type Mutator struct {
	Rate float64
}

func (m Mutator) Mutate(o *Organism, rng *rand.Rand) bool {
	if m.Rate <= 0 || o.Genome == "" {
		return false
	}
	var sites []byte
	for i := 0; i < len(o.Genome); i++ {
		if rng.Float64() >= m.Rate {
			continue
		}
		if sites == nil {
			sites = []byte(o.Genome)
		}
		sites[i] ^= 1 // '0' <-> '1'
	}
	if sites == nil {
		return false
	}
	o.Genome = string(sites)
	return true
}

func Genome(o *Organism) string {
	return o.Genome
}

// Hamming counts differing sites. Sites past the shorter genome all differ.
func Hamming(a, b *Organism) float64 {
	x, y := a.Genome, b.Genome
	if len(x) > len(y) {
		x, y = y, x
	}
	d := len(y) - len(x)
	for i := 0; i < len(x); i++ {
		if x[i] != y[i] {
			d++
		}
	}
	return float64(d)
}

// Skeleton masks every site whose knockout leaves fitness unchanged.
func Skeleton(genome string) string {
	base := (&Organism{Genome: genome}).Fitness()
	sites := []byte(genome)
	knocked := &Organism{}
	for i := range sites {
		probe := []byte(genome)
		probe[i] = '0'
		knocked.Genome = string(probe)
		if knocked.Fitness() == base {
			sites[i] = Masked
		}
	}
	return string(sites)
}

// Complexity is the number of informative sites in a skeleton.
func Complexity(skeleton string) int {
	return len(skeleton) - strings.Count(skeleton, string(Masked))
}
