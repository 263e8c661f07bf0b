// Package source defines the demand sources that synthesize agents into
// a population, and the registry that constructs them from configuration.
package source

import (
	"math/rand"

	"github.com/rotisserie/eris"

	"github.com/citymodel/popsynth/internal/config"
	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/zones"
)

// Kind identifies a demand source.
type Kind string

const (
	KindFreightLGV Kind = "freight-lgv"
	KindFreightHGV Kind = "freight-hgv"
	KindSurvey     Kind = "survey"
	KindCommute    Kind = "commute"
	KindTrace      Kind = "trace"
)

// ParseKind validates a configured source name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFreightLGV, KindFreightHGV, KindSurvey, KindCommute, KindTrace:
		return Kind(s), nil
	}
	return "", eris.Errorf("source: unknown kind %q", s)
}

// Builder synthesizes agents from one demand source into a population.
// Build appends agents; it never removes or reorders existing ones.
type Builder interface {
	Name() string
	Build(pop *population.Population) error
}

// Env bundles the shared inputs every source constructor needs.
type Env struct {
	Cfg   *config.Config
	Zones *zones.Set
	RNG   *rand.Rand
}
