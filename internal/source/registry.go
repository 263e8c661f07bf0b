package source

import (
	"github.com/rotisserie/eris"

	"github.com/citymodel/popsynth/internal/source/commute"
	"github.com/citymodel/popsynth/internal/source/freight"
	"github.com/citymodel/popsynth/internal/source/survey"
	"github.com/citymodel/popsynth/internal/source/trace"
)

// New constructs the builder for a source kind. Constructors validate
// their own configuration and load their inputs eagerly, so a
// misconfigured source fails here rather than mid-build.
func New(kind Kind, env Env) (Builder, error) {
	switch kind {
	case KindFreightLGV:
		return freight.New("lgv", env.Cfg, env.Zones, env.RNG)
	case KindFreightHGV:
		return freight.New("hgv", env.Cfg, env.Zones, env.RNG)
	case KindSurvey:
		return survey.New(env.Cfg, env.Zones, env.RNG)
	case KindCommute:
		return commute.New(env.Cfg, env.Zones, env.RNG)
	case KindTrace:
		return trace.New(env.Cfg, nil)
	}
	return nil, eris.Errorf("source: unknown kind %q", kind)
}
