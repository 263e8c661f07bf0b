// Package survey expands travel-diary person-days into agents. Each
// diarist's trip chain is inferred into a full day of activities, and
// the diary's expansion weight controls how many copies are considered
// for sampling.
package survey

import (
	"fmt"
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citymodel/popsynth/internal/config"
	"github.com/citymodel/popsynth/internal/demand"
	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/sampler"
	"github.com/citymodel/popsynth/internal/zones"
)

// Builder expands survey person-days into sampled agents.
type Builder struct {
	cfg    config.SurveyConfig
	limit  int
	rng    *rand.Rand
	points *sampler.PointSampler
	gate   *sampler.RateGate
	log    *zap.Logger

	days  []demand.PersonDay
	attrs demand.AttributeTable
}

// New loads the diary and attribute inputs and prepares the builder.
func New(cfg *config.Config, set *zones.Set, rng *rand.Rand) (*Builder, error) {
	sc := cfg.Survey
	if sc.TripsPath == "" || sc.AttributesPath == "" {
		return nil, eris.New("survey: trips_path and attributes_path are required")
	}

	days, err := demand.LoadSurveyTrips(sc.TripsPath)
	if err != nil {
		return nil, eris.Wrap(err, "survey: load trips")
	}
	attrs, err := demand.LoadAttributeTable(sc.AttributesPath, sc.KeyColumn)
	if err != nil {
		return nil, eris.Wrap(err, "survey: load attributes")
	}

	fallback := population.Point{X: cfg.Zones.FallbackX, Y: cfg.Zones.FallbackY}
	return &Builder{
		cfg:    sc,
		limit:  cfg.Run.Limit,
		rng:    rng,
		points: sampler.NewPointSampler(rng, set, fallback),
		gate:   sampler.NewRateGate(rng, cfg.Run.Sample),
		log:    zap.L().With(zap.String("component", "source.survey")),
		days:   days,
		attrs:  attrs,
	}, nil
}

// Name identifies the source in records and plan tags.
func (b *Builder) Name() string { return "survey" }

// Build walks person-days in input order, expanding each by its
// frequency weight and consulting the rate gate per copy.
func (b *Builder) Build(pop *population.Population) error {
	skipped := 0
	for _, day := range b.days {
		copies := int(day.Freq)
		if b.cfg.NoFreq {
			copies = 1
		}

		for c := 0; c < copies; c++ {
			if b.limit > 0 && b.gate.Admitted() >= b.limit {
				b.log.Info("limit reached", zap.Int("admitted", b.gate.Admitted()))
				return nil
			}
			if !b.gate.Admit() {
				continue
			}

			uid := b.cfg.Prefix + day.PersonID + "_" + fmt.Sprint(c)
			agent, err := b.inferAgent(uid, day)
			if err != nil {
				if eris.Is(err, sampler.ErrGeometrySampling) {
					skipped++
					b.log.Warn("skipping person-day copy", zap.String("uid", uid), zap.Error(err))
					continue
				}
				return err
			}
			pop.Add(agent)
		}
		if b.limit > 0 && b.gate.Admitted() >= b.limit {
			b.log.Info("limit reached", zap.Int("admitted", b.gate.Admitted()))
			return nil
		}
	}
	if skipped > 0 {
		b.log.Warn("person-day copies skipped on point sampling", zap.Int("skipped", skipped))
	}
	return nil
}

// actSlot is one inferred activity before mapping and point sampling.
type actSlot struct {
	actType string
	zone    string
	start   string
	end     string
}

// inferAgent runs trip-chain inference for one person-day copy.
//
// Every activity defaults to Home. A trip purpose different from the
// previous trip's labels the following activity with that purpose; a
// repeated purpose is treated as the return leg of a pair and leaves the
// default, until a third repeat starts a new pair.
func (b *Builder) inferAgent(uid string, day demand.PersonDay) (*population.Agent, error) {
	trips := day.Trips
	n := len(trips)
	if n == 0 {
		return nil, eris.Errorf("survey: person %s has no trips", day.PersonID)
	}

	slots := make([]actSlot, n+1)
	for i := range slots {
		slots[i].actType = "Home"
	}

	lastPurpose := ""
	newPair := false
	for t := 0; t < n; t++ {
		prev := trips[(t+n-1)%n] // first activity wraps from the last trip
		slots[t].zone = trips[t].OZone
		slots[t].start = sampler.FormatHHMM(prev.EndHHMM)
		slots[t].end = sampler.FormatHHMM(trips[t].StartHHMM)

		purpose := trips[t].Purpose
		if purpose != lastPurpose || newPair {
			slots[t+1].actType = purpose
			newPair = false
		} else {
			newPair = true
		}
		lastPurpose = purpose
	}
	slots[n].zone = trips[n-1].DZone
	slots[n].start = sampler.FormatHHMM(trips[n-1].EndHHMM)
	slots[n].end = sampler.FormatHHMM(trips[0].StartHHMM)

	if b.cfg.ForceHome {
		slots[n].actType = "Home"
	}

	modes := make([]string, 0, n)
	for _, trip := range trips {
		modes = append(modes, trip.Mode)
	}

	// Splice out a leading dummy trip: drop the activity it reached.
	if !b.cfg.Dummies && trips[0].Purpose == "dummy" {
		slots = append(slots[:1], slots[2:]...)
		modes = modes[:len(modes)-1]
	}

	// One point per unique (type, zone): home stays at the same front
	// door all day.
	points := map[[2]string]population.Point{}
	for _, slot := range slots {
		key := [2]string{slot.actType, slot.zone}
		if _, ok := points[key]; ok {
			continue
		}
		pt, err := b.points.Sample(slot.zone)
		if err != nil {
			return nil, err
		}
		points[key] = pt
	}

	acts := make([]*population.Activity, 0, len(slots))
	legs := make([]*population.Leg, 0, len(slots)-1)
	for i, slot := range slots {
		pt := points[[2]string{slot.actType, slot.zone}]
		act, err := population.NewActivity(uid, i, b.mapActivity(slot.actType), pt, slot.start, slot.end)
		if err != nil {
			return nil, err
		}
		acts = append(acts, act)

		if i == len(slots)-1 {
			break
		}
		next := slots[i+1]
		nextPt := points[[2]string{next.actType, next.zone}]
		leg, err := population.NewLeg(uid, i, b.mapMode(modes[i]), pt, nextPt,
			slot.end, next.start, sampler.Euclidean(pt, nextPt))
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}

	plan, err := population.NewPlan(acts, legs, b.Name())
	if err != nil {
		return nil, err
	}

	demographics := map[string]string{}
	if row, ok := b.attrs.Get(day.PersonID); ok {
		for k, v := range row {
			demographics[k] = v
		}
	} else {
		b.log.Warn("no attributes for person", zap.String("person", day.PersonID))
	}
	subpopulation := demographics["inc"]
	if demographics["car"] == "car0" {
		subpopulation += "_nocar"
	}

	return &population.Agent{
		UID: uid,
		Attributes: population.Attributes{
			Source:        b.Name(),
			Subpopulation: subpopulation,
			Demographics:  demographics,
		},
		Plans: []*population.Plan{plan},
	}, nil
}

// mapMode converts a survey mode label to a simulation mode. The map
// empties under allcars, sending everything to the default.
func (b *Builder) mapMode(label string) string {
	if b.cfg.AllCars {
		return "car"
	}
	if mode, ok := b.cfg.ModeMap[label]; ok {
		return mode
	}
	return "car"
}

// mapActivity converts a survey purpose to a simulation activity type.
func (b *Builder) mapActivity(label string) string {
	if act, ok := b.cfg.ActivityMap[label]; ok {
		return act
	}
	return "other"
}

// Admitted reports how many person-day copies passed the rate gate.
func (b *Builder) Admitted() int { return b.gate.Admitted() }
