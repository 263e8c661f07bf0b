// Package freight synthesizes freight vehicle tours from period
// origin-destination matrices. Each sampled trip becomes a depot and
// delivery itinerary, out-and-back where the day allows it.
package freight

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citymodel/popsynth/internal/config"
	"github.com/citymodel/popsynth/internal/demand"
	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/sampler"
	"github.com/citymodel/popsynth/internal/zones"
)

const mode = "car"

// journeyLimit caps a single freight leg at 20 hours.
const journeyLimit = 72000 * time.Second

// oneWayThreshold is the outbound duration beyond which no return trip
// is attempted.
const oneWayThreshold = 12 * time.Hour

// periods index the day-part weights: am, inter, pm, night.
type period int

const (
	periodAM period = iota
	periodInter
	periodPM
	periodNight
)

func periodOf(hour int) period {
	switch {
	case hour >= 7 && hour < 10:
		return periodAM
	case hour >= 10 && hour < 16:
		return periodInter
	case hour >= 16 && hour < 19:
		return periodPM
	}
	return periodNight
}

// Builder samples freight tours for one vehicle class.
type Builder struct {
	name    string
	prefix  string
	weights []float64
	norm    float64

	rng     *rand.Rand
	points  *sampler.PointSampler
	size    *sampler.SizeController
	log     *zap.Logger
	periods map[period]demand.Matrix
}

// New loads and filters the vehicle's period matrices and prepares the
// builder. The vehicle class is "lgv" or "hgv".
func New(vehicle string, cfg *config.Config, set *zones.Set, rng *rand.Rand) (*Builder, error) {
	var paths config.FreightVehicleConfig
	switch vehicle {
	case "lgv":
		paths = cfg.Freight.LGV
	case "hgv":
		paths = cfg.Freight.HGV
	default:
		return nil, eris.Errorf("freight: unknown vehicle class %q", vehicle)
	}
	if paths.AMPath == "" || paths.IPPath == "" || paths.PMPath == "" {
		return nil, eris.Errorf("freight: %s needs am, ip and pm matrix paths", vehicle)
	}
	weights := cfg.Freight.Weights
	if len(weights) != 4 {
		return nil, eris.Errorf("freight: want 4 day-part weights, got %d", len(weights))
	}

	matrices, err := demand.LoadMatrices(paths.AMPath, paths.IPPath, paths.PMPath)
	if err != nil {
		return nil, eris.Wrapf(err, "freight: load %s demand", vehicle)
	}

	// Halve so the synthesized return trips do not double count demand.
	inArea := set.InAreaIDs()
	touches := func(r demand.ODRow) bool {
		if len(inArea) == 0 {
			return true
		}
		return inArea[r.O] || inArea[r.D]
	}
	periods := map[period]demand.Matrix{
		periodAM:    matrices[0].Scale(0.5).Filter(touches),
		periodInter: matrices[1].Scale(0.5).Filter(touches),
		periodPM:    matrices[2].Scale(0.5).Filter(touches),
	}
	periods[periodNight] = periods[periodInter]

	fallback := population.Point{X: cfg.Zones.FallbackX, Y: cfg.Zones.FallbackY}
	return &Builder{
		name:    "freight-" + vehicle,
		prefix:  vehicle + "_",
		weights: weights,
		norm:    cfg.Freight.Norm,
		rng:     rng,
		points:  sampler.NewPointSampler(rng, set, fallback),
		size:    sampler.NewSizeController(rng, cfg.Run.Sample, cfg.Run.Limit),
		log:     zap.L().With(zap.String("component", "source.freight"), zap.String("vehicle", vehicle)),
		periods: periods,
	}, nil
}

// Name identifies the source in records and plan tags.
func (b *Builder) Name() string { return b.name }

// Build samples the daily demand profile and appends one agent per trip.
func (b *Builder) Build(pop *population.Population) error {
	hourly, total := b.dailyProfile()
	if b.norm > 0 {
		for h := range hourly {
			hourly[h] = b.norm * hourly[h] / total
		}
		total = b.norm
	}

	hours := make([]int, 24)
	for h := range hours {
		hours[h] = h
	}
	hourDist, err := sampler.NewFrequencyDist(hours, hourly)
	if err != nil {
		return eris.Wrap(err, "freight: build daily profile")
	}

	odDists := make(map[period]*sampler.FrequencyDist[demand.ODPair], len(b.periods))
	for p, m := range b.periods {
		pairs, weights := m.Split()
		dist, err := sampler.NewFrequencyDist(pairs, weights)
		if err != nil {
			return eris.Wrapf(err, "freight: build period %d distribution", p)
		}
		odDists[p] = dist
	}

	n := b.size.SampleSize(total)
	b.log.Info("sampling freight trips", zap.Int("trips", n), zap.Float64("daily_demand", total))

	skipped := 0
	for trip := 0; trip < n; trip++ {
		uid := b.prefix + fmt.Sprint(trip)

		hour := hourDist.Sample(b.rng)
		nominal := sampler.Minute(b.rng, hour, 1)
		od := odDists[periodOf(hour)].Sample(b.rng)

		agent, err := b.buildAgent(uid, od, nominal)
		if err != nil {
			if eris.Is(err, sampler.ErrGeometrySampling) {
				skipped++
				b.log.Warn("skipping trip", zap.String("uid", uid), zap.Error(err))
				continue
			}
			return err
		}
		pop.Add(agent)
	}
	if skipped > 0 {
		b.log.Warn("trips skipped on point sampling", zap.Int("skipped", skipped))
	}
	return nil
}

// dailyProfile spreads the period matrix totals over 24 hourly weights.
// Night hours carry the night weight applied to inter-peak demand.
func (b *Builder) dailyProfile() ([]float64, float64) {
	totals := map[period]float64{
		periodAM:    b.periods[periodAM].Total(),
		periodInter: b.periods[periodInter].Total(),
		periodPM:    b.periods[periodPM].Total(),
	}
	hourly := make([]float64, 24)
	total := 0.0
	for h := 0; h < 24; h++ {
		p := periodOf(h)
		if p == periodNight {
			hourly[h] = b.weights[periodNight] * totals[periodInter]
		} else {
			hourly[h] = b.weights[p] * totals[p]
		}
		total += hourly[h]
	}
	return hourly, total
}

func (b *Builder) buildAgent(uid string, od demand.ODPair, nominal time.Time) (*population.Agent, error) {
	o, err := b.points.Sample(od.O)
	if err != nil {
		return nil, err
	}
	d, err := b.points.Sample(od.D)
	if err != nil {
		return nil, err
	}

	dist := sampler.Euclidean(o, d)
	journey := sampler.JourneyTime(dist, mode, sampler.JourneyOptions{Limit: journeyLimit})

	dt0, dt1 := sampler.TripTimes(nominal, journey, sampler.PushForward)
	stop := time.Duration(1+b.rng.Intn(6)) * 5 * time.Minute
	dt2 := dt1.Add(stop)
	dt3 := dt2.Add(journey)

	plan, err := b.buildPlan(uid, o, d, dt0, dt1, dt2, dt3, dist)
	if err != nil {
		return nil, err
	}

	// Placeholder demographics: freight vehicles carry the source tag
	// for every categorical key.
	demographics := map[string]string{}
	for _, key := range []string{"hsize", "car", "inc", "hstr", "gender", "age", "race", "license", "job", "occ"} {
		demographics[key] = b.name
	}
	return &population.Agent{
		UID: uid,
		Attributes: population.Attributes{
			Source:        b.name,
			Subpopulation: b.name,
			Demographics:  demographics,
		},
		Plans: []*population.Plan{plan},
	}, nil
}

// buildPlan assembles the depot/delivery itinerary. Activity start times
// follow the wrap convention: an activity starts when the vehicle
// arrives and ends when it departs, across midnight where needed.
func (b *Builder) buildPlan(uid string, o, d population.Point, dt0, dt1, dt2, dt3 time.Time, dist float64) (*population.Plan, error) {
	t0 := sampler.Clock(dt0) // depot departure
	t1 := sampler.Clock(dt1) // delivery arrival
	t2 := sampler.Clock(dt2) // delivery departure
	t3 := sampler.Clock(dt3) // depot return

	var acts []*population.Activity
	var legs []*population.Leg
	push := func(act *population.Activity, actErr error, leg *population.Leg, legErr error) error {
		if actErr != nil {
			return actErr
		}
		acts = append(acts, act)
		if legErr != nil {
			return legErr
		}
		if leg != nil {
			legs = append(legs, leg)
		}
		return nil
	}

	// Wall-clock minutes decide ordering: dt2 and dt3 may have crossed
	// midnight even though the datetimes run forward.
	clockMins := func(t time.Time) int { return t.Hour()*60 + t.Minute() }

	outbound := dt1.Sub(dt0)
	switch {
	case dt1.Day() != dt0.Day() || outbound > oneWayThreshold:
		// Too long to return: one-way depot to delivery.
		a0, e0 := population.NewActivity(uid, 0, "depot", o, t1, t0)
		l0, le0 := population.NewLeg(uid, 0, mode, o, d, t0, t1, dist)
		a1, e1 := population.NewActivity(uid, 1, "delivery", d, t1, t0)
		if err := push(a0, e0, l0, le0); err != nil {
			return nil, err
		}
		if err := push(a1, e1, nil, nil); err != nil {
			return nil, err
		}

	case clockMins(dt0) < clockMins(dt2):
		// Out-and-back within the day.
		a0, e0 := population.NewActivity(uid, 0, "depot", o, t3, t0)
		l0, le0 := population.NewLeg(uid, 0, mode, o, d, t0, t1, dist)
		a1, e1 := population.NewActivity(uid, 1, "delivery", d, t1, t2)
		l1, le1 := population.NewLeg(uid, 1, mode, d, o, t2, t3, dist)
		a2, e2 := population.NewActivity(uid, 2, "depot", o, t3, t0)
		if err := push(a0, e0, l0, le0); err != nil {
			return nil, err
		}
		if err := push(a1, e1, l1, le1); err != nil {
			return nil, err
		}
		if err := push(a2, e2, nil, nil); err != nil {
			return nil, err
		}

	default:
		// Overnight shift: the day starts mid-delivery.
		a0, e0 := population.NewActivity(uid, 0, "delivery", d, t1, t2)
		l0, le0 := population.NewLeg(uid, 0, mode, d, o, t2, t3, dist)
		a1, e1 := population.NewActivity(uid, 1, "depot", o, t3, t0)
		l1, le1 := population.NewLeg(uid, 1, mode, o, d, t0, t1, dist)
		a2, e2 := population.NewActivity(uid, 2, "delivery", d, t1, t2)
		if err := push(a0, e0, l0, le0); err != nil {
			return nil, err
		}
		if err := push(a1, e1, l1, le1); err != nil {
			return nil, err
		}
		if err := push(a2, e2, nil, nil); err != nil {
			return nil, err
		}
	}

	return population.NewPlan(acts, legs, b.name)
}

// LimitReached reports whether the run cap stopped sampling early.
func (b *Builder) LimitReached() bool { return b.size.LimitReached() }
