// Package trace converts smartphone trip traces into agents. Traces are
// a census of volunteers, not a demand model, so no sampling applies:
// each user contributes their first recorded day that forms a closed
// trip chain.
package trace

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citymodel/popsynth/internal/config"
	"github.com/citymodel/popsynth/internal/demand"
	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/sampler"
)

// earthRadius in metres, for the local projection.
const earthRadius = 6371000.0

// Projector maps WGS84 coordinates onto the run's working grid with a
// local equirectangular projection around a configured origin. Accurate
// to well under a metre per kilometre at city scale.
type Projector struct {
	lon0    float64
	lat0    float64
	cosLat0 float64
}

// NewProjector builds a projector centred on the given origin.
func NewProjector(lon0, lat0 float64) *Projector {
	return &Projector{
		lon0:    lon0,
		lat0:    lat0,
		cosLat0: math.Cos(lat0 * math.Pi / 180),
	}
}

// Project converts a lon/lat pair to metres east and north of the
// projection origin.
func (p *Projector) Project(lon, lat float64) population.Point {
	return population.Point{
		X: earthRadius * (lon - p.lon0) * math.Pi / 180 * p.cosLat0,
		Y: earthRadius * (lat - p.lat0) * math.Pi / 180,
	}
}

// Inferrer labels the activity at a visited location. The default
// labels everything "other"; richer implementations can look up land
// use around the point.
type Inferrer interface {
	Infer(lon, lat float64) string
}

// ConstantInferrer labels every location with a fixed activity type.
type ConstantInferrer string

// Infer returns the constant label.
func (c ConstantInferrer) Infer(lon, lat float64) string { return string(c) }

// Builder converts trace trips into agents.
type Builder struct {
	level     int
	projector *Projector
	inferrer  Inferrer
	log       *zap.Logger
	trips     []demand.TraceTrip
}

// New loads the trace trips and prepares the builder.
func New(cfg *config.Config, inferrer Inferrer) (*Builder, error) {
	tc := cfg.Trace
	if tc.TripsPath == "" {
		return nil, eris.New("trace: trips_path is required")
	}
	trips, err := demand.LoadTraceTrips(tc.TripsPath)
	if err != nil {
		return nil, eris.Wrap(err, "trace: load trips")
	}
	if inferrer == nil {
		inferrer = ConstantInferrer("other")
	}
	return &Builder{
		level:     tc.CellLevel,
		projector: NewProjector(tc.OriginLon, tc.OriginLat),
		inferrer:  inferrer,
		log:       zap.L().With(zap.String("component", "source.trace")),
		trips:     trips,
	}, nil
}

// Name identifies the source in records.
func (b *Builder) Name() string { return "trace" }

// Build appends one agent per user with a feasible closed-loop day.
func (b *Builder) Build(pop *population.Population) error {
	users := map[string][]demand.TraceTrip{}
	var order []string
	for _, trip := range b.trips {
		if _, ok := users[trip.User]; !ok {
			order = append(order, trip.User)
		}
		users[trip.User] = append(users[trip.User], trip)
	}

	built := 0
	for _, user := range order {
		agent, err := b.buildAgent(user, users[user])
		if err != nil {
			return err
		}
		if agent == nil {
			b.log.Debug("no feasible day for user", zap.String("user", user))
			continue
		}
		pop.Add(agent)
		built++
	}
	b.log.Info("trace agents built", zap.Int("users", len(order)), zap.Int("agents", built))
	return nil
}

// cell returns the parent cell id used for loop matching.
func (b *Builder) cell(lat, lon float64) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(b.level)
}

// closedLoop reports whether a day's trips chain back to their start:
// the first origin and last destination share a cell, and each trip
// starts where the previous one ended.
func (b *Builder) closedLoop(trips []demand.TraceTrip) bool {
	first := trips[0]
	last := trips[len(trips)-1]
	if b.cell(first.OLat, first.OLon) != b.cell(last.DLat, last.DLon) {
		return false
	}
	for i := 1; i < len(trips); i++ {
		if b.cell(trips[i].OLat, trips[i].OLon) != b.cell(trips[i-1].DLat, trips[i-1].DLon) {
			return false
		}
	}
	return true
}

// buildAgent returns the agent for the user's first feasible day, or
// nil when no day has at least two trips forming a closed loop.
func (b *Builder) buildAgent(user string, trips []demand.TraceTrip) (*population.Agent, error) {
	byDay := map[string][]demand.TraceTrip{}
	for _, trip := range trips {
		byDay[trip.Day()] = append(byDay[trip.Day()], trip)
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		dayTrips := byDay[day]
		if len(dayTrips) < 2 {
			continue
		}
		sort.SliceStable(dayTrips, func(i, j int) bool {
			return dayTrips[i].Start.Before(dayTrips[j].Start)
		})
		if !b.closedLoop(dayTrips) {
			continue
		}

		uid := fmt.Sprintf("momo_%s_%s", user, day)
		plan, err := b.buildPlan(uid, dayTrips)
		if err != nil {
			return nil, err
		}

		const unknown = "unknown"
		return &population.Agent{
			UID: uid,
			Attributes: population.Attributes{
				Source:        b.Name(),
				Subpopulation: "default",
				Demographics: map[string]string{
					"hsize":   unknown,
					"car":     unknown,
					"inc":     unknown,
					"hstr":    unknown,
					"gender":  unknown,
					"age":     unknown,
					"race":    unknown,
					"license": unknown,
					"job":     unknown,
					"occ":     unknown,
				},
			},
			Plans: []*population.Plan{plan},
		}, nil
	}
	return nil, nil
}

// buildPlan turns one closed-loop day into a plan. The first activity
// is home; later activities are home when the departing trip leaves the
// home cell, otherwise labelled by the inferrer. A final home activity
// wraps the day back to the first origin.
func (b *Builder) buildPlan(uid string, trips []demand.TraceTrip) (*population.Plan, error) {
	homeCell := b.cell(trips[0].OLat, trips[0].OLon)
	homePoint := b.projector.Project(trips[0].OLon, trips[0].OLat)

	var acts []*population.Activity
	var legs []*population.Leg
	n := len(trips)

	for i, trip := range trips {
		actType := "home"
		point := homePoint
		if i > 0 {
			point = b.projector.Project(trip.OLon, trip.OLat)
			if b.cell(trip.OLat, trip.OLon) != homeCell {
				actType = b.inferrer.Infer(trip.OLon, trip.OLat)
			}
		}

		// The activity sits between the previous trip's arrival and
		// this trip's departure; the first wraps from the last trip.
		prev := trips[(i+n-1)%n]
		act, err := population.NewActivity(uid, i, actType, point,
			sampler.Clock(prev.End), sampler.Clock(trip.Start))
		if err != nil {
			return nil, err
		}
		acts = append(acts, act)

		leg, err := population.NewLeg(uid, i, trip.Mode,
			point, b.projector.Project(trip.DLon, trip.DLat),
			sampler.Clock(trip.Start), sampler.Clock(trip.End), trip.Distance)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}

	// Overnight home, wrapped to the first origin.
	last := trips[n-1]
	finalAct, err := population.NewActivity(uid, n, "home", homePoint,
		sampler.Clock(last.End), sampler.Clock(trips[0].Start))
	if err != nil {
		return nil, err
	}
	acts = append(acts, finalAct)

	return population.NewPlan(acts, legs, b.Name())
}
