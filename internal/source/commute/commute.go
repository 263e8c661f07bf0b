// Package commute synthesizes commuter tours into the study area from
// segmented wide demand matrices, an attribute segmentation workbook
// and a period-factor workbook. Each sampled tour becomes a home,
// activity, home day (or the night-shift rotation of it).
package commute

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citymodel/popsynth/internal/config"
	"github.com/citymodel/popsynth/internal/demand"
	"github.com/citymodel/popsynth/internal/population"
	"github.com/citymodel/popsynth/internal/sampler"
	"github.com/citymodel/popsynth/internal/zones"
)

const (
	periodAM    = "AM"
	periodIP    = "IP"
	periodPM    = "PM"
	periodNight = "night"
)

var periods = []string{periodAM, periodIP, periodPM, periodNight}

// periodHours are the clock hours each period may start a trip in.
var periodHours = map[string][]int{
	periodAM:    {7, 8, 9},
	periodIP:    {10, 11, 12, 13, 14, 15},
	periodPM:    {16, 17, 18},
	periodNight: {0, 1, 2, 3, 4, 5, 6, 19, 20, 21, 22, 23},
}

// opposite maps an outbound period to the return period: peak commutes
// return in the opposite peak, inter-peak tours return overnight.
var opposite = map[string]string{
	periodAM:    periodPM,
	periodIP:    periodNight,
	periodPM:    periodAM,
	periodNight: periodIP,
}

// modeKeys order the demand matrix mode directories.
var modeKeys = []string{"M1", "M2", "M3", "M4", "M5", "M6", "M7"}

// modesOf maps matrix mode keys to simulation modes.
var modesOf = map[string]string{
	"M1": "car", // driver
	"M2": "car", // passenger
	"M3": "pt",  // rail
	"M4": "pt",  // bus
	"M5": "bike",
	"M6": "walk",
	"M7": "car", // taxi
}

// incomeConvert folds segmentation income bands onto the two
// subpopulation bands used downstream.
var incomeConvert = map[string]string{
	"inc16": "inc56",
	"inc78": "inc7p",
	"inc9p": "inc7p",
	"inc17": "inc56",
	"inc8p": "inc7p",
	"inc18": "inc56",
}

// Builder samples commuter tours.
type Builder struct {
	cfg    config.CommuteConfig
	rng    *rand.Rand
	points *sampler.PointSampler
	size   *sampler.SizeController
	set    *zones.Set
	log    *zap.Logger

	segments map[string][]Segment
	factors  *Factors
	regions  map[string]string // zone id -> region
	inArea   map[string]bool
	count    int
}

// New loads the segmentation and factor workbooks and prepares the
// builder. The zone set must already be marked with the study area.
func New(cfg *config.Config, set *zones.Set, rng *rand.Rand) (*Builder, error) {
	cc := cfg.Commute
	if cc.SegmentsPath == "" || cc.FactorsPath == "" || cc.MatrixDir == "" {
		return nil, eris.New("commute: segments_path, factors_path and matrix_dir are required")
	}

	segments, err := loadSegments(cc.SegmentsPath)
	if err != nil {
		return nil, err
	}
	factors, err := loadFactors(cc.FactorsPath)
	if err != nil {
		return nil, err
	}

	regions := make(map[string]string)
	for _, id := range set.IDs() {
		zone, _ := set.Get(id)
		regions[id] = zone.Fields[cc.RegionField]
	}
	inArea := set.InAreaIDs()
	if len(inArea) == 0 {
		return nil, eris.New("commute: no zones marked inside the study area")
	}

	fallback := population.Point{X: cfg.Zones.FallbackX, Y: cfg.Zones.FallbackY}
	return &Builder{
		cfg:      cc,
		rng:      rng,
		points:   sampler.NewPointSampler(rng, set, fallback),
		size:     sampler.NewSizeController(rng, cfg.Run.Sample, cfg.Run.Limit),
		set:      set,
		log:      zap.L().With(zap.String("component", "source.commute")),
		segments: segments,
		factors:  factors,
		regions:  regions,
		inArea:   inArea,
	}, nil
}

// Name identifies the source in records.
func (b *Builder) Name() string { return "commute" }

// Build walks tours, modes and segments in a fixed order and samples
// tours from each segment's demand.
func (b *Builder) Build(pop *population.Population) error {
	tours := make([]string, 0, len(b.cfg.TourMap))
	for tour := range b.cfg.TourMap {
		tours = append(tours, tour)
	}
	sort.Strings(tours)

	for _, tour := range tours {
		activity := b.cfg.TourMap[tour]
		segments, ok := b.segments[tour]
		if !ok {
			return eris.Errorf("commute: no segment sheet for tour %q", tour)
		}

		for _, modeKey := range modeKeys {
			files, err := segmentFiles(filepath.Join(b.cfg.MatrixDir, tour, modeKey))
			if err != nil {
				return err
			}
			if len(files) != len(segments) {
				return eris.Errorf("commute: tour %s mode %s has %d matrices for %d segments",
					tour, modeKey, len(files), len(segments))
			}

			for i, segment := range segments {
				if b.size.LimitReached() {
					b.log.Info("limit reached", zap.Int("tours", b.size.Count()))
					return nil
				}
				if err := b.buildSegment(pop, tour, activity, modeKey, segment, files[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// segmentFiles lists a mode directory's matrices in segment order.
func segmentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "commute: list matrices in %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// periodDemand is one period's share of a segment's demand.
type periodDemand struct {
	total float64
	od    *sampler.FrequencyDist[demand.ODPair]
}

func (b *Builder) buildSegment(pop *population.Population, tour, activity, modeKey string, segment Segment, path string) error {
	mode := modesOf[modeKey]
	incomeGroup, ok := b.cfg.IncomeMap[segment.Income]
	if !ok {
		incomeGroup = "All"
	}

	matrix, err := demand.LoadWideMatrix(path)
	if err != nil {
		return err
	}
	// Commuters only: origins outside the area, destinations inside.
	matrix = matrix.Filter(func(r demand.ODRow) bool {
		return !b.inArea[r.O] && b.inArea[r.D] && r.Freq > 0
	})
	if len(matrix.Rows) == 0 {
		b.log.Debug("segment has no commuter demand", zap.String("path", path))
		return nil
	}

	total := float64(sampler.RoundProb(b.rng, matrix.Total()))
	n := b.size.SampleSize(total)
	if n == 0 {
		return nil
	}

	factorMap, err := b.factors.FactorMap(tour, modeKey, incomeGroup)
	if err != nil {
		return err
	}

	demands, periodDist, err := b.buildPeriods(matrix, factorMap)
	if err != nil {
		return eris.Wrapf(err, "commute: build periods for %s", path)
	}

	b.log.Debug("sampling segment",
		zap.String("tour", tour),
		zap.String("mode", modeKey),
		zap.Int("segment", segment.No),
		zap.Int("tours", n),
	)

	skipped := 0
	for trip := 0; trip < n; trip++ {
		b.count++
		uid := fmt.Sprintf("%s_%d_%s_%s", b.cfg.Prefix, b.count, tour, mode)

		agent, err := b.buildAgent(uid, tour, activity, mode, segment, demands, periodDist)
		if err != nil {
			if eris.Is(err, sampler.ErrGeometrySampling) {
				skipped++
				b.log.Warn("skipping tour", zap.String("uid", uid), zap.Error(err))
				continue
			}
			return err
		}
		pop.Add(agent)
	}
	if skipped > 0 {
		b.log.Warn("tours skipped on point sampling", zap.Int("skipped", skipped))
	}
	return nil
}

// buildPeriods splits a segment matrix into per-period demand using the
// region factors, plus a distribution over the non-empty periods.
func (b *Builder) buildPeriods(matrix demand.Matrix, factorMap map[string]map[RegionPair]float64) (map[string]periodDemand, *sampler.FrequencyDist[string], error) {
	demands := make(map[string]periodDemand, len(periods))
	var names []string
	var totals []float64

	for _, period := range periods {
		factors := factorMap[period]
		var pairs []demand.ODPair
		var weights []float64
		for _, row := range matrix.Rows {
			regions := RegionPair{O: b.regions[row.O], D: b.regions[row.D]}
			w := row.Freq * factors[regions]
			if w <= 0 {
				continue
			}
			pairs = append(pairs, row.ODPair)
			weights = append(weights, w)
		}
		if len(pairs) == 0 {
			continue
		}
		od, err := sampler.NewFrequencyDist(pairs, weights)
		if err != nil {
			return nil, nil, err
		}
		demands[period] = periodDemand{total: od.Total(), od: od}
		names = append(names, period)
		totals = append(totals, od.Total())
	}

	if len(names) == 0 {
		return nil, nil, eris.New("no period demand after factoring")
	}
	periodDist, err := sampler.NewFrequencyDist(names, totals)
	if err != nil {
		return nil, nil, err
	}
	return demands, periodDist, nil
}

func (b *Builder) buildAgent(uid, tour, activity, mode string, segment Segment, demands map[string]periodDemand, periodDist *sampler.FrequencyDist[string]) (*population.Agent, error) {
	outPeriod := periodDist.Sample(b.rng)
	outTime := sampler.Minute(b.rng, sampler.UniformHour(b.rng, periodHours[outPeriod]), 1)
	od := demands[outPeriod].od.Sample(b.rng)

	returnPeriod := opposite[outPeriod]
	returnTime := sampler.Minute(b.rng, sampler.UniformHour(b.rng, periodHours[returnPeriod]), 1)

	origin, err := b.points.Sample(od.O)
	if err != nil {
		return nil, err
	}
	destination, err := b.points.Sample(od.D)
	if err != nil {
		return nil, err
	}

	dist := sampler.Euclidean(origin, destination)
	journey := sampler.JourneyTime(dist, mode, sampler.JourneyOptions{})

	outDepart, outArrive := sampler.TripTimes(outTime, journey, sampler.PushForward)
	returnDepart, returnArrive := sampler.TripTimes(returnTime, journey, sampler.PushBack)

	plan, err := b.buildPlan(uid, activity, mode, origin, destination,
		outDepart, outArrive, returnDepart, returnArrive, dist, returnTime.After(outTime), tour)
	if err != nil {
		return nil, err
	}

	subpopulation, ok := incomeConvert[segment.Income]
	if !ok {
		subpopulation = "inc56"
	}
	if segment.Car == "car0" {
		subpopulation += "_nocar"
	}

	const unknown = "unknown"
	return &population.Agent{
		UID: uid,
		Attributes: population.Attributes{
			Source:        b.Name() + "_" + tour,
			Subpopulation: subpopulation,
			Demographics: map[string]string{
				"hsize":   unknown,
				"car":     segment.Car,
				"inc":     segment.Income,
				"hstr":    unknown,
				"gender":  segment.Gender,
				"age":     unknown,
				"race":    unknown,
				"license": unknown,
				"job":     segment.Job,
				"occ":     segment.Occ,
			},
		},
		Plans: []*population.Plan{plan},
	}, nil
}

// buildPlan assembles the tour. A return after the outbound trip gives
// the usual home, activity, home day; otherwise the day starts
// mid-shift at the activity.
func (b *Builder) buildPlan(uid, activity, mode string, origin, destination population.Point,
	outDepart, outArrive, returnDepart, returnArrive time.Time, dist float64, regular bool, tour string) (*population.Plan, error) {

	t0 := sampler.Clock(outDepart)    // home departure
	t1 := sampler.Clock(outArrive)    // activity arrival
	t2 := sampler.Clock(returnDepart) // activity departure
	t3 := sampler.Clock(returnArrive) // home arrival

	type actSpec struct {
		actType    string
		point      population.Point
		start, end string
	}
	type legSpec struct {
		from, to   population.Point
		start, end string
	}

	var actSpecs []actSpec
	var legSpecs []legSpec
	if regular {
		actSpecs = []actSpec{
			{"home", origin, t3, t0},
			{activity, destination, t1, t2},
			{"home", origin, t3, t0},
		}
		legSpecs = []legSpec{
			{origin, destination, t0, t1},
			{destination, origin, t2, t3},
		}
	} else {
		actSpecs = []actSpec{
			{activity, destination, t1, t2},
			{"home", origin, t3, t0},
			{activity, destination, t1, t2},
		}
		legSpecs = []legSpec{
			{destination, origin, t2, t3},
			{origin, destination, t0, t1},
		}
	}

	acts := make([]*population.Activity, 0, len(actSpecs))
	for i, spec := range actSpecs {
		act, err := population.NewActivity(uid, i, spec.actType, spec.point, spec.start, spec.end)
		if err != nil {
			return nil, err
		}
		acts = append(acts, act)
	}
	legs := make([]*population.Leg, 0, len(legSpecs))
	for i, spec := range legSpecs {
		leg, err := population.NewLeg(uid, i, mode, spec.from, spec.to, spec.start, spec.end, dist)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}

	return population.NewPlan(acts, legs, b.Name()+"_"+tour)
}

// Count reports how many tours have been sampled so far.
func (b *Builder) Count() int { return b.count }
