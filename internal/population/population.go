// Package population holds the synthesized travel population: agents with
// daily plans of activities and legs, plus per-source provenance records.
package population

import (
	"sort"
	"time"
)

// Attributes carries an agent's categorical attributes. Source and
// Subpopulation are required for every agent; Demographics holds the
// source-specific categorical keys (hsize, car, inc, gender, ...).
type Attributes struct {
	Source        string
	Subpopulation string
	Demographics  map[string]string
}

// Flatten returns the full attribute name -> value map used for
// serialization, always including source and subpopulation.
func (a Attributes) Flatten() map[string]string {
	out := make(map[string]string, len(a.Demographics)+2)
	for k, v := range a.Demographics {
		out[k] = v
	}
	out["source"] = a.Source
	out["subpopulation"] = a.Subpopulation
	return out
}

// Keys returns the sorted attribute key set, for deterministic output.
func (a Attributes) Keys() []string {
	flat := a.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Agent is one synthesized person or vehicle with a daily plan.
type Agent struct {
	UID        string
	Attributes Attributes
	Plans      []*Plan
}

// Record is the provenance snapshot stamped by each source build.
type Record struct {
	RunID string            `json:"run_id"`
	Time  time.Time         `json:"time"`
	Plans int               `json:"plans"`
	Acts  int               `json:"acts"`
	Legs  int               `json:"legs"`
	Extra map[string]string `json:"extra,omitempty"`
}

// Population is a roster of agents plus provenance records keyed by
// source name.
type Population struct {
	Agents  []*Agent
	Records map[string]Record
}

// New returns an empty population.
func New() *Population {
	return &Population{Records: make(map[string]Record)}
}

// Add appends a single agent.
func (p *Population) Add(agent *Agent) {
	p.Agents = append(p.Agents, agent)
}

// AddAgents merges another population into this one by agent
// concatenation and record-map union. Duplicate source keys are
// last-writer-wins; source keys are unique per run.
func (p *Population) AddAgents(other *Population) {
	p.Agents = append(p.Agents, other.Agents...)
	for source, record := range other.Records {
		p.Records[source] = record
	}
}

// Size returns the roster totals: agents, activities and legs.
func (p *Population) Size() (agents, acts, legs int) {
	for _, agent := range p.Agents {
		agents++
		for _, plan := range agent.Plans {
			acts += len(plan.Activities)
			legs += len(plan.Legs)
		}
	}
	return agents, acts, legs
}

// MakeRecord stamps a provenance record for the given source, echoing
// config details through extra.
func (p *Population) MakeRecord(source, runID string, extra map[string]string) Record {
	agents, acts, legs := p.Size()
	record := Record{
		RunID: runID,
		Time:  time.Now(),
		Plans: agents,
		Acts:  acts,
		Legs:  legs,
		Extra: extra,
	}
	p.Records[source] = record
	return record
}

// BuildSubCategories runs the one-shot work/home relabeling pass over
// every plan in the roster.
func (p *Population) BuildSubCategories() {
	for _, agent := range p.Agents {
		for _, plan := range agent.Plans {
			plan.BuildSubCategories()
		}
	}
}

// ActivityRows returns flat table rows for every reported activity,
// prefixed by the plan source.
func (p *Population) ActivityRows() [][]string {
	var rows [][]string
	for _, agent := range p.Agents {
		for _, plan := range agent.Plans {
			for _, act := range plan.reportedActivities() {
				rows = append(rows, activityRow(plan.Source, act))
			}
		}
	}
	return rows
}

// LegRows returns flat table rows for every leg, prefixed by the plan
// source.
func (p *Population) LegRows() [][]string {
	var rows [][]string
	for _, agent := range p.Agents {
		for _, plan := range agent.Plans {
			for _, leg := range plan.Legs {
				rows = append(rows, legRow(plan.Source, leg))
			}
		}
	}
	return rows
}
