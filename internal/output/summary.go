package output

import (
	"io"
	"sort"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/citymodel/popsynth/internal/population"
)

// Summarize prints a console digest of the population: roster totals,
// then per-activity-type and per-mode counts with mean durations.
// Wrapped plans count their duplicated final activity once.
func Summarize(pop *population.Population, out io.Writer) {
	p := message.NewPrinter(language.English)

	agents, acts, legs := pop.Size()
	p.Fprintf(out, "\n--- Population ---\n")
	p.Fprintf(out, "Agents:     %d\n", agents)
	p.Fprintf(out, "Activities: %d\n", acts)
	p.Fprintf(out, "Legs:       %d\n", legs)

	actCounts := map[string]int{}
	actMins := map[string]int{}
	modeCounts := map[string]int{}
	modeMins := map[string]int{}
	for _, agent := range pop.Agents {
		for _, plan := range agent.Plans {
			reported := plan.Activities
			if plan.Wrapped {
				reported = reported[:len(reported)-1]
			}
			for _, act := range reported {
				actCounts[act.Type]++
				actMins[act.Type] += act.DurationMins
			}
			for _, leg := range plan.Legs {
				modeCounts[leg.Mode]++
				modeMins[leg.Mode] += leg.DurationMins
			}
		}
	}

	p.Fprintf(out, "\n--- Activities ---\n")
	writeCountTable(p, out, actCounts, actMins)
	p.Fprintf(out, "\n--- Legs ---\n")
	writeCountTable(p, out, modeCounts, modeMins)
}

func writeCountTable(p *message.Printer, out io.Writer, counts, mins map[string]int) {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, key := range keys {
		mean := float64(mins[key]) / float64(counts[key])
		p.Fprintf(w, "%s\t%d\t%.0f mins mean\n", key, counts[key], mean)
	}
	_ = w.Flush()
}
