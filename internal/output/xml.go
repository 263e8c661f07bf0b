// Package output serializes a synthesized population: MATSim plans and
// object-attributes XML, flat CSV tables, an optional SQLite database
// and a console summary.
package output

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/citymodel/popsynth/internal/population"
)

const (
	plansDoctype      = `<!DOCTYPE population SYSTEM "http://www.matsim.org/files/dtd/population_v5.dtd">`
	attributesDoctype = `<!DOCTYPE objectAttributes SYSTEM "http://www.matsim.org/files/dtd/objectattributes_v1.dtd">`
)

// WritePlansXML writes the population as a MATSim population_v5 file.
// Provenance records ride along as comments; the final activity of each
// plan carries no end_time, per the DTD.
func WritePlansXML(pop *population.Population, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create plans xml %s", path)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "%s%s\n", xml.Header, plansDoctype); err != nil {
		return eris.Wrap(err, "output: write plans header")
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "\t")

	root := xml.StartElement{Name: xml.Name{Local: "population"}}
	if err := enc.EncodeToken(root); err != nil {
		return eris.Wrap(err, "output: open population element")
	}
	if err := encodeRecords(enc, pop); err != nil {
		return err
	}

	for _, agent := range pop.Agents {
		person := xml.StartElement{
			Name: xml.Name{Local: "person"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: agent.UID}},
		}
		if err := enc.EncodeToken(person); err != nil {
			return eris.Wrapf(err, "output: person %s", agent.UID)
		}

		for _, plan := range agent.Plans {
			planEl := xml.StartElement{
				Name: xml.Name{Local: "plan"},
				Attr: []xml.Attr{{Name: xml.Name{Local: "selected"}, Value: "yes"}},
			}
			if err := enc.EncodeToken(planEl); err != nil {
				return eris.Wrapf(err, "output: plan for %s", agent.UID)
			}

			for i, leg := range plan.Legs {
				if err := encodeEmpty(enc, "act", actAttrs(plan.Activities[i], true)); err != nil {
					return eris.Wrapf(err, "output: activity %s[%d]", agent.UID, i)
				}
				if err := encodeEmpty(enc, "leg", []xml.Attr{
					{Name: xml.Name{Local: "mode"}, Value: leg.Mode},
				}); err != nil {
					return eris.Wrapf(err, "output: leg %s[%d]", agent.UID, i)
				}
			}
			last := plan.Activities[len(plan.Activities)-1]
			if err := encodeEmpty(enc, "act", actAttrs(last, false)); err != nil {
				return eris.Wrapf(err, "output: final activity %s", agent.UID)
			}

			if err := enc.EncodeToken(planEl.End()); err != nil {
				return eris.Wrapf(err, "output: close plan for %s", agent.UID)
			}
		}
		if err := enc.EncodeToken(person.End()); err != nil {
			return eris.Wrapf(err, "output: close person %s", agent.UID)
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return eris.Wrap(err, "output: close population element")
	}
	if err := enc.Flush(); err != nil {
		return eris.Wrap(err, "output: flush plans xml")
	}

	zap.L().Info("plans xml written", zap.String("path", path), zap.Int("agents", len(pop.Agents)))
	return nil
}

// WriteAttributesXML writes agent attributes as a MATSim
// objectattributes_v1 file, one object per agent, every attribute a
// java.lang.String.
func WriteAttributesXML(pop *population.Population, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create attributes xml %s", path)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "%s%s\n", xml.Header, attributesDoctype); err != nil {
		return eris.Wrap(err, "output: write attributes header")
	}

	enc := xml.NewEncoder(f)
	enc.Indent("", "\t")

	root := xml.StartElement{Name: xml.Name{Local: "objectAttributes"}}
	if err := enc.EncodeToken(root); err != nil {
		return eris.Wrap(err, "output: open objectAttributes element")
	}
	if err := encodeRecords(enc, pop); err != nil {
		return err
	}

	for _, agent := range pop.Agents {
		object := xml.StartElement{
			Name: xml.Name{Local: "object"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: agent.UID}},
		}
		if err := enc.EncodeToken(object); err != nil {
			return eris.Wrapf(err, "output: object %s", agent.UID)
		}

		flat := agent.Attributes.Flatten()
		for _, key := range agent.Attributes.Keys() {
			attr := xml.StartElement{
				Name: xml.Name{Local: "attribute"},
				Attr: []xml.Attr{
					{Name: xml.Name{Local: "class"}, Value: "java.lang.String"},
					{Name: xml.Name{Local: "name"}, Value: key},
				},
			}
			if err := enc.EncodeToken(attr); err != nil {
				return eris.Wrapf(err, "output: attribute %s.%s", agent.UID, key)
			}
			if err := enc.EncodeToken(xml.CharData(flat[key])); err != nil {
				return eris.Wrapf(err, "output: attribute value %s.%s", agent.UID, key)
			}
			if err := enc.EncodeToken(attr.End()); err != nil {
				return eris.Wrapf(err, "output: close attribute %s.%s", agent.UID, key)
			}
		}
		if err := enc.EncodeToken(object.End()); err != nil {
			return eris.Wrapf(err, "output: close object %s", agent.UID)
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return eris.Wrap(err, "output: close objectAttributes element")
	}
	if err := enc.Flush(); err != nil {
		return eris.Wrap(err, "output: flush attributes xml")
	}

	zap.L().Info("attributes xml written", zap.String("path", path), zap.Int("agents", len(pop.Agents)))
	return nil
}

// encodeRecords emits the provenance records as XML comments, sorted by
// source for stable output.
func encodeRecords(enc *xml.Encoder, pop *population.Population) error {
	if len(pop.Records) == 0 {
		return nil
	}
	if err := enc.EncodeToken(xml.Comment(" Input Records: ")); err != nil {
		return eris.Wrap(err, "output: records comment")
	}

	sources := make([]string, 0, len(pop.Records))
	for source := range pop.Records {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		record := pop.Records[source]
		comment := fmt.Sprintf(" source: %s run: %s time: %s plans: %d acts: %d legs: %d ",
			source, record.RunID, record.Time.Format("2006-01-02 15:04:05"),
			record.Plans, record.Acts, record.Legs)
		if err := enc.EncodeToken(xml.Comment(comment)); err != nil {
			return eris.Wrapf(err, "output: record comment for %s", source)
		}
		for _, key := range sortedKeys(record.Extra) {
			extra := fmt.Sprintf(" %s: %s ", key, record.Extra[key])
			if err := enc.EncodeToken(xml.Comment(extra)); err != nil {
				return eris.Wrapf(err, "output: record extra for %s", source)
			}
		}
	}
	return nil
}

func actAttrs(a *population.Activity, withEnd bool) []xml.Attr {
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "type"}, Value: a.Type},
		{Name: xml.Name{Local: "x"}, Value: strconv.Itoa(int(a.Point.X))},
		{Name: xml.Name{Local: "y"}, Value: strconv.Itoa(int(a.Point.Y))},
	}
	if withEnd {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "end_time"}, Value: a.EndTime})
	}
	return attrs
}

func encodeEmpty(enc *xml.Encoder, name string, attrs []xml.Attr) error {
	el := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
