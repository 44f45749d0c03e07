package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeedSource is a configured syndication feed.
type FeedSource struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"` // higher wins when duplicates collapse
	Group    string `yaml:"group"`
}

// KeywordWeights maps a keyword or phrase to a strictly positive weight.
type KeywordWeights map[string]float64

// Category is one topic of the keyword weight table.
type Category struct {
	Name       string         `yaml:"name"`
	Multiplier float64        `yaml:"multiplier"` // 0 in YAML means 1
	Keywords   KeywordWeights `yaml:"keywords"`
}

// Country is one entry of the ordered country/region table. Position in the
// table breaks ties between equally weighted matches.
type Country struct {
	Name     string         `yaml:"name"`
	Keywords KeywordWeights `yaml:"keywords"`
}

// Actor is a tracked name with its aliases for sentiment analysis.
type Actor struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// ReportSections names the categories behind each thematic report section.
type ReportSections struct {
	Security []string `yaml:"security"`
	Economic []string `yaml:"economic"`
	Social   []string `yaml:"social"`
}

// Reference holds the static reference tables. It is loaded once at startup
// and treated as read-only afterwards; components copy what they index.
type Reference struct {
	Feeds      []FeedSource `yaml:"feeds"`
	Categories []Category   `yaml:"categories"`
	Countries  []Country    `yaml:"countries"`
	Actors     []Actor      `yaml:"actors"`

	ReportSections ReportSections `yaml:"report_sections"`
}

// KeywordWeightTable returns category name -> keyword -> weight.
func (r *Reference) KeywordWeightTable() map[string]KeywordWeights {
	out := make(map[string]KeywordWeights, len(r.Categories))
	for _, c := range r.Categories {
		kw := make(KeywordWeights, len(c.Keywords))
		for k, w := range c.Keywords {
			kw[k] = w
		}
		out[c.Name] = kw
	}
	return out
}

// CategoryNames returns the categories in configured order.
func (r *Reference) CategoryNames() []string {
	names := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		names = append(names, c.Name)
	}
	return names
}

// CountryNames returns the countries in configured order.
func (r *Reference) CountryNames() []string {
	names := make([]string, 0, len(r.Countries))
	for _, c := range r.Countries {
		names = append(names, c.Name)
	}
	return names
}

// SourceGroups returns group -> source names, sources in configured order.
func (r *Reference) SourceGroups() map[string][]string {
	groups := make(map[string][]string)
	for _, f := range r.Feeds {
		g := f.Group
		if g == "" {
			g = "Other"
		}
		groups[g] = append(groups[g], f.Name)
	}
	return groups
}

// LoadReference reads and validates the reference tables from a YAML file.
func LoadReference(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Source: path, Problems: []string{err.Error()}}
	}
	return ParseReference(data, path)
}

// ParseReference decodes and validates reference YAML. Unknown fields are
// rejected so a misspelled key does not silently drop a table.
func ParseReference(data []byte, source string) (*Reference, error) {
	var ref Reference
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ref); err != nil {
		return nil, &ConfigurationError{Source: source, Problems: []string{fmt.Sprintf("decode: %v", err)}}
	}

	for i := range ref.Categories {
		if ref.Categories[i].Multiplier == 0 {
			ref.Categories[i].Multiplier = 1
		}
	}

	if err := ref.Validate(source); err != nil {
		return nil, err
	}
	return &ref, nil
}

// Validate checks every table and reports all problems together.
func (r *Reference) Validate(source string) error {
	errs := &ConfigurationError{Source: source}

	if len(r.Feeds) == 0 {
		errs.add("feeds: at least one feed is required")
	}
	feedNames := map[string]bool{}
	for i, f := range r.Feeds {
		if strings.TrimSpace(f.Name) == "" {
			errs.add("feeds[%d]: name is required", i)
		} else if feedNames[f.Name] {
			errs.add("feeds[%d]: duplicate name %q", i, f.Name)
		}
		feedNames[f.Name] = true

		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.add("feeds[%d]: invalid url %q", i, f.URL)
		}
	}

	catNames := map[string]bool{}
	for i, c := range r.Categories {
		if strings.TrimSpace(c.Name) == "" {
			errs.add("categories[%d]: name is required", i)
		} else if catNames[c.Name] {
			errs.add("categories[%d]: duplicate name %q", i, c.Name)
		}
		catNames[c.Name] = true
		if c.Multiplier < 0 {
			errs.add("categories[%d]: multiplier must be positive", i)
		}
		validateKeywords(errs, fmt.Sprintf("categories[%d] %q", i, c.Name), c.Keywords)
	}

	countryNames := map[string]bool{}
	for i, c := range r.Countries {
		if strings.TrimSpace(c.Name) == "" {
			errs.add("countries[%d]: name is required", i)
		} else if countryNames[c.Name] {
			errs.add("countries[%d]: duplicate name %q", i, c.Name)
		}
		countryNames[c.Name] = true
		validateKeywords(errs, fmt.Sprintf("countries[%d] %q", i, c.Name), c.Keywords)
	}

	actorNames := map[string]bool{}
	for i, a := range r.Actors {
		if strings.TrimSpace(a.Name) == "" {
			errs.add("actors[%d]: name is required", i)
		} else if actorNames[a.Name] {
			errs.add("actors[%d]: duplicate name %q", i, a.Name)
		}
		actorNames[a.Name] = true
		if len(a.Aliases) == 0 {
			errs.add("actors[%d]: at least one alias is required", i)
		}
		for j, alias := range a.Aliases {
			if strings.TrimSpace(alias) == "" {
				errs.add("actors[%d].aliases[%d]: empty alias", i, j)
			}
		}
	}

	for _, section := range []struct {
		name       string
		categories []string
	}{
		{"security", r.ReportSections.Security},
		{"economic", r.ReportSections.Economic},
		{"social", r.ReportSections.Social},
	} {
		for _, c := range section.categories {
			if !catNames[c] {
				errs.add("report_sections.%s: unknown category %q", section.name, c)
			}
		}
	}

	return errs.orNil()
}

func validateKeywords(errs *ConfigurationError, where string, kw KeywordWeights) {
	if len(kw) == 0 {
		errs.add("%s: at least one keyword is required", where)
		return
	}
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			errs.add("%s: empty keyword", where)
		}
		if w := kw[k]; !(w > 0) {
			errs.add("%s: keyword %q must have a positive weight, got %v", where, k, w)
		}
	}
}
