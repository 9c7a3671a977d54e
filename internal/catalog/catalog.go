// Package catalog holds the static table of known style-guide sections and
// the subscription tiers that gate them.
package catalog

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Tier is a subscription level. Only its ordering matters.
type Tier int

const (
	TierStarter Tier = iota
	TierPro
	TierAgency
)

var tierNames = map[Tier]string{
	TierStarter: "starter",
	TierPro:     "pro",
	TierAgency:  "agency",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "starter"
}

// ParseTier maps a tier name to a Tier. Unknown or empty values degrade to
// the lowest tier so a stale subscription record never locks a user out of
// rendering entirely.
func ParseTier(s string) Tier {
	switch s {
	case "pro":
		return TierPro
	case "agency":
		return TierAgency
	default:
		return TierStarter
	}
}

// AtLeast reports whether t satisfies the given minimum tier.
func (t Tier) AtLeast(min Tier) bool {
	return t >= min
}

// CoverID is the reserved id of the cover placeholder section. It is never
// editable and never part of the editable subset.
const CoverID = "cover"

// Entry maps a heading-matching pattern to a canonical section id and the
// minimum tier required to edit that section.
type Entry struct {
	Pattern *regexp.Regexp
	ID      string
	MinTier Tier
}

// Catalog is an immutable, ordered table of entries. First match wins;
// patterns are expected to be mutually exclusive.
type Catalog struct {
	entries []Entry
	byID    map[string]Entry
}

func New(entries []Entry) *Catalog {
	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	return &Catalog{entries: entries, byID: byID}
}

// Match returns the first entry whose pattern matches the heading title.
func (c *Catalog) Match(title string) (Entry, bool) {
	for _, e := range c.entries {
		if e.Pattern.MatchString(title) {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether id is a known canonical section id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Default returns the built-in brand style guide catalog.
func Default() *Catalog {
	return New([]Entry{
		{Pattern: regexp.MustCompile(`(?i)^cover\b`), ID: CoverID, MinTier: TierStarter},
		{Pattern: regexp.MustCompile(`(?i)^about\b`), ID: "about", MinTier: TierStarter},
		{Pattern: regexp.MustCompile(`(?i)^mission\b`), ID: "mission", MinTier: TierStarter},
		{Pattern: regexp.MustCompile(`(?i)^vision\b`), ID: "vision", MinTier: TierStarter},
		{Pattern: regexp.MustCompile(`(?i)^(core |brand )?values\b`), ID: "values", MinTier: TierStarter},
		{Pattern: regexp.MustCompile(`(?i)^(tagline|slogan)\b`), ID: "tagline", MinTier: TierStarter},
		{Pattern: regexp.MustCompile(`(?i)^(target )?audience\b`), ID: "target-audience", MinTier: TierPro},
		{Pattern: regexp.MustCompile(`(?i)^(brand )?voice\b`), ID: "brand-voice", MinTier: TierPro},
		{Pattern: regexp.MustCompile(`(?i)^tone\b`), ID: "tone-of-voice", MinTier: TierPro},
		{Pattern: regexp.MustCompile(`(?i)^(key )?messag`), ID: "messaging", MinTier: TierPro},
		{Pattern: regexp.MustCompile(`(?i)^colou?r`), ID: "color-palette", MinTier: TierAgency},
		{Pattern: regexp.MustCompile(`(?i)^(typography|fonts?)\b`), ID: "typography", MinTier: TierAgency},
		{Pattern: regexp.MustCompile(`(?i)^logo\b`), ID: "logo-usage", MinTier: TierAgency},
		{Pattern: regexp.MustCompile(`(?i)^(imagery|photography)\b`), ID: "imagery", MinTier: TierAgency},
	})
}

type yamlEntry struct {
	Pattern string `yaml:"pattern"`
	ID      string `yaml:"id"`
	MinTier string `yaml:"min_tier"`
}

// LoadFile reads a catalog override from a YAML file. Patterns are compiled
// case-insensitively.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var raw []yamlEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for i, ye := range raw {
		if ye.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: id is required", i)
		}
		re, err := regexp.Compile("(?i)" + ye.Pattern)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", ye.ID, err)
		}
		entries = append(entries, Entry{
			Pattern: re,
			ID:      ye.ID,
			MinTier: ParseTier(ye.MinTier),
		})
	}
	return New(entries), nil
}
