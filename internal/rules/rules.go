// Package rules loads a category's field governance contract, component
// catalogs, and enum/list definitions from the conventional helper-file
// layout (spec §4.6, §6) and holds them as an immutable in-memory cache.
// Reloading is an explicit, atomic cache swap — the teacher's config.Load()
// pattern of accumulating parse errors before returning, generalized to a
// directory of JSON files instead of environment variables.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/curationlabs/core/internal/model"
)

// ComponentDB is one component_type's catalog: every known entry keyed by
// canonical name, plus a case/whitespace-insensitive alias index mapping
// both aliases and canonical names to the same entry.
type ComponentDB struct {
	Entries map[string]ComponentEntry `json:"entries"`
	Index   map[string]string         `json:"-"` // normalized alias/name -> canonical name
}

// ComponentEntry is one catalog row loaded from component_db/{type}.json.
type ComponentEntry struct {
	CanonicalName string            `json:"canonical_name"`
	Maker         string            `json:"maker,omitempty"`
	Aliases       []string          `json:"aliases,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

// EnumDef is one named list's policy and known member values, loaded from
// known_values.json's "enums" map.
type EnumDef struct {
	Policy model.EnumPolicy `json:"policy"`
	Values []string         `json:"values"`
}

// KnownValues is the known_values.json document shape.
type KnownValues struct {
	Enums map[string]EnumDef `json:"enums"`
}

// Rules is the fully loaded, read-only rules contract for one category.
type Rules struct {
	Category            string
	Fields              map[string]model.FieldRule
	ComponentDBs        map[string]*ComponentDB
	KnownValues         KnownValues
	CrossValidationJSON []byte // cross_validation_rules.json, opaque beyond field contracts
}

// FieldRule looks up a field's governance record, or the zero value and
// false if the category has no rule for it.
func (r *Rules) FieldRule(fieldKey string) (model.FieldRule, bool) {
	fr, ok := r.Fields[fieldKey]
	return fr, ok
}

// ResolveComponentAlias finds the canonical component entry matching a
// needle (raw value, not yet normalized) within componentType's catalog.
func (r *Rules) ResolveComponentAlias(componentType, needle string) (ComponentEntry, bool) {
	db, ok := r.ComponentDBs[componentType]
	if !ok {
		return ComponentEntry{}, false
	}
	canonical, ok := db.Index[model.NormalizeEnumValue(needle)]
	if !ok {
		return ComponentEntry{}, false
	}
	entry, ok := db.Entries[canonical]
	return entry, ok
}

// EnumPolicy returns the policy governing a named enum list, defaulting to
// closed when the list has no known_values.json entry.
func (r *Rules) EnumPolicy(enumName string) model.EnumPolicy {
	if def, ok := r.KnownValues.Enums[enumName]; ok && def.Policy != "" {
		return def.Policy
	}
	return model.EnumClosed
}

// IsKnownEnumValue reports whether value (raw) normalizes to a member of
// enumName's known-values list.
func (r *Rules) IsKnownEnumValue(enumName, value string) bool {
	def, ok := r.KnownValues.Enums[enumName]
	if !ok {
		return false
	}
	needle := model.NormalizeEnumValue(value)
	for _, v := range def.Values {
		if model.NormalizeEnumValue(v) == needle {
			return true
		}
	}
	return false
}

// Cache holds the current Rules per category behind an atomic pointer so
// readers never observe a torn reload: Reload builds a brand-new map and
// swaps it in with a single atomic.Pointer store (the contract's "reloading
// is an explicit operation that swaps the cache atomically", spec §5).
type Cache struct {
	helperRoot string
	byCategory atomic.Pointer[map[string]*Rules]
}

// NewCache creates an empty cache rooted at helperRoot
// ({helperRoot}/{category}/_generated/...).
func NewCache(helperRoot string) *Cache {
	c := &Cache{helperRoot: helperRoot}
	empty := map[string]*Rules{}
	c.byCategory.Store(&empty)
	return c
}

// Get returns the currently cached Rules for a category, or false if it has
// never been loaded.
func (c *Cache) Get(category string) (*Rules, bool) {
	m := *c.byCategory.Load()
	r, ok := m[category]
	return r, ok
}

// Load reads a category's helper files from disk, builds its Rules, and
// atomically installs it alongside whatever other categories are already
// cached. Callers needing a fully independent snapshot should use Reload.
func (c *Cache) Load(category string) (*Rules, error) {
	r, err := loadFromDisk(c.helperRoot, category)
	if err != nil {
		return nil, err
	}

	for {
		old := c.byCategory.Load()
		next := make(map[string]*Rules, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[category] = r
		if c.byCategory.CompareAndSwap(old, &next) {
			return r, nil
		}
	}
}

// Reload re-reads every helper-file category already present in the cache
// and swaps the whole cache atomically. Categories loaded after Reload
// starts but before it swaps are preserved by re-reading the key set first.
func (c *Cache) Reload() error {
	old := *c.byCategory.Load()
	next := make(map[string]*Rules, len(old))
	for category := range old {
		r, err := loadFromDisk(c.helperRoot, category)
		if err != nil {
			return fmt.Errorf("rules: reload %s: %w", category, err)
		}
		next[category] = r
	}
	c.byCategory.Store(&next)
	return nil
}

func loadFromDisk(helperRoot, category string) (*Rules, error) {
	genDir := filepath.Join(helperRoot, category, "_generated")

	var errs []error

	fieldRulesDoc, err := readJSONFields(filepath.Join(genDir, "field_rules.json"), category)
	if err != nil {
		errs = append(errs, err)
	}

	known, err := readKnownValues(filepath.Join(genDir, "known_values.json"))
	if err != nil {
		errs = append(errs, err)
	}

	componentDBs, err := readComponentDBs(filepath.Join(genDir, "component_db"))
	if err != nil {
		errs = append(errs, err)
	}

	crossValidation, err := os.ReadFile(filepath.Join(genDir, "cross_validation_rules.json"))
	if err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("rules: read cross_validation_rules.json: %w", err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("rules: load %s: %w", category, joinErrs(errs))
	}

	return &Rules{
		Category:            category,
		Fields:              fieldRulesDoc,
		ComponentDBs:        componentDBs,
		KnownValues:         known,
		CrossValidationJSON: crossValidation,
	}, nil
}

// fieldRulesDocument mirrors _generated/field_rules.json's top-level shape:
// {"fields": {field_key: {...}}}.
type fieldRulesDocument struct {
	Fields map[string]fieldRuleDoc `json:"fields"`
}

type fieldRuleDoc struct {
	RequiredLevel   model.RequiredLevel  `json:"required_level"`
	Contract        model.FieldContract  `json:"contract"`
	Component       string               `json:"component,omitempty"`
	Enum            string               `json:"enum,omitempty"`
	VariancePolicy  model.VariancePolicy `json:"variance_policy,omitempty"`
	Constraints     []model.Constraint   `json:"constraints,omitempty"`
	PassTarget      float64              `json:"pass_target"`
	TierPreference  []int                `json:"tier_preference,omitempty"`
	MinEvidenceRefs int                  `json:"min_evidence_refs"`
}

func readJSONFields(path, category string) (map[string]model.FieldRule, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]model.FieldRule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rules: read field_rules.json: %w", err)
	}

	var doc fieldRulesDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("rules: parse field_rules.json: %w", err)
	}

	out := make(map[string]model.FieldRule, len(doc.Fields))
	for key, d := range doc.Fields {
		if d.VariancePolicy == "" {
			d.VariancePolicy = model.VarianceNone
		}
		out[key] = model.FieldRule{
			FieldKey:        key,
			Category:        category,
			RequiredLevel:   d.RequiredLevel,
			Contract:        d.Contract,
			Component:       d.Component,
			Enum:            d.Enum,
			VariancePolicy:  d.VariancePolicy,
			Constraints:     d.Constraints,
			PassTarget:      d.PassTarget,
			TierPreference:  d.TierPreference,
			MinEvidenceRefs: d.MinEvidenceRefs,
		}
	}
	return out, nil
}

func readKnownValues(path string) (KnownValues, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return KnownValues{Enums: map[string]EnumDef{}}, nil
	}
	if err != nil {
		return KnownValues{}, fmt.Errorf("rules: read known_values.json: %w", err)
	}
	var kv KnownValues
	if err := json.Unmarshal(b, &kv); err != nil {
		return KnownValues{}, fmt.Errorf("rules: parse known_values.json: %w", err)
	}
	if kv.Enums == nil {
		kv.Enums = map[string]EnumDef{}
	}
	return kv, nil
}

func readComponentDBs(dir string) (map[string]*ComponentDB, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]*ComponentDB{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rules: read component_db dir: %w", err)
	}

	out := make(map[string]*ComponentDB, len(entries))
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		componentType := ent.Name()[:len(ent.Name())-len(".json")]

		b, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return nil, fmt.Errorf("rules: read component_db/%s: %w", ent.Name(), err)
		}

		var doc struct {
			Entries map[string]ComponentEntry `json:"entries"`
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("rules: parse component_db/%s: %w", ent.Name(), err)
		}

		db := &ComponentDB{Entries: doc.Entries, Index: map[string]string{}}
		for name, entry := range db.Entries {
			db.Index[model.NormalizeEnumValue(name)] = name
			db.Index[model.NormalizeEnumValue(entry.CanonicalName)] = name
			for _, alias := range entry.Aliases {
				db.Index[model.NormalizeEnumValue(alias)] = name
			}
		}
		out[componentType] = db
	}
	return out, nil
}

func joinErrs(errs []error) error {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}
