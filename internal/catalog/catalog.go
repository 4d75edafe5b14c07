// Package catalog holds the content tables the scheduler reads: gathering
// resources, production recipes, tools and tomes.
//
// The default tables are embedded; an override file with the same layout can
// be supplied via config (catalog.path).
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Skill string

const (
	Forestry   Skill = "forestry"
	Fishing    Skill = "fishing"
	Mining     Skill = "mining"
	Crafting   Skill = "crafting"
	Smithing   Skill = "smithing"
	Cooking    Skill = "cooking"
	Enchanting Skill = "enchanting"
)

// Skills lists every skill in display order.
var Skills = []Skill{Forestry, Fishing, Mining, Crafting, Smithing, Cooking, Enchanting}

// Kind is a foreground production activity.
type Kind string

const (
	Craft   Kind = "craft"
	Smelt   Kind = "smelt"
	Forge   Kind = "forge"
	Cook    Kind = "cook"
	Enchant Kind = "enchant"
)

var Kinds = []Kind{Craft, Smelt, Forge, Cook, Enchant}

// SkillOf maps a foreground kind to the skill it trains.
func SkillOf(k Kind) (Skill, bool) {
	switch k {
	case Craft:
		return Crafting, true
	case Smelt, Forge:
		return Smithing, true
	case Cook:
		return Cooking, true
	case Enchant:
		return Enchanting, true
	default:
		return "", false
	}
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := SkillOf(k)
	return k, ok
}

func ParseSkill(s string) (Skill, bool) {
	sk := Skill(strings.ToLower(strings.TrimSpace(s)))
	for _, x := range Skills {
		if x == sk {
			return sk, true
		}
	}
	return "", false
}

// Gathering reports whether the skill is driven by auto-runs (AFK/tome).
func (s Skill) Gathering() bool {
	return s == Forestry || s == Fishing || s == Mining
}

type Stack struct {
	Item string `yaml:"item" json:"item"`
	Qty  int    `yaml:"qty" json:"qty"`
}

type Resource struct {
	ID    string        `yaml:"-"`
	Skill Skill         `yaml:"-"`
	Level int           `yaml:"level"`
	Base  time.Duration `yaml:"base"`
	XP    float64       `yaml:"xp"`
	Drop  string        `yaml:"drop"`
}

type Recipe struct {
	ID      string        `yaml:"-"`
	Kind    Kind          `yaml:"-"`
	Level   int           `yaml:"level"`
	Base    time.Duration `yaml:"base"`
	XP      float64       `yaml:"xp"`
	Inputs  []Stack       `yaml:"inputs"`
	Outputs []Stack       `yaml:"outputs"`

	// Burnt is the failure item for cook recipes.
	Burnt string `yaml:"burnt"`
}

// Raw returns the primary input (the locked resource for auto-cook).
func (r Recipe) Raw() string {
	if len(r.Inputs) == 0 {
		return ""
	}
	return r.Inputs[0].Item
}

type Tool struct {
	ID    string  `yaml:"-"`
	Skill Skill   `yaml:"skill"`
	Speed float64 `yaml:"speed"`
}

type Tome struct {
	ID       string        `yaml:"-"`
	Skill    Skill         `yaml:"skill"`
	Resource string        `yaml:"resource"`
	Min      time.Duration `yaml:"min"`
	Max      time.Duration `yaml:"max"`
}

type Catalog struct {
	resources map[Skill]map[string]Resource
	recipes   map[Kind]map[string]Recipe
	tools     map[string]Tool
	tomes     map[string]Tome

	cookByRaw map[string]string
}

type fileLayout struct {
	Resources map[Skill]map[string]Resource `yaml:"resources"`
	Recipes   map[Kind]map[string]Recipe    `yaml:"recipes"`
	Tools     map[string]Tool               `yaml:"tools"`
	Tomes     map[string]Tome               `yaml:"tomes"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads path, or the embedded tables when path is empty.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var raw fileLayout
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}

	c := &Catalog{
		resources: map[Skill]map[string]Resource{},
		recipes:   map[Kind]map[string]Recipe{},
		tools:     map[string]Tool{},
		tomes:     map[string]Tome{},
		cookByRaw: map[string]string{},
	}
	for sk, m := range raw.Resources {
		if !sk.Gathering() {
			return nil, fmt.Errorf("resources.%s: not a gathering skill", sk)
		}
		c.resources[sk] = make(map[string]Resource, len(m))
		for id, r := range m {
			r.ID, r.Skill = id, sk
			if r.Base <= 0 {
				return nil, fmt.Errorf("resources.%s.%s.base: must be > 0", sk, id)
			}
			if strings.TrimSpace(r.Drop) == "" {
				return nil, fmt.Errorf("resources.%s.%s.drop: required", sk, id)
			}
			c.resources[sk][id] = r
		}
	}
	for k, m := range raw.Recipes {
		if _, ok := SkillOf(k); !ok {
			return nil, fmt.Errorf("recipes.%s: unknown kind", k)
		}
		c.recipes[k] = make(map[string]Recipe, len(m))
		for id, r := range m {
			r.ID, r.Kind = id, k
			if r.Base <= 0 {
				return nil, fmt.Errorf("recipes.%s.%s.base: must be > 0", k, id)
			}
			if len(r.Inputs) == 0 || len(r.Outputs) == 0 {
				return nil, fmt.Errorf("recipes.%s.%s: inputs and outputs required", k, id)
			}
			for i, s := range append(append([]Stack(nil), r.Inputs...), r.Outputs...) {
				if s.Item == "" || s.Qty <= 0 {
					return nil, fmt.Errorf("recipes.%s.%s: stack %d invalid", k, id, i)
				}
			}
			if k == Cook {
				if r.Burnt == "" {
					return nil, fmt.Errorf("recipes.cook.%s.burnt: required", id)
				}
				if other, dup := c.cookByRaw[r.Raw()]; dup {
					return nil, fmt.Errorf("recipes.cook.%s: raw %s already cooked by %s", id, r.Raw(), other)
				}
				c.cookByRaw[r.Raw()] = id
			}
			c.recipes[k][id] = r
		}
	}
	for id, t := range raw.Tools {
		t.ID = id
		if t.Speed <= 0 {
			return nil, fmt.Errorf("tools.%s.speed: must be > 0", id)
		}
		if _, ok := ParseSkill(string(t.Skill)); !ok {
			return nil, fmt.Errorf("tools.%s.skill: unknown skill %q", id, t.Skill)
		}
		c.tools[id] = t
	}
	for id, t := range raw.Tomes {
		t.ID = id
		if t.Min <= 0 || t.Max < t.Min {
			return nil, fmt.Errorf("tomes.%s: need 0 < min <= max", id)
		}
		// Unresolvable tomes are kept: starting one is refused at run time.
		c.tomes[id] = t
	}
	return c, nil
}

func (c *Catalog) Resource(skill Skill, id string) (Resource, bool) {
	r, ok := c.resources[skill][id]
	return r, ok
}

func (c *Catalog) Recipe(kind Kind, id string) (Recipe, bool) {
	r, ok := c.recipes[kind][id]
	return r, ok
}

// CookByRaw finds the cook recipe whose primary input is raw.
func (c *Catalog) CookByRaw(raw string) (Recipe, bool) {
	id, ok := c.cookByRaw[raw]
	if !ok {
		return Recipe{}, false
	}
	return c.Recipe(Cook, id)
}

func (c *Catalog) Tool(id string) (Tool, bool) {
	t, ok := c.tools[id]
	return t, ok
}

func (c *Catalog) Tome(id string) (Tome, bool) {
	t, ok := c.tomes[id]
	return t, ok
}

// RecipeIDs returns the sorted recipe ids of a kind.
func (c *Catalog) RecipeIDs(kind Kind) []string {
	out := make([]string, 0, len(c.recipes[kind]))
	for id := range c.recipes[kind] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ResourceIDs returns the sorted resource ids of a gathering skill.
func (c *Catalog) ResourceIDs(skill Skill) []string {
	out := make([]string, 0, len(c.resources[skill]))
	for id := range c.resources[skill] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
