package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()
	c, err := Default()
	require.NoError(t, err)

	pine, ok := c.Resource(Forestry, "pine")
	require.True(t, ok)
	require.Equal(t, "log_pine", pine.Drop)
	require.Equal(t, 3*time.Second, pine.Base)

	trout, ok := c.Resource(Fishing, "trout")
	require.True(t, ok)
	require.Equal(t, "raw_trout", trout.Drop)

	r, ok := c.CookByRaw("raw_trout")
	require.True(t, ok)
	require.Equal(t, "cooked_trout", r.ID)
	require.Equal(t, "burnt_trout", r.Burnt)

	tome, ok := c.Tome("tome_pine")
	require.True(t, ok)
	require.Equal(t, Forestry, tome.Skill)
	require.Less(t, tome.Min, tome.Max)

	require.Equal(t, []string{"bar_bronze", "bar_iron"}, c.RecipeIDs(Smelt))
}

func TestSkillOf(t *testing.T) {
	t.Parallel()
	for _, k := range Kinds {
		if _, ok := SkillOf(k); !ok {
			t.Fatalf("SkillOf(%s) not mapped", k)
		}
	}
	if sk, _ := SkillOf(Forge); sk != Smithing {
		t.Fatalf("forge skill = %s, want smithing", sk)
	}
	if _, ok := ParseKind("fish"); ok {
		t.Fatal("fish is not a foreground kind")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("tools:\n  x: { skill: mining, speed: 1, colour: red }\n"))
	require.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("resources:\n  cooking:\n    x: { level: 1, base: 1s, xp: 1, drop: y }\n"))
	require.ErrorContains(t, err, "not a gathering skill")

	_, err = Parse([]byte("recipes:\n  cook:\n    x: { level: 1, base: 1s, xp: 1, inputs: [{item: a, qty: 1}], outputs: [{item: b, qty: 1}] }\n"))
	require.ErrorContains(t, err, "burnt")
}

func TestParseRejectsSharedCookRaw(t *testing.T) {
	t.Parallel()
	body := "recipes:\n  cook:\n" +
		"    stew: { level: 1, base: 1s, xp: 1, burnt: ash, inputs: [{item: raw_meat, qty: 1}], outputs: [{item: stew, qty: 1}] }\n" +
		"    roast: { level: 1, base: 1s, xp: 1, burnt: ash, inputs: [{item: raw_meat, qty: 1}], outputs: [{item: roast, qty: 1}] }\n"
	_, err := Parse([]byte(body))
	require.ErrorContains(t, err, "raw raw_meat already cooked by")
}

func TestLoadOverride(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "catalog.yaml")
	body := "resources:\n  mining:\n    clay: { level: 1, base: 1s, xp: 2, drop: clay }\n" +
		"tomes:\n  tome_void: { skill: mining, resource: nothing, min: 10s, max: 20s }\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	c, err := Load(p)
	require.NoError(t, err)
	_, ok := c.Resource(Mining, "clay")
	require.True(t, ok)
	_, ok = c.Resource(Forestry, "pine")
	require.False(t, ok, "override replaces the embedded tables")
	_, ok = c.Tome("tome_void")
	require.True(t, ok)
}
