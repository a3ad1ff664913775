package main

import (
	"encoding/json"
	"log/slog"
	mathrand "math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRosterDecoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Roster
	}{
		{name: "array", in: `["小红", " 小刚 ", "", "小红"]`, want: Roster{"小红", "小刚"}},
		{name: "comma string", in: `"小红, 小刚,,"`, want: Roster{"小红", "小刚"}},
		{name: "empty string", in: `""`, want: nil},
		{name: "null", in: `null`, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var r Roster
			require.NoError(t, json.Unmarshal([]byte(tc.in), &r))
			require.Equal(t, tc.want, r)
		})
	}

	t.Run("should reject other shapes", func(t *testing.T) {
		var r Roster
		require.Error(t, json.Unmarshal([]byte(`42`), &r))
	})
}

func TestGameDataJSON(t *testing.T) {
	t.Run("should keep unknown fields verbatim", func(t *testing.T) {
		req := require.New(t)
		raw := `{"name":"小明","sex":"男","attributes":{"智力":12},"talents":[{"name":"过目不忘","effect":"智力+2"}],"characters":"小红,小刚","age":14}`

		var g GameData
		req.NoError(json.Unmarshal([]byte(raw), &g))
		req.Equal("小明", g.Name)
		req.Equal(12, g.Attribute(attrIntelligence))
		req.Equal(10, g.Attribute(attrWealth))
		req.Equal(Roster{"小红", "小刚"}, g.Characters)

		out, err := json.Marshal(g)
		req.NoError(err)
		req.JSONEq(`{"name":"小明","sex":"男","attributes":{"智力":12},"talents":[{"name":"过目不忘","effect":"智力+2"}],"character":"","characters":["小红","小刚"],"age":14}`, string(out))
	})

	t.Run("should clone without sharing maps", func(t *testing.T) {
		req := require.New(t)
		g := GameData{Attributes: map[string]int{attrPhysical: 5}, Characters: Roster{"小红"}}

		c := g.clone()
		c.Attributes[attrPhysical] = 9
		c.addCharacter("小刚")

		req.Equal(5, g.Attributes[attrPhysical])
		req.Equal(Roster{"小红"}, g.Characters)
	})
}

func TestParseGameData(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	for name, raw := range map[string]string{
		"missing":   "",
		"null":      "null",
		"malformed": "{not json",
		"wrong":     `[1,2,3]`,
		"bad field": `{"attributes":"lots"}`,
	} {
		t.Run(name, func(t *testing.T) {
			g := parseGameData([]byte(raw), log, "p1")
			require.Empty(t, g.Name)
			require.Nil(t, g.Attributes)
			require.Equal(t, defaultAttribute, g.Attribute(attrAppearance))
		})
	}

	t.Run("valid", func(t *testing.T) {
		g := parseGameData([]byte(`{"name":"小明","character":"小红"}`), log, "p1")
		require.Equal(t, "小明", g.Name)
		require.Equal(t, "小红", g.Character)
	})
}

func TestApplyEffects(t *testing.T) {
	req := require.New(t)
	g := GameData{Attributes: map[string]int{attrIntelligence: 19, attrPhysical: 1}}

	applyEffects(&g, map[string]int{"intelligence": 5, "physical": -4, "wealth": 3, "luck": 9, "颜值": 2}, 20)

	req.Equal(map[string]int{
		attrIntelligence: 20,
		attrPhysical:     0,
		attrWealth:       13,
		attrAppearance:   12,
	}, g.Attributes)
}

func TestFormatEffects(t *testing.T) {
	tests := []struct {
		in   map[string]int
		want string
	}{
		{in: nil, want: ""},
		{in: map[string]int{"physical": -1, "intelligence": 2}, want: "智力+2  体质-1"},
		{in: map[string]int{"appearance": 0}, want: "颜值0"},
		{in: map[string]int{"wealth": 3, "luck": 1}, want: "家境+3"},
	}
	for _, tc := range tests {
		if got := formatEffects(tc.in); got != tc.want {
			t.Fatalf("formatEffects(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAllocateAttributes(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(7))

	t.Run("should spend every point", func(t *testing.T) {
		req := require.New(t)
		attrs := allocateAttributes(rng, 20)
		req.Equal(allocationPoints, attrs[attrAppearance]+attrs[attrIntelligence]+attrs[attrPhysical])
		req.Equal(defaultAttribute, attrs[attrWealth])
	})

	t.Run("should stop at the cap", func(t *testing.T) {
		req := require.New(t)
		attrs := allocateAttributes(rng, 4)
		req.Equal(4, attrs[attrAppearance])
		req.Equal(4, attrs[attrIntelligence])
		req.Equal(4, attrs[attrPhysical])
	})
}

func TestClampInt(t *testing.T) {
	for _, tc := range []struct{ v, want int }{{-3, 0}, {0, 0}, {7, 7}, {20, 20}, {25, 20}} {
		if got := clampInt(tc.v, 0, 20); got != tc.want {
			t.Fatalf("clampInt(%d) = %d, want %d", tc.v, got, tc.want)
		}
	}
}
