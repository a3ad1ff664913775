package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"

	"github.com/samber/lo"
)

const (
	attrIntelligence = "智力"
	attrPhysical     = "体质"
	attrAppearance   = "颜值"
	attrWealth       = "家境"

	defaultAttribute = 10
	allocationPoints = 15
)

// Effect keys as sent by the event service, in display order.
var effectKeys = []string{"intelligence", "physical", "appearance", "wealth"}

var effectLabels = map[string]string{
	"intelligence": attrIntelligence,
	"physical":     attrPhysical,
	"appearance":   attrAppearance,
	"wealth":       attrWealth,
}

var profileAttributes = []string{attrAppearance, attrIntelligence, attrPhysical, attrWealth}

// Roster is the list of known character names. It decodes from either a JSON
// array or a comma-separated string.
type Roster []string

func (r *Roster) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*r = normalizeRoster(list)
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return fmt.Errorf("characters must be a list or a comma-separated string: %w", err)
	}
	*r = normalizeRoster(strings.Split(joined, ","))
	return nil
}

func (r Roster) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(r))
}

func (r Roster) Contains(name string) bool {
	return lo.Contains(r, name)
}

func normalizeRoster(names []string) Roster {
	trimmed := lo.Map(names, func(n string, _ int) string { return strings.TrimSpace(n) })
	out := lo.Uniq(lo.Compact(trimmed))
	if len(out) == 0 {
		return nil
	}
	return out
}

// GameData is the player's persisted life: identity, attributes and the
// character roster. Fields the server does not model are kept verbatim so the
// event service receives the blob it produced.
type GameData struct {
	Name       string
	Sex        string
	City       string
	Attributes map[string]int
	Character  string
	Characters Roster

	extra map[string]json.RawMessage
}

func (g *GameData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*g = GameData{}
	known := map[string]any{
		"name":       &g.Name,
		"sex":        &g.Sex,
		"city":       &g.City,
		"attributes": &g.Attributes,
		"character":  &g.Character,
		"characters": &g.Characters,
	}
	for key, target := range known {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		if err := json.Unmarshal(v, target); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}
	if len(raw) > 0 {
		g.extra = raw
	}
	return nil
}

func (g GameData) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.fields())
}

func (g GameData) fields() map[string]any {
	out := make(map[string]any, len(g.extra)+6)
	for k, v := range g.extra {
		out[k] = v
	}
	if g.Name != "" {
		out["name"] = g.Name
	}
	if g.Sex != "" {
		out["sex"] = g.Sex
	}
	if g.City != "" {
		out["city"] = g.City
	}
	if g.Attributes != nil {
		out["attributes"] = g.Attributes
	}
	out["character"] = g.Character
	out["characters"] = g.Characters
	return out
}

func (g GameData) clone() GameData {
	out := g
	if g.Attributes != nil {
		out.Attributes = make(map[string]int, len(g.Attributes))
		for k, v := range g.Attributes {
			out.Attributes[k] = v
		}
	}
	if g.Characters != nil {
		out.Characters = append(Roster(nil), g.Characters...)
	}
	if g.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(g.extra))
		for k, v := range g.extra {
			out.extra[k] = v
		}
	}
	return out
}

// Attribute returns the named attribute, or the default when the blob never set it.
func (g GameData) Attribute(label string) int {
	if v, ok := g.Attributes[label]; ok {
		return v
	}
	return defaultAttribute
}

func (g *GameData) addCharacter(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || g.Characters.Contains(name) {
		return false
	}
	g.Characters = append(g.Characters, name)
	return true
}

// parseGameData never fails: a missing or malformed blob yields an empty life.
func parseGameData(raw []byte, log *slog.Logger, playerID string) GameData {
	if len(bytes.TrimSpace(raw)) == 0 {
		return GameData{}
	}
	var g GameData
	if err := json.Unmarshal(raw, &g); err != nil {
		log.Warn("malformed game data, using defaults", "player", playerID, "err", err)
		return GameData{}
	}
	return g
}

func effectLabel(key string) (string, bool) {
	if label, ok := effectLabels[key]; ok {
		return label, true
	}
	for _, label := range effectLabels {
		if label == key {
			return label, true
		}
	}
	return "", false
}

func applyEffects(g *GameData, effects map[string]int, maxStats int) {
	if len(effects) == 0 {
		return
	}
	if g.Attributes == nil {
		g.Attributes = map[string]int{}
	}
	for key, delta := range effects {
		label, ok := effectLabel(key)
		if !ok {
			continue
		}
		g.Attributes[label] = clampInt(g.Attribute(label)+delta, 0, maxStats)
	}
}

// formatEffects renders effects as "智力+2  体质-1" in a fixed attribute order.
func formatEffects(effects map[string]int) string {
	if len(effects) == 0 {
		return ""
	}
	byLabel := map[string]int{}
	for key, v := range effects {
		if label, ok := effectLabel(key); ok {
			byLabel[label] = v
		}
	}
	parts := make([]string, 0, len(byLabel))
	for _, key := range effectKeys {
		label := effectLabels[key]
		v, ok := byLabel[label]
		if !ok {
			continue
		}
		sign := ""
		if v > 0 {
			sign = "+"
		}
		parts = append(parts, fmt.Sprintf("%s%s%d", label, sign, v))
	}
	return strings.Join(parts, "  ")
}

// allocateAttributes spreads the starting points over appearance, intelligence
// and physique one at a time, skipping attributes that hit the cap.
func allocateAttributes(rng *mathrand.Rand, maxStats int) map[string]int {
	pool := []string{attrAppearance, attrIntelligence, attrPhysical}
	out := map[string]int{attrWealth: defaultAttribute}
	for _, label := range pool {
		out[label] = 0
	}
	for i := 0; i < allocationPoints; i++ {
		open := lo.Filter(pool, func(label string, _ int) bool { return out[label] < maxStats })
		if len(open) == 0 {
			break
		}
		out[open[rng.Intn(len(open))]]++
	}
	return out
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
