// Package racecheck parses racecheck result feeds and classifies each runner
// line against the categories and genders configured for an event.
package racecheck

import "strings"

// Category groups runners of a modality. A raw category value belongs to the
// category when it starts with MatchsWith.
type Category struct {
	Name       string `json:"name" bson:"name" koanf:"name"`
	MatchsWith string `json:"matchs_with" bson:"matchs_with" koanf:"matchs_with"`
}

// Matches reports whether raw starts with the category prefix. The test is
// case-sensitive.
func (c Category) Matches(raw string) bool {
	return strings.HasPrefix(raw, c.MatchsWith)
}

// Gender is an event-wide sex classification matched by prefix on the raw
// sex column.
type Gender struct {
	Name       string `json:"name" bson:"name" koanf:"name"`
	MatchsWith string `json:"matchs_with" bson:"matchs_with" koanf:"matchs_with"`
}

// Matches reports whether raw starts with the gender prefix.
func (g Gender) Matches(raw string) bool {
	return strings.HasPrefix(raw, g.MatchsWith)
}

// Modality is an organizer defined grouping such as "42K" with its ordered
// categories.
type Modality struct {
	Name       string     `json:"name" bson:"name" koanf:"name"`
	Categories []Category `json:"categories" bson:"categories" koanf:"categories"`
}

// Matches reports whether any category of the modality matches the raw
// category value.
func (m Modality) Matches(rawCategory string) bool {
	for _, c := range m.Categories {
		if c.Matches(rawCategory) {
			return true
		}
	}
	return false
}

// FlattenCategories returns the categories of all modalities in order.
func FlattenCategories(modalities []Modality) []Category {
	var out []Category
	for _, m := range modalities {
		out = append(out, m.Categories...)
	}
	return out
}

// MatchGender returns the index of the first gender matching sex, or -1.
func MatchGender(genders []Gender, sex string) int {
	for i, g := range genders {
		if g.Matches(sex) {
			return i
		}
	}
	return -1
}

// MatchCategory returns the index of the first category matching the raw
// value, or -1.
func MatchCategory(categories []Category, raw string) int {
	for i, c := range categories {
		if c.Matches(raw) {
			return i
		}
	}
	return -1
}
