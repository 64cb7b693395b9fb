// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func ptr[T any](v T) *T { return &v }

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name           string
		oneLineSummary string
		narrativeText  string
		want           string
	}{
		{
			name:           "summary wins",
			oneLineSummary: "Nado en cenote con guía maya",
			narrativeText:  "Title: Something else | more text",
			want:           "Nado en cenote con guía maya",
		},
		{
			name:          "title convention in narrative",
			narrativeText: "Title: Tour de cacao en Tulum | Description: a full day...",
			want:          "Tour de cacao en Tulum",
		},
		{
			name:          "title convention with newline terminator",
			narrativeText: "Title: Caminata nocturna\nDescription: jungle walk",
			want:          "Caminata nocturna",
		},
		{
			name:          "narrative truncated at 100 chars",
			narrativeText: strings.Repeat("a", 150),
			want:          strings.Repeat("a", 100),
		},
		{
			name:          "accented narrative truncated by character",
			narrativeText: strings.Repeat("ñ", 150),
			want:          strings.Repeat("ñ", 100),
		},
		{
			name:          "accented title without terminator truncated by character",
			narrativeText: "Title:" + strings.Repeat("é", 150),
			want:          strings.Repeat("é", 100),
		},
		{
			name: "no text at all",
			want: "Experiencia sin nombre",
		},
		{
			name:          "empty title falls through to truncation",
			narrativeText: "Title: | nothing here",
			want:          "Title: | nothing here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveName(tt.oneLineSummary, tt.narrativeText)
			if got != tt.want {
				t.Errorf("DeriveName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchFilters_Validate(t *testing.T) {
	valid := SearchFilters{
		SemanticQuery:     "nadar con la familia en agua cristalina",
		City:              ptr("Tulum"),
		PhysicalIntensity: ptr("low"),
		EnvironmentType:   ptr("cenote"),
		ExperienceType:    ptr("nature"),
		FamilyFriendly:    ptr(true),
		MaxDurationHours:  ptr(6.0),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid filters, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*SearchFilters)
	}{
		{"missing query", func(f *SearchFilters) { f.SemanticQuery = "" }},
		{"oversized query", func(f *SearchFilters) { f.SemanticQuery = strings.Repeat("q", MaxSemanticQueryChars+1) }},
		{"bad intensity", func(f *SearchFilters) { f.PhysicalIntensity = ptr("extreme") }},
		{"bad environment", func(f *SearchFilters) { f.EnvironmentType = ptr("volcano") }},
		{"bad type", func(f *SearchFilters) { f.ExperienceType = ptr("shopping") }},
		{"non-positive duration", func(f *SearchFilters) { f.MaxDurationHours = ptr(0.0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			if err := f.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestCloneMessages_Independence(t *testing.T) {
	original := []Message{
		{Role: RoleAssistant, Content: "ok", ToolCalls: []ToolCall{{ID: "c1", Name: "search_experiences", Arguments: "{}"}}},
	}

	cloned := CloneMessages(original)
	cloned[0].Content = "mutated"
	cloned[0].ToolCalls[0].Name = "mutated"

	if original[0].Content != "ok" {
		t.Errorf("Clone aliased content: %q", original[0].Content)
	}
	if original[0].ToolCalls[0].Name != "search_experiences" {
		t.Errorf("Clone aliased tool calls: %q", original[0].ToolCalls[0].Name)
	}
}

func TestCloneMessages_NilYieldsEmpty(t *testing.T) {
	cloned := CloneMessages(nil)
	if cloned == nil {
		t.Fatal("Expected non-nil slice")
	}
	if len(cloned) != 0 {
		t.Errorf("Expected empty slice, got %d", len(cloned))
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than cap", "hola", 10, "hola"},
		{"exactly at cap", "hola", 4, "hola"},
		{"ascii cut", "hola viajero", 4, "hola"},
		{"accented cut keeps whole characters", "cenotes mágicos", 10, "cenotes má"},
		{"multibyte run", strings.Repeat("á", 5), 3, strings.Repeat("á", 3)},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TruncateRunes produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestCloneExperiences_Independence(t *testing.T) {
	original := []Experience{
		{ID: "exp-1", Highlights: []string{"guía local"}},
	}

	cloned := CloneExperiences(original)
	cloned[0].ID = "mutated"
	cloned[0].Highlights[0] = "mutated"

	if original[0].ID != "exp-1" {
		t.Errorf("Clone aliased experience: %q", original[0].ID)
	}
	if original[0].Highlights[0] != "guía local" {
		t.Errorf("Clone aliased highlights: %q", original[0].Highlights[0])
	}
}

// TestCloneExperiences_PointerFieldsIndependent verifies that writing
// through an optional-field pointer on the clone never reaches the original.
func TestCloneExperiences_PointerFieldsIndependent(t *testing.T) {
	original := []Experience{{
		ID:             "exp-1",
		Duration:       ptr("4 hours"),
		Destination:    ptr("Quintana Roo"),
		Type:           ptr("nature"),
		Intensity:      ptr("low"),
		FamilyFriendly: ptr(true),
		IncludesFood:   ptr(false),
		Similarity:     ptr(0.91),
	}}

	cloned := CloneExperiences(original)
	*cloned[0].Duration = "mutated"
	*cloned[0].Destination = "mutated"
	*cloned[0].Type = "mutated"
	*cloned[0].Intensity = "mutated"
	*cloned[0].FamilyFriendly = false
	*cloned[0].IncludesFood = true
	*cloned[0].Similarity = 0.1

	if *original[0].Duration != "4 hours" {
		t.Errorf("Clone aliased duration: %q", *original[0].Duration)
	}
	if *original[0].Destination != "Quintana Roo" {
		t.Errorf("Clone aliased destination: %q", *original[0].Destination)
	}
	if *original[0].Type != "nature" || *original[0].Intensity != "low" {
		t.Errorf("Clone aliased type/intensity: %q/%q", *original[0].Type, *original[0].Intensity)
	}
	if !*original[0].FamilyFriendly || *original[0].IncludesFood {
		t.Error("Clone aliased boolean attributes")
	}
	if *original[0].Similarity != 0.91 {
		t.Errorf("Clone aliased similarity: %v", *original[0].Similarity)
	}
	if original[0].IncludesTransport != nil {
		t.Error("Expected nil pointer to stay nil")
	}
}

func TestExperiencesEqual(t *testing.T) {
	base := func() []Experience {
		return []Experience{{
			ID:             "exp-1",
			FamilyFriendly: ptr(true),
			Similarity:     ptr(0.91),
			Highlights:     []string{"guía local"},
		}}
	}

	if !ExperiencesEqual(nil, []Experience{}) {
		t.Error("Expected nil and empty to compare equal")
	}
	if !ExperiencesEqual(base(), base()) {
		t.Error("Expected independently built identical sets to compare equal")
	}
	if ExperiencesEqual(base(), nil) {
		t.Error("Expected non-empty vs empty to compare unequal")
	}

	changed := base()
	*changed[0].FamilyFriendly = false
	if ExperiencesEqual(base(), changed) {
		t.Error("Expected differing pointed-to values to compare unequal")
	}
}
