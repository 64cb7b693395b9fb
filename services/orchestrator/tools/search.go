// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rutopia/chat-orchestrator/services/llm"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// searchParametersSchema is the JSON schema shown to the decision oracle.
var searchParametersSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"semantic_query": {
			"type": "string",
			"description": "Free-text description of what the traveler wants, in their own words."
		},
		"destination": {
			"type": "string",
			"description": "Region to search in, e.g. 'Quintana Roo' or 'Yucatan'."
		},
		"city": {
			"type": "string",
			"description": "Departure city, e.g. 'Tulum' or 'Merida'."
		},
		"family_friendly": {
			"type": "boolean",
			"description": "Only experiences suitable for families with children."
		},
		"physical_intensity": {
			"type": "string",
			"enum": ["low", "moderate", "high"],
			"description": "Physical demand of the activity."
		},
		"max_duration_hours": {
			"type": "number",
			"description": "Upper bound on the activity duration, in hours."
		},
		"environment_type": {
			"type": "string",
			"enum": ["cenote", "jungle", "beach", "city", "desert", "lake"],
			"description": "Environment the activity happens in."
		},
		"includes_food": {
			"type": "boolean",
			"description": "Only experiences that include a meal."
		},
		"experience_type": {
			"type": "string",
			"enum": ["culture", "nature", "adventure", "wellness", "gastronomy"],
			"description": "Primary kind of experience."
		}
	},
	"required": ["semantic_query"]
}`)

// SearchTool performs semantic search over the experience catalog.
//
// # Description
//
// Embeds the oracle's semantic query, runs a nearVector search over the
// Experience class, intersects it with any scalar filters, and returns at
// most MaxSearchLimit results as a JSON array of experiences. Relevance
// (certainty) rides along as each result's similarity score.
//
// # Thread Safety
//
// Safe for concurrent use.
type SearchTool struct {
	client   *weaviate.Client
	embedder EmbeddingProvider
}

// NewSearchTool creates the catalog search tool.
func NewSearchTool(client *weaviate.Client, embedder EmbeddingProvider) *SearchTool {
	return &SearchTool{client: client, embedder: embedder}
}

// Name implements Tool.
func (t *SearchTool) Name() string { return ToolSearch }

// Label implements Tool.
func (t *SearchTool) Label() string { return LabelSearch }

// Definition implements Tool.
func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: ToolSearch,
		Description: "Busca experiencias turísticas en el catálogo de Rutopia. " +
			"Usa semantic_query para describir lo que el viajero quiere y " +
			"los filtros opcionales para acotar por lugar, intensidad, duración o tipo.",
		Parameters: searchParametersSchema,
	}
}

// Invoke implements Tool.
//
// # Outputs
//
//   - string: JSON array of experiences, possibly empty ("[]").
//   - error: Non-nil on invalid arguments or backend failure.
func (t *SearchTool) Invoke(ctx context.Context, arguments string) (string, error) {
	var searchFilters datatypes.SearchFilters
	if err := json.Unmarshal([]byte(arguments), &searchFilters); err != nil {
		return "", fmt.Errorf("invalid search arguments: %w", err)
	}
	if err := searchFilters.Validate(); err != nil {
		return "", fmt.Errorf("invalid search arguments: %w", err)
	}

	ctx, span := toolsTracer.Start(ctx, "SearchTool.Invoke")
	defer span.End()

	vector, err := t.embedder.Embed(ctx, searchFilters.SemanticQuery)
	if err != nil {
		return "", fmt.Errorf("failed to embed search query: %w", err)
	}

	query := t.client.GraphQL().Get().
		WithClassName("Experience").
		WithFields(experienceFields()...).
		WithNearVector(t.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(datatypes.MaxSearchLimit)

	if where := buildWhere(searchFilters); where != nil {
		query = query.WithWhere(where)
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("catalog search failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return "", fmt.Errorf("catalog search failed: %s", resp.Errors[0].Message)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ExperienceQueryResponse](resp)
	if err != nil {
		return "", fmt.Errorf("failed to parse catalog search response: %w", err)
	}

	results := make([]datatypes.Experience, 0, len(parsed.Get.Experience))
	for _, row := range parsed.Get.Experience {
		results = append(results, experienceFromRow(row))
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	slog.Info("tools.search: catalog search completed",
		"query", searchFilters.SemanticQuery,
		"results", len(results),
	)

	payload, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to encode search results: %w", err)
	}
	return string(payload), nil
}

// experienceFields is the projection fetched for every search result.
func experienceFields() []graphql.Field {
	return []graphql.Field{
		{Name: "narrative_text"},
		{Name: "one_line_summary"},
		{Name: "city"},
		{Name: "destination_name"},
		{Name: "duration"},
		{Name: "lat"},
		{Name: "lon"},
		{Name: "primary_experience_type"},
		{Name: "physical_intensity"},
		{Name: "family_friendly"},
		{Name: "includes_food"},
		{Name: "includes_transport"},
		{Name: "unique_selling_points"},
		{Name: "_additional { id certainty }"},
	}
}

// buildWhere converts optional scalar filters into one AND-combined filter.
//
// Returns nil when no scalar filter is set, so the search stays purely
// semantic.
func buildWhere(f datatypes.SearchFilters) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder

	if f.City != nil && *f.City != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"city"}).
			WithOperator(filters.Equal).
			WithValueText(*f.City))
	}
	if f.Destination != nil && *f.Destination != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"destination_name"}).
			WithOperator(filters.Equal).
			WithValueText(*f.Destination))
	}
	if f.EnvironmentType != nil && *f.EnvironmentType != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"environment_type"}).
			WithOperator(filters.Equal).
			WithValueText(*f.EnvironmentType))
	}
	if f.ExperienceType != nil && *f.ExperienceType != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"primary_experience_type"}).
			WithOperator(filters.Equal).
			WithValueText(*f.ExperienceType))
	}
	if f.PhysicalIntensity != nil && *f.PhysicalIntensity != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"physical_intensity"}).
			WithOperator(filters.Equal).
			WithValueText(*f.PhysicalIntensity))
	}
	if f.FamilyFriendly != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{"family_friendly"}).
			WithOperator(filters.Equal).
			WithValueBoolean(*f.FamilyFriendly))
	}
	if f.IncludesFood != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{"includes_food"}).
			WithOperator(filters.Equal).
			WithValueBoolean(*f.IncludesFood))
	}
	if f.MaxDurationHours != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{"duration_hours"}).
			WithOperator(filters.LessThanEqual).
			WithValueNumber(*f.MaxDurationHours))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}
}

// experienceFromRow maps a raw catalog row into the wire-facing experience.
func experienceFromRow(row datatypes.ExperienceRow) datatypes.Experience {
	exp := datatypes.Experience{
		ID:                row.Additional.ID,
		Name:              datatypes.DeriveName(row.OneLineSummary, row.NarrativeText),
		Summary:           summaryFromRow(row),
		Lat:               row.Lat,
		Lon:               row.Lon,
		Location:          locationFromRow(row.City, row.DestinationName),
		Highlights:        capHighlights(row.UniqueSellingPoints),
		FamilyFriendly:    row.FamilyFriendly,
		IncludesFood:      row.IncludesFood,
		IncludesTransport: row.IncludesTransport,
		Similarity:        row.Additional.Certainty,
	}
	if row.Duration != "" {
		exp.Duration = &row.Duration
	}
	if row.DestinationName != "" {
		exp.Destination = &row.DestinationName
	}
	if row.PrimaryExperienceType != "" {
		exp.Type = &row.PrimaryExperienceType
	}
	if row.PhysicalIntensity != "" {
		exp.Intensity = &row.PhysicalIntensity
	}
	return exp
}

// summaryFromRow prefers the one-line summary, truncating the narrative
// to 160 characters otherwise.
func summaryFromRow(row datatypes.ExperienceRow) string {
	if row.OneLineSummary != "" {
		return row.OneLineSummary
	}
	text := strings.TrimSpace(row.NarrativeText)
	return strings.TrimSpace(datatypes.TruncateRunes(text, 160))
}

// locationFromRow picks the display location: city, then region, then the
// country-level fallback.
func locationFromRow(city, destination string) string {
	if city != "" {
		return city
	}
	if destination != "" {
		return destination
	}
	return "México"
}

// capHighlights limits selling points to the card-sized highlight list.
func capHighlights(points []string) []string {
	if len(points) > datatypes.MaxHighlights {
		points = points[:datatypes.MaxHighlights]
	}
	out := make([]string, len(points))
	copy(out, points)
	return out
}
