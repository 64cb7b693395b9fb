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

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rutopia/chat-orchestrator/services/llm"
	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// notFoundResult is the exact payload folded back when the id is unknown.
// The oracle relays this to the user, so it stays in Spanish.
const notFoundResult = `{"error": "Experiencia no encontrada"}`

var detailsParametersSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"experience_id": {
			"type": "string",
			"description": "The id of the experience, exactly as returned by search_experiences."
		}
	},
	"required": ["experience_id"]
}`)

// detailsArguments are the oracle-supplied arguments for a detail lookup.
type detailsArguments struct {
	ExperienceID string `json:"experience_id"`
}

// DetailsTool fetches the full record for one experience.
//
// # Description
//
// Looks up the base Experience object by id and merges in the enrichment
// record keyed by experience_id when one exists. An unknown id yields the
// fixed not-found payload rather than an error, so the oracle can tell the
// user directly.
//
// # Thread Safety
//
// Safe for concurrent use.
type DetailsTool struct {
	client *weaviate.Client
}

// NewDetailsTool creates the detail lookup tool.
func NewDetailsTool(client *weaviate.Client) *DetailsTool {
	return &DetailsTool{client: client}
}

// Name implements Tool.
func (t *DetailsTool) Name() string { return ToolDetails }

// Label implements Tool.
func (t *DetailsTool) Label() string { return LabelDetails }

// Definition implements Tool.
func (t *DetailsTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: ToolDetails,
		Description: "Obtiene los detalles completos de una experiencia específica " +
			"a partir de su id. Úsalo cuando el viajero pregunta por una " +
			"experiencia concreta de los resultados anteriores.",
		Parameters: detailsParametersSchema,
	}
}

// Invoke implements Tool.
//
// # Outputs
//
//   - string: JSON object with the merged detail record, or the fixed
//     not-found payload when the id does not exist.
//   - error: Non-nil on invalid arguments or backend failure.
func (t *DetailsTool) Invoke(ctx context.Context, arguments string) (string, error) {
	var args detailsArguments
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid detail arguments: %w", err)
	}
	if args.ExperienceID == "" {
		return "", fmt.Errorf("invalid detail arguments: experience_id is required")
	}

	ctx, span := toolsTracer.Start(ctx, "DetailsTool.Invoke")
	defer span.End()
	span.SetAttributes(attribute.String("experience.id", args.ExperienceID))

	base, found, err := t.fetchBase(ctx, args.ExperienceID)
	if err != nil {
		return "", err
	}
	if !found {
		slog.Info("tools.details: experience not found", "experience_id", args.ExperienceID)
		return notFoundResult, nil
	}

	detail := detailFromRow(args.ExperienceID, base)

	// The enrichment record is optional; a lookup failure degrades to the
	// base record rather than failing the whole call.
	enhanced, found, err := t.fetchEnhanced(ctx, args.ExperienceID)
	if err != nil {
		slog.Warn("tools.details: enrichment lookup failed, returning base record",
			"experience_id", args.ExperienceID, "error", err)
	} else if found {
		mergeEnhanced(&detail, enhanced)
	}

	payload, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("failed to encode experience detail: %w", err)
	}
	return string(payload), nil
}

func (t *DetailsTool) fetchBase(ctx context.Context, id string) (datatypes.ExperienceRow, bool, error) {
	where := filters.Where().
		WithPath([]string{"id"}).
		WithOperator(filters.Equal).
		WithValueText(id)

	fields := append(experienceFields(),
		graphql.Field{Name: "supplier_name"},
		graphql.Field{Name: "environment_type"},
	)

	resp, err := t.client.GraphQL().Get().
		WithClassName("Experience").
		WithFields(fields...).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return datatypes.ExperienceRow{}, false, fmt.Errorf("detail lookup failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return datatypes.ExperienceRow{}, false, fmt.Errorf("detail lookup failed: %s", resp.Errors[0].Message)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ExperienceQueryResponse](resp)
	if err != nil {
		return datatypes.ExperienceRow{}, false, fmt.Errorf("failed to parse detail response: %w", err)
	}
	if len(parsed.Get.Experience) == 0 {
		return datatypes.ExperienceRow{}, false, nil
	}
	return parsed.Get.Experience[0], true, nil
}

func (t *DetailsTool) fetchEnhanced(ctx context.Context, id string) (datatypes.ExperienceEnhancedRow, bool, error) {
	where := filters.Where().
		WithPath([]string{"experience_id"}).
		WithOperator(filters.Equal).
		WithValueText(id)

	resp, err := t.client.GraphQL().Get().
		WithClassName("ExperienceEnhanced").
		WithFields(
			graphql.Field{Name: "experience_id"},
			graphql.Field{Name: "one_line_summary"},
			graphql.Field{Name: "environment_type"},
			graphql.Field{Name: "primary_experience_type"},
			graphql.Field{Name: "physical_intensity"},
			graphql.Field{Name: "family_friendly"},
			graphql.Field{Name: "includes_food"},
			graphql.Field{Name: "includes_transport"},
			graphql.Field{Name: "semantic_tags"},
			graphql.Field{Name: "unique_selling_points"},
		).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return datatypes.ExperienceEnhancedRow{}, false, fmt.Errorf("enrichment lookup failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return datatypes.ExperienceEnhancedRow{}, false, fmt.Errorf("enrichment lookup failed: %s", resp.Errors[0].Message)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ExperienceEnhancedQueryResponse](resp)
	if err != nil {
		return datatypes.ExperienceEnhancedRow{}, false, fmt.Errorf("failed to parse enrichment response: %w", err)
	}
	if len(parsed.Get.ExperienceEnhanced) == 0 {
		return datatypes.ExperienceEnhancedRow{}, false, nil
	}
	return parsed.Get.ExperienceEnhanced[0], true, nil
}

// detailFromRow projects the base catalog row into a detail record.
func detailFromRow(id string, row datatypes.ExperienceRow) datatypes.ExperienceDetail {
	return datatypes.ExperienceDetail{
		ID:                    id,
		Name:                  datatypes.DeriveName(row.OneLineSummary, row.NarrativeText),
		NarrativeText:         row.NarrativeText,
		SupplierName:          row.SupplierName,
		City:                  row.City,
		DestinationName:       row.DestinationName,
		Duration:              row.Duration,
		Lat:                   row.Lat,
		Lon:                   row.Lon,
		EnvironmentType:       row.EnvironmentType,
		PrimaryExperienceType: row.PrimaryExperienceType,
		PhysicalIntensity:     row.PhysicalIntensity,
		FamilyFriendly:        row.FamilyFriendly,
		IncludesFood:          row.IncludesFood,
		IncludesTransport:     row.IncludesTransport,
		UniqueSellingPoints:   row.UniqueSellingPoints,
		OneLineSummary:        row.OneLineSummary,
	}
}

// mergeEnhanced overlays enrichment fields onto the base detail. Only
// populated enrichment fields win; zero values never erase base data.
func mergeEnhanced(detail *datatypes.ExperienceDetail, row datatypes.ExperienceEnhancedRow) {
	if row.OneLineSummary != "" {
		detail.OneLineSummary = row.OneLineSummary
		detail.Name = row.OneLineSummary
	}
	if row.EnvironmentType != "" {
		detail.EnvironmentType = row.EnvironmentType
	}
	if row.PrimaryExperienceType != "" {
		detail.PrimaryExperienceType = row.PrimaryExperienceType
	}
	if row.PhysicalIntensity != "" {
		detail.PhysicalIntensity = row.PhysicalIntensity
	}
	if row.FamilyFriendly != nil {
		detail.FamilyFriendly = row.FamilyFriendly
	}
	if row.IncludesFood != nil {
		detail.IncludesFood = row.IncludesFood
	}
	if row.IncludesTransport != nil {
		detail.IncludesTransport = row.IncludesTransport
	}
	if len(row.SemanticTags) > 0 {
		detail.SemanticTags = row.SemanticTags
	}
	if len(row.UniqueSellingPoints) > 0 {
		detail.UniqueSellingPoints = row.UniqueSellingPoints
	}
}
