// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Generic GraphQL Response Parser
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// This generic function encapsulates the marshal/unmarshal pattern required to
// convert Weaviate's dynamic response (map[string]models.JSONObject) into a
// strongly-typed Go struct. The target type T must have json tags matching
// the expected response shape.
//
// # Type Parameters
//
//   - T: The target struct type with json tags matching the response shape.
//
// # Inputs
//
//   - resp: The GraphQL response from Weaviate client's Do() method.
//
// # Outputs
//
//   - *T: Pointer to the parsed struct.
//   - error: Non-nil if response is nil or parsing fails.
//
// # Example
//
//	resp, err := client.GraphQL().Get().WithClassName("Experience").Do(ctx)
//	if err != nil { ... }
//
//	parsed, err := ParseGraphQLResponse[ExperienceQueryResponse](resp)
//	if err != nil { ... }
//
//	for _, row := range parsed.Get.Experience {
//	    fmt.Println(row.OneLineSummary)
//	}
//
// # Limitations
//
//   - Requires the target type to exactly match the expected response structure.
//   - Type mismatches will result in zero values, not errors.
//
// # Assumptions
//
//   - The response Data field is JSON-marshalable.
//   - The target type T has correct json tags.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// =============================================================================
// Common Weaviate Response Types
// =============================================================================

// ExperienceRow is a single Experience object from a catalog query.
//
// # Description
//
// Raw projection of the Experience class. The tool layer maps rows into the
// wire-facing Experience type (name derivation, highlight capping, location
// fallback). The _additional block carries Weaviate's object id and, on
// vector searches, the certainty used as the similarity score.
type ExperienceRow struct {
	NarrativeText         string   `json:"narrative_text"`
	OneLineSummary        string   `json:"one_line_summary"`
	SupplierName          string   `json:"supplier_name"`
	City                  string   `json:"city"`
	DestinationName       string   `json:"destination_name"`
	Duration              string   `json:"duration"`
	DurationHours         float64  `json:"duration_hours"`
	Lat                   float64  `json:"lat"`
	Lon                   float64  `json:"lon"`
	EnvironmentType       string   `json:"environment_type"`
	PrimaryExperienceType string   `json:"primary_experience_type"`
	PhysicalIntensity     string   `json:"physical_intensity"`
	FamilyFriendly        *bool    `json:"family_friendly"`
	IncludesFood          *bool    `json:"includes_food"`
	IncludesTransport     *bool    `json:"includes_transport"`
	UniqueSellingPoints   []string `json:"unique_selling_points"`
	Additional            struct {
		ID        string   `json:"id"`
		Certainty *float64 `json:"certainty"`
	} `json:"_additional"`
}

// ExperienceQueryResponse is the typed response for Experience class queries.
type ExperienceQueryResponse struct {
	Get struct {
		Experience []ExperienceRow `json:"Experience"`
	} `json:"Get"`
}

// ExperienceEnhancedRow is a single enrichment object from a detail query.
type ExperienceEnhancedRow struct {
	ExperienceID          string   `json:"experience_id"`
	OneLineSummary        string   `json:"one_line_summary"`
	EnvironmentType       string   `json:"environment_type"`
	PrimaryExperienceType string   `json:"primary_experience_type"`
	PhysicalIntensity     string   `json:"physical_intensity"`
	FamilyFriendly        *bool    `json:"family_friendly"`
	IncludesFood          *bool    `json:"includes_food"`
	IncludesTransport     *bool    `json:"includes_transport"`
	SemanticTags          []string `json:"semantic_tags"`
	UniqueSellingPoints   []string `json:"unique_selling_points"`
}

// ExperienceEnhancedQueryResponse is the typed response for enrichment queries.
type ExperienceEnhancedQueryResponse struct {
	Get struct {
		ExperienceEnhanced []ExperienceEnhancedRow `json:"ExperienceEnhanced"`
	} `json:"Get"`
}
