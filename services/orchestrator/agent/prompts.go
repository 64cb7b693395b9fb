// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"strings"

	"github.com/rutopia/chat-orchestrator/services/orchestrator/datatypes"
)

// maxDigestResults bounds how many prior results are summarized into the
// system directive. Enough for "the second one" style follow-ups without
// bloating the prompt.
const maxDigestResults = 5

// basePersona is the standing system directive for the decision oracle.
const basePersona = `Eres el asistente de viajes de Rutopia. Ayudas a viajeros a descubrir experiencias de turismo regenerativo en México, operadas por comunidades locales.

Reglas:
- Responde siempre en el idioma del viajero.
- Usa search_experiences cuando el viajero busca actividades; usa get_experience_details cuando pregunta por una experiencia concreta de los resultados anteriores.
- Nunca inventes experiencias ni detalles: apóyate únicamente en los resultados de las herramientas.
- Sé cálido y conciso. Menciona las experiencias por su nombre.`

// SystemPrompt builds the per-turn system directive.
//
// # Description
//
// Appends a digest of the most recent result set to the standing persona so
// the oracle can resolve references like "la segunda" or "the cenote one"
// without re-searching. Each digest line follows the fixed shape
// "i. name (ID: id) - location".
//
// # Inputs
//
//   - lastResults: The session's current result set. May be empty.
//
// # Outputs
//
//   - string: The complete system directive for this decision round.
func SystemPrompt(lastResults []datatypes.Experience) string {
	if len(lastResults) == 0 {
		return basePersona
	}

	var b strings.Builder
	b.WriteString(basePersona)
	b.WriteString("\n\nResultados mostrados al viajero (para resolver referencias):\n")

	limit := len(lastResults)
	if limit > maxDigestResults {
		limit = maxDigestResults
	}
	for i := 0; i < limit; i++ {
		exp := lastResults[i]
		fmt.Fprintf(&b, "%d. %s (ID: %s) - %s\n", i+1, exp.Name, exp.ID, exp.Location)
	}
	return b.String()
}
