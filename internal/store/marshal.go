package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/protrecon/internal/protein"
)

// participationBody is the JSON column of a participation row. Identity
// columns (id, record_id, interaction_id) live outside it and the interaction
// size is computed on read.
type participationBody struct {
	Stoichiometry     int                  `json:"stoichiometry"`
	BiologicalRole    string               `json:"biological_role,omitempty"`
	ExperimentalRoles []string             `json:"experimental_roles,omitempty"`
	ExpressedIn       string               `json:"expressed_in,omitempty"`
	DetectionMethods  []string             `json:"detection_methods,omitempty"`
	Confidences       []protein.Confidence `json:"confidences,omitempty"`
	Parameters        []protein.Parameter  `json:"parameters,omitempty"`
	Features          []protein.Feature    `json:"features,omitempty"`
}

// marshalParticipation converts the participation payload to JSON TEXT.
// HTML escaping is disabled so stored snippets stay readable.
func marshalParticipation(p protein.Participation) (string, error) {
	body := participationBody{
		Stoichiometry:     p.Stoichiometry,
		BiologicalRole:    p.BiologicalRole,
		ExperimentalRoles: p.ExperimentalRoles,
		ExpressedIn:       p.ExpressedIn,
		DetectionMethods:  p.DetectionMethods,
		Confidences:       p.Confidences,
		Parameters:        p.Parameters,
		Features:          p.Features,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return "", fmt.Errorf("marshal participation %s: %w", p.ID, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalParticipation restores a participation from its row.
func unmarshalParticipation(id, recordID, interactionID string, size int, data string) (protein.Participation, error) {
	var body participationBody
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return protein.Participation{}, fmt.Errorf("unmarshal participation %s: %w", id, err)
	}
	return protein.Participation{
		ID:                id,
		RecordID:          recordID,
		InteractionID:     interactionID,
		InteractionSize:   size,
		Stoichiometry:     body.Stoichiometry,
		BiologicalRole:    body.BiologicalRole,
		ExperimentalRoles: body.ExperimentalRoles,
		ExpressedIn:       body.ExpressedIn,
		DetectionMethods:  body.DetectionMethods,
		Confidences:       body.Confidences,
		Parameters:        body.Parameters,
		Features:          body.Features,
	}, nil
}

// timestamps are stored as RFC 3339 text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
