package protein

// Participation is one record's role in one interaction.
type Participation struct {
	ID            string `json:"id" yaml:"id"`
	RecordID      string `json:"record_id" yaml:"record_id"`
	InteractionID string `json:"interaction_id,omitempty" yaml:"interaction_id,omitempty"`

	// InteractionSize is the number of participants the owning interaction
	// had when the participation was loaded.
	InteractionSize int `json:"interaction_size" yaml:"interaction_size"`

	// Stoichiometry 0 is the "unspecified" sentinel.
	Stoichiometry     int          `json:"stoichiometry" yaml:"stoichiometry"`
	BiologicalRole    string       `json:"biological_role,omitempty" yaml:"biological_role,omitempty"`
	ExperimentalRoles []string     `json:"experimental_roles,omitempty" yaml:"experimental_roles,omitempty"`
	ExpressedIn       string       `json:"expressed_in,omitempty" yaml:"expressed_in,omitempty"`
	DetectionMethods  []string     `json:"detection_methods,omitempty" yaml:"detection_methods,omitempty"`
	Confidences       []Confidence `json:"confidences,omitempty" yaml:"confidences,omitempty"`
	Parameters        []Parameter  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Features          []Feature    `json:"features,omitempty" yaml:"features,omitempty"`
}

// Confidence is a typed confidence value attached to a participation.
type Confidence struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Key returns the canonical comparison key.
func (c Confidence) Key() string {
	return canonicalKey(map[string]any{
		"type":  c.Type,
		"value": c.Value,
	})
}

// Parameter is a kinetic or experimental parameter (value = factor * base^exponent).
type Parameter struct {
	Type        string  `json:"type" yaml:"type"`
	Unit        string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Factor      float64 `json:"factor" yaml:"factor"`
	Base        int     `json:"base,omitempty" yaml:"base,omitempty"`
	Exponent    int     `json:"exponent,omitempty" yaml:"exponent,omitempty"`
	Uncertainty float64 `json:"uncertainty,omitempty" yaml:"uncertainty,omitempty"`
}

// Key returns the canonical comparison key.
func (p Parameter) Key() string {
	return canonicalKey(map[string]any{
		"type":        p.Type,
		"unit":        p.Unit,
		"factor":      p.Factor,
		"base":        p.Base,
		"exponent":    p.Exponent,
		"uncertainty": p.Uncertainty,
	})
}

// Feature is an annotated region of the participant.
type Feature struct {
	ID     string  `json:"id,omitempty" yaml:"id,omitempty"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Type   string  `json:"type" yaml:"type"`
	Ranges []Range `json:"ranges,omitempty" yaml:"ranges,omitempty"`
}

// Range locates a feature on the sequence. Start and end are intervals so
// fuzzy boundaries can be expressed; the status tags say how to read them.
type Range struct {
	StartStatus string `json:"start_status" yaml:"start_status"`
	EndStatus   string `json:"end_status" yaml:"end_status"`
	FromStart   int    `json:"from_start" yaml:"from_start"`
	ToStart     int    `json:"to_start" yaml:"to_start"`
	FromEnd     int    `json:"from_end" yaml:"from_end"`
	ToEnd       int    `json:"to_end" yaml:"to_end"`
	Sequence    string `json:"sequence,omitempty" yaml:"sequence,omitempty"`
}

// Clone returns a deep copy.
func (p Participation) Clone() Participation {
	c := p
	c.ExperimentalRoles = append([]string(nil), p.ExperimentalRoles...)
	c.DetectionMethods = append([]string(nil), p.DetectionMethods...)
	c.Confidences = append([]Confidence(nil), p.Confidences...)
	c.Parameters = append([]Parameter(nil), p.Parameters...)
	if p.Features != nil {
		c.Features = make([]Feature, len(p.Features))
		for i, f := range p.Features {
			f.Ranges = append([]Range(nil), f.Ranges...)
			c.Features[i] = f
		}
	}
	return c
}

// Binary reports whether the owning interaction has at most two participants.
func (p Participation) Binary() bool {
	return p.InteractionSize <= 2
}
