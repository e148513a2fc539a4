package extract

import "time"

// Result is the record shape the model is asked to produce. A nil Value means
// the model found no payment information in the message; that is a valid
// outcome, not an error.
type Result struct {
	Value       *float64          `json:"value"`
	Description *string           `json:"description"`
	Category    *string           `json:"category"`
	PayedAt     *string           `json:"payed_at"`
	Data        map[string]string `json:"data"`
}

var payedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// PayedAtTime parses the payed_at field. It returns nil when the field is
// absent or does not parse as any accepted ISO-8601 layout.
func (r *Result) PayedAtTime() *time.Time {
	if r.PayedAt == nil || *r.PayedAt == "" {
		return nil
	}
	for _, layout := range payedAtLayouts {
		if t, err := time.Parse(layout, *r.PayedAt); err == nil {
			return &t
		}
	}
	return nil
}
