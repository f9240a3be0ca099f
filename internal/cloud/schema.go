package cloud

import (
	"google.golang.org/genai"

	"github.com/heimdex/brushdetect/internal/detect"
)

// ResponseSchema describes the answer object: two nullable [start, end]
// frame pairs and a free-text note, all required.
func ResponseSchema() *genai.Schema {
	side := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: desc,
			Nullable:    genai.Ptr(true),
			Items:       &genai.Schema{Type: genai.TypeInteger},
			MinItems:    genai.Ptr[int64](2),
			MaxItems:    genai.Ptr[int64](2),
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			detect.FieldLeft:  side("Inclusive [start, end] frame numbers of left-side brushing, or null."),
			detect.FieldRight: side("Inclusive [start, end] frame numbers of right-side brushing, or null."),
			detect.FieldNotes: {Type: genai.TypeString, Description: "Short explanation of the decision."},
		},
		Required:         []string{detect.FieldLeft, detect.FieldRight, detect.FieldNotes},
		PropertyOrdering: []string{detect.FieldLeft, detect.FieldRight, detect.FieldNotes},
	}
}
