package cloud

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genai"

	"github.com/heimdex/brushdetect/internal/detect"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want detect.Class
	}{
		{"503 code", genai.APIError{Code: 503, Message: "overloaded"}, detect.ClassUnavailable},
		{"unavailable status", genai.APIError{Code: 500, Status: "UNAVAILABLE"}, detect.ClassUnavailable},
		{"429 code", genai.APIError{Code: 429, Message: "quota"}, detect.ClassRateLimited},
		{"exhausted status", genai.APIError{Status: "RESOURCE_EXHAUSTED"}, detect.ClassRateLimited},
		{"pointer error", &genai.APIError{Code: 503}, detect.ClassUnavailable},
		{"wrapped", fmt.Errorf("generate: %w", genai.APIError{Code: 429}), detect.ClassRateLimited},
		{"bad request", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, detect.ClassPermanent},
		{"internal", genai.APIError{Code: 500, Status: "INTERNAL"}, detect.ClassPermanent},
		{"plain error", errors.New("connection reset"), detect.ClassPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			if got := detect.ClassOf(err); got != tt.want {
				t.Errorf("class = %v, want %v", got, tt.want)
			}
			var ce *detect.CallError
			if !errors.As(err, &ce) || ce.Err.Error() != tt.err.Error() {
				t.Errorf("classified error must carry the original, got %v", err)
			}
		})
	}

	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}
