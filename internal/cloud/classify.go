package cloud

import (
	"errors"
	"net/http"

	"google.golang.org/genai"

	"github.com/heimdex/brushdetect/internal/detect"
)

const (
	statusUnavailable       = "UNAVAILABLE"
	statusResourceExhausted = "RESOURCE_EXHAUSTED"
)

// classify wraps err in a *detect.CallError. Only overload (503) and quota
// (429) responses are transient; everything else, including transport
// errors, is permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	code, status, ok := apiStatus(err)
	if !ok {
		return &detect.CallError{Class: detect.ClassPermanent, Err: err}
	}
	switch {
	case code == http.StatusServiceUnavailable || status == statusUnavailable:
		return &detect.CallError{Class: detect.ClassUnavailable, Err: err}
	case code == http.StatusTooManyRequests || status == statusResourceExhausted:
		return &detect.CallError{Class: detect.ClassRateLimited, Err: err}
	default:
		return &detect.CallError{Class: detect.ClassPermanent, Err: err}
	}
}

func apiStatus(err error) (int, string, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, v.Status, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, p.Status, true
	}
	return 0, "", false
}
