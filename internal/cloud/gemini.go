// Package cloud adapts the Gemini Files and Models APIs to detect.Service.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/heimdex/brushdetect/internal/detect"
	"github.com/heimdex/brushdetect/internal/logging"
)

const (
	DefaultHTTPTimeout = 10 * time.Minute
	responseMIMEType   = "application/json"
)

type Config struct {
	APIKey string
	// BaseURL overrides the service endpoint. Empty uses the SDK default.
	BaseURL    string
	HTTPClient *http.Client
	// RPM caps generate calls per minute across all workers. Zero means
	// unlimited.
	RPM    int
	Logger *slog.Logger
}

// Gemini implements detect.Service. One instance is shared by all workers.
type Gemini struct {
	client  *genai.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ detect.Service = (*Gemini)(nil)

func New(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cloud: api key is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("cloud: create client: %w", err)
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	logger := logging.WithComponent(cfg.Logger, "gemini")
	logger.Info("gemini client ready", "api_key", logging.SanitizeToken(cfg.APIKey), "rpm", cfg.RPM)

	return &Gemini{
		client:  client,
		limiter: NewLimiter(cfg.RPM),
		logger:  logger,
	}, nil
}

// NewLimiter paces calls to rpm per minute with no burst. rpm <= 0 never
// blocks.
func NewLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

func (g *Gemini) Upload(ctx context.Context, path string) (detect.Asset, error) {
	f, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    MIMEType(path),
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return detect.Asset{}, classify(err)
	}
	return assetFromFile(f), nil
}

func (g *Gemini) Get(ctx context.Context, name string) (detect.Asset, error) {
	f, err := g.client.Files.Get(ctx, name, nil)
	if err != nil {
		return detect.Asset{}, classify(err)
	}
	return assetFromFile(f), nil
}

func (g *Gemini) Delete(ctx context.Context, name string) error {
	if _, err := g.client.Files.Delete(ctx, name, nil); err != nil {
		return classify(err)
	}
	return nil
}

// Generate asks the model for the frame ranges and returns the raw response
// text. Parsing belongs to the caller.
func (g *Gemini) Generate(ctx context.Context, asset detect.Asset, req detect.Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(asset.URI, asset.MIMEType),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, GenerateConfig(req.Temperature))
	if err != nil {
		return "", classify(err)
	}
	return resp.Text(), nil
}

// GenerateConfig requests a JSON answer constrained by ResponseSchema.
func GenerateConfig(temperature float64) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(temperature)),
		ResponseMIMEType: responseMIMEType,
		ResponseSchema:   ResponseSchema(),
	}
}

func assetFromFile(f *genai.File) detect.Asset {
	if f == nil {
		return detect.Asset{}
	}
	return detect.Asset{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    assetState(f.State),
	}
}

func assetState(s genai.FileState) detect.AssetState {
	switch s {
	case genai.FileStateActive:
		return detect.StateActive
	case genai.FileStateFailed:
		return detect.StateFailed
	default:
		return detect.StateProcessing
	}
}

var videoMIMETypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".3gp":  "video/3gpp",
}

// MIMEType returns the upload content type for path, defaulting to mp4.
func MIMEType(path string) string {
	if m, ok := videoMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "video/mp4"
}
