// Package vision labels cover photos through the Google Vision API (web
// detection plus OCR) and caches responses so images are never re-annotated.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const maxResultsPerFeature = 10

// Image is one photo submitted for labelling.
type Image struct {
	URI     string
	Content []byte
}

// LabelResult is the labelling outcome for a single image. The URI ties the
// result back to its source image across batching and caching.
type LabelResult struct {
	URI       string   `yaml:"uri"`
	PageURLs  []string `yaml:"page_urls,omitempty"`
	BestGuess string   `yaml:"best_guess,omitempty"`
	OCRText   string   `yaml:"ocr_text,omitempty"`
	Error     string   `yaml:"error,omitempty"`
}

// Client batches annotate calls against the Vision API.
type Client struct {
	svc       *vision.Service
	batchSize int
	logger    *slog.Logger
}

// NewClient builds a Vision client using application default credentials.
// batchSize is clamped by config to the API's request ceiling.
func NewClient(ctx context.Context, batchSize int, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, batchSize: batchSize, logger: logger}, nil
}

// Annotate labels the given images in bounded batches. The returned slice is
// ordered like the input; a per-image annotation failure is carried in the
// result's Error field, not returned as an error.
func (c *Client) Annotate(ctx context.Context, images []Image) ([]LabelResult, error) {
	results := make([]LabelResult, 0, len(images))
	batches := (len(images) + c.batchSize - 1) / c.batchSize

	for i := 0; i < len(images); i += c.batchSize {
		end := min(i+c.batchSize, len(images))
		chunk := images[i:end]
		c.logger.Info("annotating batch", "batch", i/c.batchSize+1, "batches", batches, "images", len(chunk))

		reqs := make([]*vision.AnnotateImageRequest, 0, len(chunk))
		for _, img := range chunk {
			reqs = append(reqs, &vision.AnnotateImageRequest{
				Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(img.Content)},
				Features: []*vision.Feature{
					{Type: "WEB_DETECTION", MaxResults: maxResultsPerFeature},
					{Type: "TEXT_DETECTION", MaxResults: maxResultsPerFeature},
				},
			})
		}

		resp, err := c.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{Requests: reqs}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("batch annotate: %w", err)
		}
		if len(resp.Responses) != len(chunk) {
			c.logger.Warn("unexpected response count", "want", len(chunk), "got", len(resp.Responses))
		}
		for j, r := range resp.Responses {
			results = append(results, toLabelResult(chunk[j].URI, r))
		}
	}
	return results, nil
}

func toLabelResult(uri string, r *vision.AnnotateImageResponse) LabelResult {
	result := LabelResult{URI: uri}
	if r == nil {
		result.Error = "empty annotation response"
		return result
	}
	if r.Error != nil {
		result.Error = r.Error.Message
		return result
	}
	if r.WebDetection != nil {
		for _, page := range r.WebDetection.PagesWithMatchingImages {
			if page.Url != "" {
				result.PageURLs = append(result.PageURLs, page.Url)
			}
		}
		if len(r.WebDetection.BestGuessLabels) > 0 {
			result.BestGuess = r.WebDetection.BestGuessLabels[0].Label
		}
	}
	// The first text annotation is the full-image transcription; the rest
	// are per-word boxes we do not need.
	if len(r.TextAnnotations) > 0 {
		result.OCRText = r.TextAnnotations[0].Description
	}
	return result
}
