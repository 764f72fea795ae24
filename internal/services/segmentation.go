package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seglab/segcase-backend/internal/pkg/logger"
)

// ErrEngineUnavailable is the stable error callers see for any transport
// failure, timeout, or malformed response from the segmentation engine.
var ErrEngineUnavailable = errors.New("segmentation engine unavailable")

// EngineError carries a structured error message returned by the engine
// itself. The message is surfaced to callers verbatim.
type EngineError struct {
	Message string
}

func (e *EngineError) Error() string {
	return e.Message
}

// SegmentationClient invokes the external segmentation engine. Both sides
// share a resolvable reference space (a common filesystem mount), so only
// references travel over the wire, never file bytes. A single call either
// succeeds with one mask per primary image or fails with one typed error;
// there are no automatic retries.
type SegmentationClient interface {
	Segment(ctx context.Context, imageRefs, supportImageRefs, supportLabelRefs []string) ([]string, error)
}

type segmentRequest struct {
	ImagePaths        []string `json:"image_paths"`
	SupportImagePaths []string `json:"support_image_paths"`
	SupportLabelPaths []string `json:"support_label_paths"`
}

type segmentResponse struct {
	MaskPaths []string `json:"mask_paths"`
	Error     string   `json:"error"`
}

type segmentationClient struct {
	log        *logger.Logger
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewSegmentationClient(baseLog *logger.Logger, baseURL string, timeout time.Duration) (SegmentationClient, error) {
	serviceLog := baseLog.With("service", "SegmentationClient")
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("segmentation engine base URL required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &segmentationClient{
		log:        serviceLog,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{},
	}, nil
}

func (sc *segmentationClient) Segment(ctx context.Context, imageRefs, supportImageRefs, supportLabelRefs []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	body, err := json.Marshal(segmentRequest{
		ImagePaths:        imageRefs,
		SupportImagePaths: supportImageRefs,
		SupportLabelPaths: supportLabelRefs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal segment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.baseURL+"/segment", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build segment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	sc.log.Info("Invoking segmentation engine",
		"images", len(imageRefs),
		"support_images", len(supportImageRefs),
		"support_labels", len(supportLabelRefs),
	)

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		sc.log.Error("Segmentation engine transport failure", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload segmentResponse
		if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			return nil, &EngineError{Message: payload.Error}
		}
		sc.log.Error("Segmentation engine returned unexpected status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: engine returned status %d", ErrEngineUnavailable, resp.StatusCode)
	}

	var payload segmentResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed engine response", ErrEngineUnavailable)
	}
	if len(payload.MaskPaths) != len(imageRefs) {
		sc.log.Error("Segmentation engine mask count mismatch",
			"want", len(imageRefs), "got", len(payload.MaskPaths))
		return nil, fmt.Errorf("%w: engine returned %d masks for %d images",
			ErrEngineUnavailable, len(payload.MaskPaths), len(imageRefs))
	}
	return payload.MaskPaths, nil
}
