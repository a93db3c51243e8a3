package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Tuning parameters sent with every recognize call. Biased toward speed
// over recall: few candidate faces, one prediction each.
const (
	DetProbThreshold = 0.75
	FaceLimit        = 2
	PredictionCount  = 1

	// SimilarityThreshold is the inclusive lower bound for treating a
	// subject match as a recognition.
	SimilarityThreshold = 0.7

	DefaultTimeout = 10 * time.Second
)

// noFaceSentinel appears in non-200 response bodies when the service found
// no face; it is not an error.
const noFaceSentinel = "No face is found"

// Client is a stateless wrapper around the face recognition service.
// Safe for concurrent use by multiple camera monitors.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a recognition client for the given service base URL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/v1/recognition/recognize",
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type recognizeResponse struct {
	Result []struct {
		Box      Box `json:"box"`
		Subjects []struct {
			Subject    string  `json:"subject"`
			Similarity float64 `json:"similarity"`
		} `json:"subjects"`
	} `json:"result"`
}

// Classify sends one image to the recognition service and reports the
// outcome. It never retries; scheduling policy belongs to the caller.
func (c *Client) Classify(ctx context.Context, imagePath string) Result {
	start := time.Now()

	req, err := c.buildRequest(ctx, imagePath)
	if err != nil {
		return Result{Kind: KindServiceError, Err: err.Error(), Elapsed: time.Since(start)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failureResult(err, time.Since(start))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failureResult(err, time.Since(start))
	}
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		// The service reports "no face" as an error response.
		if strings.Contains(string(body), noFaceSentinel) {
			return Result{Kind: KindNoFace, Elapsed: elapsed}
		}
		return Result{
			Kind:       KindServiceError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Sprintf("HTTP %d", resp.StatusCode),
			Elapsed:    elapsed,
		}
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{Kind: KindServiceError, Err: fmt.Sprintf("invalid response: %v", err), Elapsed: elapsed}
	}

	return classify(parsed, elapsed)
}

// buildRequest prepares the multipart upload with fixed tuning parameters.
func (c *Client) buildRequest(ctx context.Context, imagePath string) (*http.Request, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	params := url.Values{}
	params.Set("det_prob_threshold", fmt.Sprintf("%g", DetProbThreshold))
	params.Set("limit", fmt.Sprintf("%d", FaceLimit))
	params.Set("prediction_count", fmt.Sprintf("%d", PredictionCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+params.Encode(), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}

// classify maps the service response onto the closed result type. Per face
// the best subject wins; similarity at or above the threshold counts as a
// recognition, anything else as an unknown face.
func classify(resp recognizeResponse, elapsed time.Duration) Result {
	if len(resp.Result) == 0 {
		return Result{Kind: KindNoFace, Elapsed: elapsed}
	}

	var matches []Match
	unknown := 0

	for _, face := range resp.Result {
		if len(face.Subjects) == 0 {
			unknown++
			continue
		}

		best := face.Subjects[0]
		for _, s := range face.Subjects[1:] {
			if s.Similarity > best.Similarity {
				best = s
			}
		}

		if best.Similarity >= SimilarityThreshold {
			matches = append(matches, Match{
				Subject:    best.Subject,
				Similarity: best.Similarity,
				Box:        face.Box,
			})
		} else {
			unknown++
		}
	}

	if len(matches) > 0 {
		return Result{Kind: KindRecognized, Matches: matches, Unknown: unknown, Elapsed: elapsed}
	}
	return Result{Kind: KindUnknownFace, Unknown: unknown, Elapsed: elapsed}
}

// failureResult distinguishes timeouts from other transport failures.
func failureResult(err error, elapsed time.Duration) Result {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return Result{Kind: KindTimeout, Err: err.Error(), Elapsed: elapsed}
	}
	return Result{Kind: KindServiceError, Err: err.Error(), Elapsed: elapsed}
}
