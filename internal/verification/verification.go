// Package verification talks to the alumni verification service.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ResultSuccess is the result value reported for a verified alumnus.
const ResultSuccess = "success"

// Result is the verification service's answer.
type Result struct {
	Result   string `json:"result"`
	AlumniID string `json:"alumni_id"`
	Message  string `json:"message"`
}

// Verified reports whether the service confirmed the alumnus.
func (r Result) Verified() bool {
	return r.Result == ResultSuccess
}

// Verifier verifies an alumnus by account id.
type Verifier interface {
	Verify(ctx context.Context, alumniID string) (Result, error)
}

// ErrInvalidAlumniID is returned for an empty id.
var ErrInvalidAlumniID = errors.New("invalid alumni id")

// New returns an HTTP verifier for baseURL, or the mock when baseURL is empty.
func New(baseURL string, httpClient *http.Client) Verifier {
	if strings.TrimSpace(baseURL) == "" {
		return MockVerifier{}
	}
	return NewHTTPVerifier(baseURL, httpClient)
}

// MockVerifier confirms every non-empty id without contacting anything.
type MockVerifier struct{}

func (MockVerifier) Verify(ctx context.Context, alumniID string) (Result, error) {
	if alumniID == "" {
		return Result{}, ErrInvalidAlumniID
	}
	return Result{Result: ResultSuccess, AlumniID: alumniID, Message: "Alumni verified on blockchain"}, nil
}

// HTTPVerifier posts {"alumni_id": id} to <baseURL>/verify.
type HTTPVerifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPVerifier creates an HTTPVerifier. A nil httpClient uses http.DefaultClient.
func NewHTTPVerifier(baseURL string, httpClient *http.Client) *HTTPVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPVerifier{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

type verifyRequest struct {
	AlumniID string `json:"alumni_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, alumniID string) (Result, error) {
	if alumniID == "" {
		return Result{}, ErrInvalidAlumniID
	}
	body, err := json.Marshal(verifyRequest{AlumniID: alumniID})
	if err != nil {
		return Result{}, fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send verify request: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read verify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(payload, &errResp) == nil && errResp.Detail != "" {
			return Result{}, fmt.Errorf("verification service: %s (status %d)", errResp.Detail, resp.StatusCode)
		}
		return Result{}, fmt.Errorf("verification service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("decode verify response: %w", err)
	}
	return result, nil
}
