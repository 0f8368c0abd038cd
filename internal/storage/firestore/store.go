// Package firestore stores job records as Firestore documents through the
// REST API.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
)

// DefaultBaseURL is the public Firestore REST endpoint
const DefaultBaseURL = "https://firestore.googleapis.com/v1"

const (
	maxErrorBodyBytes = 4 << 10

	// maxUpdateAttempts bounds the read-then-write cycles of one Update when
	// the document keeps changing underneath it
	maxUpdateAttempts = 3
)

// errPreconditionFailed is returned when the document changed after it was read
var errPreconditionFailed = errors.New("document changed since it was read")

// Config holds Firestore store configuration
type Config struct {
	BaseURL    string
	ProjectID  string
	DatabaseID string
	Collection string
	Timeout    time.Duration

	// HTTPClient authenticates requests. Use an oauth2 client so the store
	// never handles credentials itself.
	HTTPClient *http.Client
}

// Store implements itinerary.Store on a Firestore collection
type Store struct {
	httpClient    *http.Client
	collectionURL string
}

// NewStore creates a Firestore-backed store
func NewStore(cfg *Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("firestore collection is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = "(default)"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout > 0 {
		c := *httpClient
		c.Timeout = cfg.Timeout
		httpClient = &c
	}

	return &Store{
		httpClient: httpClient,
		collectionURL: fmt.Sprintf("%s/projects/%s/databases/%s/documents/%s",
			baseURL, cfg.ProjectID, databaseID, cfg.Collection),
	}, nil
}

// Create adds a document with a Firestore-assigned id
func (s *Store) Create(ctx context.Context, rec itinerary.Record) (string, error) {
	var doc document
	if err := s.do(ctx, http.MethodPost, s.collectionURL, &document{Fields: encodeRecord(rec)}, &doc); err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	if doc.Name == "" {
		return "", errors.New("failed to create document: response has no name")
	}
	return doc.id(), nil
}

// Update writes exactly the patched fields of a processing document. The
// write is conditioned on the updateTime of the read that checked the
// status, so a document finished in between is never overwritten.
func (s *Store) Update(ctx context.Context, id string, patch itinerary.Patch) error {
	fields, mask := encodePatch(patch)

	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.updateOnce(ctx, id, fields, mask)
		if !errors.Is(err, errPreconditionFailed) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

func (s *Store) updateOnce(ctx context.Context, id string, fields Fields, mask []string) error {
	var current document
	if err := s.do(ctx, http.MethodGet, s.documentURL(id), nil, &current); err != nil {
		return err
	}
	status, err := current.Fields.optString(itinerary.FieldStatus)
	if err != nil {
		return err
	}
	if itinerary.Status(status).IsTerminal() {
		return fmt.Errorf("%w: %s", itinerary.ErrTerminal, status)
	}

	query := url.Values{}
	for _, field := range mask {
		query.Add("updateMask.fieldPaths", field)
	}
	if current.UpdateTime != "" {
		query.Set("currentDocument.updateTime", current.UpdateTime)
	} else {
		query.Set("currentDocument.exists", "true")
	}

	endpoint := s.documentURL(id) + "?" + query.Encode()
	return s.do(ctx, http.MethodPatch, endpoint, &document{Fields: fields}, nil)
}

// Get loads one document
func (s *Store) Get(ctx context.Context, id string) (*itinerary.Record, error) {
	var doc document
	if err := s.do(ctx, http.MethodGet, s.documentURL(id), nil, &doc); err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}

	rec, err := decodeRecord(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store) documentURL(id string) string {
	return s.collectionURL + "/" + url.PathEscape(id)
}

// apiError is the error envelope returned by Google APIs
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (s *Store) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return itinerary.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Status == "FAILED_PRECONDITION" {
			return fmt.Errorf("%w: %s", errPreconditionFailed, apiErr.Error.Message)
		}
		if apiErr.Error.Message != "" {
			return fmt.Errorf("firestore %s (%d): %s", apiErr.Error.Status, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("firestore status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
