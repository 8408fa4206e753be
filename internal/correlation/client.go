package correlation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/itinerary-scanner/internal/itinerary"
)

// StatusError is returned for non-2xx API responses
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("itinerary API error (status %d): %s", e.Code, e.Message)
}

// Client talks to the itinerary scanner HTTP API. It implements Uploader, ResultFinder
// and itinerary.TripWriter.
type Client struct {
	baseURL string
	auth    itinerary.BasicAuth
	client  *http.Client
}

// NewClient creates a Client for the server at baseURL
func NewClient(baseURL string, auth itinerary.BasicAuth) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method string, path string, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.auth.Username != "" || c.auth.Password != "" {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(msg, &apiErr) == nil && apiErr.Error != "" {
			msg = []byte(apiErr.Error)
		}
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data), out)
}

// Upload sends a document as multipart form data
func (c *Client) Upload(ctx context.Context, doc itinerary.UploadedDocument) (*itinerary.UploadReceipt, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, doc.FileName))
	if doc.ContentType != "" {
		header.Set("Content-Type", doc.ContentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, fmt.Errorf("writing form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	var receipt itinerary.UploadReceipt
	if err := c.do(ctx, http.MethodPost, "/api/uploads", writer.FormDataContentType(), body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// RecentResults returns up to limit extraction results, newest first
func (c *Client) RecentResults(ctx context.Context, limit int) ([]*itinerary.ExtractionResult, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var results []*itinerary.ExtractionResult
	if err := c.do(ctx, http.MethodGet, "/api/results?"+q.Encode(), "", nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateTrip creates a trip named name
func (c *Client) CreateTrip(ctx context.Context, name string) (*itinerary.Trip, error) {
	var trip itinerary.Trip
	if err := c.postJSON(ctx, "/api/trips", itinerary.Trip{Name: name}, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// CreateActivity adds an activity to a trip
func (c *Client) CreateActivity(ctx context.Context, tripID string, activity *itinerary.TripActivity) error {
	return c.postJSON(ctx, "/api/trips/"+url.PathEscape(tripID)+"/activities", activity, activity)
}

// CreateExpense adds an expense to a trip
func (c *Client) CreateExpense(ctx context.Context, tripID string, expense *itinerary.TripExpense) error {
	return c.postJSON(ctx, "/api/trips/"+url.PathEscape(tripID)+"/expenses", expense, expense)
}
