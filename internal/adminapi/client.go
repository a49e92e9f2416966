package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin Go SDK for one peer's admin API. A client talks to
// exactly one node and performs no distributed logic of its own; it just
// issues HTTP calls and decodes responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client for the admin API at baseURL (e.g.
// "http://localhost:9000"). A zero timeout defaults to 10s, since a
// network call in a distributed system must never be allowed to hang
// forever.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// HealthResponse is the decoded body of GET /health.
type HealthResponse struct {
	Key         uint32 `json:"key"`
	SkipGraphs  int    `json:"skip_graphs"`
	IsMalicious bool   `json:"is_malicious"`
	IsOffline   bool   `json:"is_offline"`
	Edges       int    `json:"edges"`
}

// Health fetches the node's overall status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchResponse is the decoded body of GET /skipgraph/:index/search/:key.
type SearchResponse struct {
	Key        uint32 `json:"key"`
	ResolvedTo uint32 `json:"resolved_to"`
}

// Search asks the node to run a Skip Graph search for key on the
// sgIndex'th co-resident graph.
func (c *Client) Search(ctx context.Context, sgIndex int, key uint32) (*SearchResponse, error) {
	var out SearchResponse
	path := fmt.Sprintf("/skipgraph/%d/search/%d", sgIndex, key)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TripletView is the wire shape of one triplet returned by the admin API.
type TripletView struct {
	Head     string   `json:"head"`
	Relation string   `json:"relation"`
	Tail     string   `json:"tail"`
	Rules    []string `json:"rules"`
}

type tripletsEnvelope struct {
	Triplets []TripletView `json:"triplets"`
}

// SearchEdges triggers a replicated edge search for a hex-encoded content
// hash.
func (c *Client) SearchEdges(ctx context.Context, contentHashHex string) ([]TripletView, error) {
	var out tripletsEnvelope
	if err := c.getJSON(ctx, "/edges/"+contentHashHex, &out); err != nil {
		return nil, err
	}
	return out.Triplets, nil
}

// TripletsOfNode fetches the triplets stored locally with the given
// hex-encoded content label as head or tail.
func (c *Client) TripletsOfNode(ctx context.Context, contentHex string) ([]TripletView, error) {
	var out tripletsEnvelope
	if err := c.getJSON(ctx, "/knowledgegraph/"+contentHex, &out); err != nil {
		return nil, err
	}
	return out.Triplets, nil
}

// EnqueueContent hands the node a new piece of content for its rule
// engine to process on its next tick.
func (c *Client) EnqueueContent(ctx context.Context, identifierHex, data string) error {
	body, _ := json.Marshal(contentRequest{IdentifierHex: identifierHex, Data: data})
	return c.postJSON(ctx, "/content", body, nil)
}

// SetFault toggles malicious/offline fault injection. A nil pointer leaves
// that flag unchanged.
func (c *Client) SetFault(ctx context.Context, malicious, offline *bool) error {
	body, _ := json.Marshal(faultRequest{Malicious: malicious, Offline: offline})
	return c.postJSON(ctx, "/fault", body, nil)
}

// RoutingTableJSON fetches the raw JSON body of the routing-table dump for
// sgIndex, for callers (such as cmd/descanctl's "status" command) that
// just want to pretty-print it rather than bind it to a typed struct.
func (c *Client) RoutingTableJSON(ctx context.Context, sgIndex int) (string, error) {
	return c.getRaw(ctx, fmt.Sprintf("/skipgraph/%d/routingtable", sgIndex))
}

// ─── plumbing ───────────────────────────────────────────────────────────────

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) getRaw(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// APIError carries the HTTP status and error message from the admin API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
