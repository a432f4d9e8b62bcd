// Package http provides an HTTP-backed implementation of
// runtime/agent/tools/crm.Client against a Salesforce-style REST API: a
// describeGlobal endpoint for the object list, a describe/{object} endpoint
// for field and relationship metadata, and a query endpoint for SOQL.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/datapilot-ai/agentcore/runtime/agent/cache"
	"github.com/datapilot-ai/agentcore/runtime/agent/tools/crm"
)

// Doer is the subset of *http.Client the adapter needs, so tests can swap in
// a stub transport without starting a real server.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the CRM HTTP adapter.
type Options struct {
	// BaseURL is the connection's API root, e.g.
	// "https://example.my.salesforce.com/services/data/v60.0". No trailing
	// slash.
	BaseURL string

	// TokenForConnection resolves a connection id to a bearer token. The
	// adapter calls this on every request rather than caching a token itself,
	// since tokens are refreshed out of band per connection.
	TokenForConnection func(ctx context.Context, connectionID string) (string, error)

	// HTTPClient is the transport used to issue requests. Defaults to
	// &http.Client{Timeout: 30 * time.Second} when nil.
	HTTPClient Doer

	// Timeout bounds a single request when HTTPClient is nil and a default
	// client is constructed. Ignored when HTTPClient is set.
	Timeout time.Duration
}

// Client implements crm.Client over a Salesforce-style REST API.
type Client struct {
	baseURL string
	token   func(ctx context.Context, connectionID string) (string, error)
	http    Doer
}

// New builds a CRM HTTP client from opts.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("crm http: base URL is required")
	}
	if opts.TokenForConnection == nil {
		return nil, errors.New("crm http: TokenForConnection is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, token: opts.TokenForConnection, http: httpClient}, nil
}

var _ crm.Client = (*Client)(nil)

// ListObjects implements crm.Client via the describeGlobal endpoint.
func (c *Client) ListObjects(ctx context.Context, connectionID string) ([]cache.ObjectSummary, error) {
	var body describeGlobalResponse
	if err := c.get(ctx, connectionID, "/sobjects", &body); err != nil {
		return nil, err
	}
	out := make([]cache.ObjectSummary, 0, len(body.SObjects))
	for _, o := range body.SObjects {
		out = append(out, cache.ObjectSummary{
			Name:       o.Name,
			Label:      o.Label,
			Queryable:  o.Queryable,
			Createable: o.Createable,
			Custom:     o.Custom,
			KeyPrefix:  o.KeyPrefix,
		})
	}
	return out, nil
}

// DescribeObject implements crm.Client via the describe/{object} endpoint.
func (c *Client) DescribeObject(ctx context.Context, connectionID, objectName string) (crm.DescribeResult, error) {
	var body describeObjectResponse
	path := fmt.Sprintf("/sobjects/%s/describe", url.PathEscape(objectName))
	if err := c.get(ctx, connectionID, path, &body); err != nil {
		return crm.DescribeResult{}, err
	}

	fields := make([]cache.FieldMetadata, 0, len(body.Fields))
	for _, f := range body.Fields {
		picklist := make([]cache.PicklistValue, 0, len(f.PicklistValues))
		for _, p := range f.PicklistValues {
			picklist = append(picklist, cache.PicklistValue{Value: p.Value, Label: p.Label, ValidFor: p.ValidFor})
		}
		fields = append(fields, cache.FieldMetadata{
			Name:         f.Name,
			Label:        f.Label,
			Type:         f.Type,
			Length:       f.Length,
			Precision:    f.Precision,
			Scale:        f.Scale,
			Nillable:     f.Nillable,
			Unique:       f.Unique,
			Createable:   f.Createable,
			Updateable:   f.Updateable,
			Calculated:   f.Calculated,
			Formula:      f.CalculatedFormula,
			Picklist:     picklist,
			ReferenceTo:  f.ReferenceTo,
			RelationName: f.RelationshipName,
		})
	}

	children := make([]cache.RelationshipMetadata, 0, len(body.ChildRelationships))
	for _, r := range body.ChildRelationships {
		if r.RelationshipName == "" {
			continue
		}
		children = append(children, cache.RelationshipMetadata{
			ChildObject:      r.ChildSObject,
			Field:            r.Field,
			RelationshipName: r.RelationshipName,
			CascadeDelete:    r.CascadeDelete,
		})
	}

	return crm.DescribeResult{Label: body.Label, Fields: fields, ChildRelationships: children}, nil
}

// Query implements crm.Client via the SOQL query endpoint.
func (c *Client) Query(ctx context.Context, connectionID, soql string) (crm.QueryResult, error) {
	var body queryResponse
	path := "/query?q=" + url.QueryEscape(soql)
	if err := c.get(ctx, connectionID, path, &body); err != nil {
		return crm.QueryResult{}, err
	}
	return crm.QueryResult{
		Records:        body.Records,
		TotalSize:      body.TotalSize,
		Done:           body.Done,
		NextRecordsURL: body.NextRecordsURL,
	}, nil
}

func (c *Client) get(ctx context.Context, connectionID, path string, out any) error {
	token, err := c.token(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("crm http: resolve token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("crm http: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("crm http: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &StatusError{Path: path, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crm http: decode %s response: %w", path, err)
	}
	return nil
}

// StatusError reports a non-2xx HTTP response from the CRM API.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return "crm http: " + e.Path + ": unexpected status " + strconv.Itoa(e.StatusCode)
}

type describeGlobalResponse struct {
	SObjects []struct {
		Name       string `json:"name"`
		Label      string `json:"label"`
		Queryable  bool   `json:"queryable"`
		Createable bool   `json:"createable"`
		Custom     bool   `json:"custom"`
		KeyPrefix  string `json:"keyPrefix"`
	} `json:"sobjects"`
}

type describeObjectResponse struct {
	Label  string `json:"label"`
	Fields []struct {
		Name              string `json:"name"`
		Label             string `json:"label"`
		Type              string `json:"type"`
		Length            int    `json:"length"`
		Precision         int    `json:"precision"`
		Scale             int    `json:"scale"`
		Nillable          bool   `json:"nillable"`
		Unique            bool   `json:"unique"`
		Createable        bool   `json:"createable"`
		Updateable        bool   `json:"updateable"`
		Calculated        bool   `json:"calculated"`
		CalculatedFormula string `json:"calculatedFormula"`
		ReferenceTo       []string `json:"referenceTo"`
		RelationshipName  string `json:"relationshipName"`
		PicklistValues    []struct {
			Value    string `json:"value"`
			Label    string `json:"label"`
			ValidFor string `json:"validFor"`
		} `json:"picklistValues"`
	} `json:"fields"`
	ChildRelationships []struct {
		ChildSObject     string `json:"childSObject"`
		Field            string `json:"field"`
		RelationshipName string `json:"relationshipName"`
		CascadeDelete    bool   `json:"cascadeDelete"`
	} `json:"childRelationships"`
}

type queryResponse struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}
