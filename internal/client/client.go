package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pharmacy-pos-api-server/internal/models"
	"pharmacy-pos-api-server/internal/workflow"
)

// Client talks to the pharmacy POS document API with a bearer token. It
// implements workflow.DocumentAPI.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. baseURL is e.g. "http://localhost:8080/api/v1".
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// apiError mirrors the server's gin.H{"error": ...} body. Business-rule
// messages are surfaced verbatim to the operator.
type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetDocument fetches a document with all its lines.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+documentID, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ValidateScan resolves a scanned code to the matching document line.
func (c *Client) ValidateScan(ctx context.Context, documentID, code string) (*models.DocumentItem, error) {
	var item models.DocumentItem
	body := map[string]string{"code": code}
	if err := c.do(ctx, http.MethodPost, "/documents/"+documentID+"/scan", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// AcceptItem accepts a quantity on a line.
func (c *Client) AcceptItem(ctx context.Context, documentID, itemID string, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return c.do(ctx, http.MethodPost,
		"/documents/"+documentID+"/items/"+itemID+"/accept", body, nil)
}

// RecordDiscrepancy records an operator discrepancy on a line.
func (c *Client) RecordDiscrepancy(ctx context.Context, documentID, itemID string, input workflow.DiscrepancyInput) error {
	return c.do(ctx, http.MethodPost,
		"/documents/"+documentID+"/items/"+itemID+"/discrepancies", input, nil)
}

// CancelDiscrepancy soft-deletes a recorded discrepancy, re-opening the line.
func (c *Client) CancelDiscrepancy(ctx context.Context, documentID, discrepancyID string) error {
	return c.do(ctx, http.MethodDelete,
		"/documents/"+documentID+"/discrepancies/"+discrepancyID, nil, nil)
}

// CompleteDocument marks the whole document as received.
func (c *Client) CompleteDocument(ctx context.Context, documentID string) error {
	return c.do(ctx, http.MethodPost, "/documents/"+documentID+"/complete", nil, nil)
}

// CreateReturn creates a return document from the discrepancy lines.
func (c *Client) CreateReturn(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	if err := c.do(ctx, http.MethodPost, "/documents/"+documentID+"/return", nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
