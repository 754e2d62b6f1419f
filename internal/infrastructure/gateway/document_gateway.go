// Package gateway holds the HTTP clients for the services the engine
// collaborates with: the document services owning the source transactions,
// and the notification service. Failures surface as wrapped sentinel errors
// so callers can classify them without knowing HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// DocumentGateway implements port.DocumentGateway against the document
// service's REST API.
type DocumentGateway struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewDocumentGateway creates a document service client.
func NewDocumentGateway(baseURL string, timeout time.Duration, logger *zap.Logger) *DocumentGateway {
	return &DocumentGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetDocument fetches one source transaction snapshot.
func (g *DocumentGateway) GetDocument(ctx context.Context, docType, docID string) (*entity.SourceDocument, error) {
	u := fmt.Sprintf("%s/documents/%s/%s", g.baseURL, url.PathEscape(docType), url.PathEscape(docID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building document request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: document service unreachable: %v", port.ErrDependency, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: document %s/%s", port.ErrNotFound, docType, docID)
	default:
		return nil, fmt.Errorf("%w: document service returned %d", port.ErrDependency, resp.StatusCode)
	}

	var doc entity.SourceDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding document response: %v", port.ErrDependency, err)
	}
	return &doc, nil
}

// GetDocuments fetches a batch of snapshots of one document type. Missing
// ids are simply absent from the result; callers decide whether that is an
// error.
func (g *DocumentGateway) GetDocuments(ctx context.Context, docType string, docIDs []string) ([]*entity.SourceDocument, error) {
	u := fmt.Sprintf("%s/documents/%s/batch", g.baseURL, url.PathEscape(docType))

	body, err := json.Marshal(map[string]interface{}{"ids": docIDs})
	if err != nil {
		return nil, fmt.Errorf("encoding batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: document service unreachable: %v", port.ErrDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: document service returned %d", port.ErrDependency, resp.StatusCode)
	}

	var docs []*entity.SourceDocument
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: decoding batch response: %v", port.ErrDependency, err)
	}
	return docs, nil
}

// RecordOutcome reports the approval decision back to the owning service.
func (g *DocumentGateway) RecordOutcome(ctx context.Context, docType, docID string, outcome *entity.ApprovalOutcome) error {
	u := fmt.Sprintf("%s/documents/%s/%s/approval", g.baseURL, url.PathEscape(docType), url.PathEscape(docID))

	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building outcome request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: document service unreachable: %v", port.ErrDependency, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: document service returned %d recording outcome", port.ErrDependency, resp.StatusCode)
	}

	g.logger.Debug("Approval outcome recorded on source document",
		zap.String("document_id", docID), zap.String("status", outcome.Status))
	return nil
}

// Verify interface compliance
var _ port.DocumentGateway = (*DocumentGateway)(nil)
