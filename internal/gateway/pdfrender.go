// internal/gateway/pdfrender.go
// Package gateway holds the HTTP clients for the external collaborators:
// PDF rendering, physical distribution, the business mailbox, digital
// reachability and employer contact lookup.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	commonhttp "dialogmote-coordinator/internal/common/http"
	"dialogmote-coordinator/internal/dispatch"
	"dialogmote-coordinator/internal/models"
)

// PDFRenderClient renders structured letter documents through the central
// rendering service.
type PDFRenderClient struct {
	http    *commonhttp.Client
	baseURL string
}

func NewPDFRenderClient(baseURL string, timeout time.Duration) *PDFRenderClient {
	return &PDFRenderClient{
		http:    commonhttp.NewClient(timeout),
		baseURL: baseURL,
	}
}

type renderRequest struct {
	Kind      string                    `json:"kind"`
	Recipient dispatch.RecipientContext `json:"recipient"`
	Document  json.RawMessage           `json:"document"`
}

// Render posts the document to the rendering service and returns PDF bytes.
func (c *PDFRenderClient) Render(ctx context.Context, kind models.NotificationKind, recipient dispatch.RecipientContext, document json.RawMessage) ([]byte, error) {
	body, err := json.Marshal(renderRequest{
		Kind:      string(kind),
		Recipient: recipient,
		Document:  document,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/render", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domainerrors.NewUpstreamUnavailableError("pdf-render", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domainerrors.NewUpstreamUnavailableError("pdf-render",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerrors.NewUpstreamUnavailableError("pdf-render", err)
	}
	return pdf, nil
}
