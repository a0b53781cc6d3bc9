// internal/gateway/distribution.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonhttp "dialogmote-coordinator/internal/common/http"
	"dialogmote-coordinator/internal/distribution"
)

// DistributionClient submits archived journal posts to the physical
// distribution service. It implements distribution.Gateway.
type DistributionClient struct {
	http    *commonhttp.Client
	baseURL string
}

func NewDistributionClient(baseURL string, timeout time.Duration) *DistributionClient {
	return &DistributionClient{
		http:    commonhttp.NewClient(timeout),
		baseURL: baseURL,
	}
}

type distributeRequest struct {
	JournalpostID string `json:"journalpostId"`
	RecipientType string `json:"recipientType"`
	RecipientRef  string `json:"recipientRef"`
}

// Distribute requests physical distribution of one journal post. HTTP 410
// means the recipient is permanently unreachable and maps to
// distribution.ErrPermanentlyUnavailable.
func (c *DistributionClient) Distribute(ctx context.Context, journalpostID string, recipient distribution.Recipient) error {
	body, err := json.Marshal(distributeRequest{
		JournalpostID: journalpostID,
		RecipientType: string(recipient.Type),
		RecipientRef:  recipient.Ref,
	})
	if err != nil {
		return fmt.Errorf("marshal distribute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/distribute", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("distribution request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusGone:
		return distribution.ErrPermanentlyUnavailable
	default:
		return fmt.Errorf("distribution of %s failed with status %d", journalpostID, resp.StatusCode)
	}
}
