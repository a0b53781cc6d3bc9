// internal/gateway/clinical.go
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domainerrors "dialogmote-coordinator/internal/common/errors"
	commonhttp "dialogmote-coordinator/internal/common/http"
	"dialogmote-coordinator/internal/dispatch"
)

// ClinicalClient sends structured messages to a practitioner's clinical
// inbox through the health-network messaging bridge. It implements
// dispatch.ClinicalMessenger.
type ClinicalClient struct {
	http    *commonhttp.Client
	baseURL string
}

func NewClinicalClient(baseURL string, timeout time.Duration) *ClinicalClient {
	return &ClinicalClient{
		http:    commonhttp.NewClient(timeout),
		baseURL: baseURL,
	}
}

type clinicalRequest struct {
	PractitionerRef string          `json:"practitionerRef"`
	ConversationRef string          `json:"conversationRef"`
	Kind            string          `json:"kind"`
	Document        json.RawMessage `json:"document"`
	PDF             string          `json:"pdf,omitempty"`
	FreeText        string          `json:"freeText,omitempty"`
}

// Send submits one message. The bridge ack is the delivery guarantee the
// coordinator gets; transport beyond it belongs to the messaging network.
func (c *ClinicalClient) Send(ctx context.Context, msg dispatch.ClinicalMessage) error {
	body, err := json.Marshal(clinicalRequest{
		PractitionerRef: msg.PractitionerRef,
		ConversationRef: msg.NotificationUUID,
		Kind:            string(msg.Kind),
		Document:        msg.Document,
		PDF:             base64.StdEncoding.EncodeToString(msg.PDF),
		FreeText:        msg.FreeText,
	})
	if err != nil {
		return fmt.Errorf("marshal clinical message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domainerrors.NewUpstreamUnavailableError("clinical-messaging", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domainerrors.NewUpstreamUnavailableError("clinical-messaging",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
