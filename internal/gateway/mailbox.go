// internal/gateway/mailbox.go
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

// MailboxClient submits rendered letters to the national business-mailbox
// gateway. It implements dispatch.BusinessMailbox.
type MailboxClient struct {
	http    *commonhttp.Client
	baseURL string
}

func NewMailboxClient(baseURL string, timeout time.Duration) *MailboxClient {
	return &MailboxClient{
		http:    commonhttp.NewClient(timeout),
		baseURL: baseURL,
	}
}

type mailboxRequest struct {
	OrgNumber string `json:"orgNumber"`
	Title     string `json:"title"`
	Kind      string `json:"kind"`
	MeetingID int64  `json:"meetingId"`
	PDF       string `json:"pdf"`
}

// Send submits one PDF letter to the organisation's mailbox. The submission
// is synchronous; a failure here fails the calling use case.
func (c *MailboxClient) Send(ctx context.Context, orgNumber string, pdf []byte, meta dispatch.LetterMetadata) error {
	body, err := json.Marshal(mailboxRequest{
		OrgNumber: orgNumber,
		Title:     meta.Title,
		Kind:      string(meta.Kind),
		MeetingID: meta.MeetingID,
		PDF:       base64.StdEncoding.EncodeToString(pdf),
	})
	if err != nil {
		return fmt.Errorf("marshal mailbox request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/letters", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domainerrors.NewUpstreamUnavailableError("business-mailbox", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domainerrors.NewUpstreamUnavailableError("business-mailbox",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
