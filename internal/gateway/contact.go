// internal/gateway/contact.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"

	commonaws "dialogmote-coordinator/internal/common/aws"
	domainerrors "dialogmote-coordinator/internal/common/errors"
	commonhttp "dialogmote-coordinator/internal/common/http"
	"dialogmote-coordinator/internal/dispatch"
	"dialogmote-coordinator/internal/models"
)

// ContactClient resolves the employer's active contact person for a worker.
// It implements dispatch.ContactLookup.
type ContactClient struct {
	http    *commonhttp.Client
	baseURL string
}

func NewContactClient(baseURL string, timeout time.Duration) *ContactClient {
	return &ContactClient{
		http:    commonhttp.NewClient(timeout),
		baseURL: baseURL,
	}
}

type contactResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ActiveContact returns the designated contact person, or nil when the
// employer has none registered for this worker.
func (c *ContactClient) ActiveContact(ctx context.Context, personID, orgNumber string) (*dispatch.Contact, error) {
	url := fmt.Sprintf("%s/api/v1/contacts/%s", c.baseURL, orgNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Person-Id", personID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domainerrors.NewUpstreamUnavailableError("contact-lookup", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, domainerrors.NewUpstreamUnavailableError("contact-lookup",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out contactResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domainerrors.NewUpstreamUnavailableError("contact-lookup", err)
	}
	if out.Email == "" {
		return nil, nil
	}
	return &dispatch.Contact{Name: out.Name, Email: out.Email}, nil
}

// SESContactNotifier emails the employer's contact person that a new letter
// is available. It implements dispatch.ContactNotifier.
type SESContactNotifier struct {
	ses       *commonaws.SESClient
	fromEmail string
}

func NewSESContactNotifier(client *commonaws.SESClient, fromEmail string) *SESContactNotifier {
	return &SESContactNotifier{ses: client, fromEmail: fromEmail}
}

var contactSubjects = map[models.NotificationKind]string{
	models.KindSummoned:    "Innkalling til dialogmøte",
	models.KindCancelled:   "Avlysning av dialogmøte",
	models.KindRescheduled: "Endring av dialogmøte",
	models.KindMinutes:     "Referat fra dialogmøte",
}

func (n *SESContactNotifier) NotifyContact(ctx context.Context, contact dispatch.Contact, kind models.NotificationKind, meetingUUID string) error {
	subject, ok := contactSubjects[kind]
	if !ok {
		subject = "Nytt brev om dialogmøte"
	}

	body := fmt.Sprintf(
		"Hei %s,\n\nDet er sendt et nytt brev om dialogmøte (%s) til virksomheten.\nLogg inn for å lese brevet.\n",
		contact.Name, meetingUUID,
	)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: awssdk.String(n.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{contact.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify contact: %w", err)
	}
	return nil
}
