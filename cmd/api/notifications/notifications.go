package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/books-fulfillment/cmd/api/book"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const approvalSubject = "Book Approval Req - reg"

// Message is the body posted to the email dispatch endpoint.
type Message struct {
	Source      string   `json:"source"`
	ToAddresses []string `json:"to_addresses"`
	Subject     string   `json:"subject"`
	Text        string   `json:"text"`
	HTML        string   `json:"html"`
}

/*
Mailer hands approval requests to an HTTP email dispatch service.
When disabled every call is a no-op.
*/
type Mailer struct {
	baseURL    string
	enabled    bool
	sender     string
	recipients []string
	client     *http.Client
}

func NewMailer(enableNotifications bool, notificationsBaseURL, sender string, recipients []string, client *http.Client) *Mailer {
	if client == nil {
		client = &http.Client{}
	}
	return &Mailer{
		baseURL:    strings.TrimRight(notificationsBaseURL, "/"),
		enabled:    enableNotifications,
		sender:     sender,
		recipients: recipients,
		client:     client,
	}
}

/* Sends the approval request of a book recommended by a non-administrator to every recipient. */
func (m *Mailer) ApprovalRequested(ctx context.Context, b book.Book) error {
	if !m.enabled || len(m.recipients) == 0 {
		return nil
	}

	body, err := json.Marshal(approvalMessage(m.sender, m.recipients, b))
	if err != nil {
		return fmt.Errorf("encoding approval request for book %s: %w", b.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delivering approval request for book %s: %w", b.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering approval request for book %s: %w", b.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return book.NewErrNotificationFailed(resp.StatusCode)
	}
	return nil
}

func approvalMessage(sender string, recipients []string, b book.Book) Message {
	user := b.AddedBy
	if user == "" {
		user = "User"
	}

	return Message{
		Source:      sender,
		ToAddresses: recipients,
		Subject:     approvalSubject,
		Text:        fmt.Sprintf("%s has recommended the book %q by %s. The request is pending approval.", user, b.Title, b.Author),
		HTML: fmt.Sprintf(`<html><body><h2>Book Approval Request</h2><p>%s has recommended a book named "%s" by %s. Please review the pending approvals.</p><p>Thank you.</p></body></html>`,
			html.EscapeString(user), html.EscapeString(b.Title), html.EscapeString(b.Author)),
	}
}
