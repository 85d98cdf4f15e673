package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
	"golang.org/x/sync/errgroup"

	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxConcurrentSends = 8

var emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ContentCreatedEmail describes a freshly generated post.
type ContentCreatedEmail struct {
	Subject          string
	OrganizationName string
	OrganizationSlug string
	ScheduleName     string
	ContentTitle     string
	ContentType      string
	ContentLink      string
}

// Delivery is the outcome for one recipient.
type Delivery struct {
	Recipient string `json:"recipient"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EmailSender is the part of the Resend client the notifier uses.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type Notifier struct {
	sender  EmailSender
	from    string
	replyTo string
	logger  *slog.Logger
}

// NewNotifier returns a notifier backed by Resend. Without an API key the
// notifier is disabled and sends nothing.
func NewNotifier(cfg config.EmailConfig, log *slog.Logger) *Notifier {
	var sender EmailSender
	if cfg.Enabled() {
		sender = resend.NewClient(cfg.ResendAPIKey).Emails
	}
	return NewNotifierWithSender(sender, cfg.From, cfg.ReplyTo, log)
}

func NewNotifierWithSender(sender EmailSender, from, replyTo string, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{sender: sender, from: from, replyTo: replyTo, logger: log}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// SendContentCreated mails every recipient concurrently and waits for all
// of them. Failures are logged per recipient and reported in the result.
func (n *Notifier) SendContentCreated(ctx context.Context, recipients []string, email ContentCreatedEmail) ([]Delivery, error) {
	if !n.Enabled() {
		return nil, nil
	}

	body, err := renderContentCreated(email)
	if err != nil {
		return nil, err
	}

	deliveries := make([]Delivery, len(recipients))
	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)
	for i, recipient := range recipients {
		g.Go(func() error {
			deliveries[i] = n.send(ctx, recipient, email.Subject, body)
			return nil
		})
	}
	_ = g.Wait()
	return deliveries, nil
}

func (n *Notifier) send(ctx context.Context, recipient, subject, html string) Delivery {
	d := Delivery{Recipient: recipient}

	resp, err := n.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{recipient},
		Subject: subject,
		Html:    html,
		ReplyTo: n.replyTo,
	})
	if err == nil && (resp == nil || resp.Id == "") {
		err = errors.New("resend returned no message id")
	}
	metrics.RecordNotification(err)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to send content notification",
			"recipient", recipient,
			"error", err)
		d.Error = err.Error()
		return d
	}

	d.MessageID = resp.Id
	return d
}

func renderContentCreated(email ContentCreatedEmail) (string, error) {
	data := struct {
		ContentCreatedEmail
		ContentKind string
	}{email, contentKind(email.ContentType)}

	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, "content_created.html", data); err != nil {
		return "", fmt.Errorf("render content created email: %w", err)
	}
	return buf.String(), nil
}

func contentKind(outputType string) string {
	switch outputType {
	case "changelog":
		return "changelog"
	case "linkedin_post":
		return "LinkedIn post"
	default:
		return strings.ReplaceAll(outputType, "_", " ")
	}
}
