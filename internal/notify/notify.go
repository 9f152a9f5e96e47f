// Package notify mails the run summary through SendGrid.
package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nadmax/img2md/internal/task"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendEndpoint = "/v3/mail/send"

type Options struct {
	APIKey      string
	Host        string
	FromName    string
	FromAddress string
	To          []string
}

type Notifier struct {
	apiKey string
	host   string
	from   *mail.Email
	to     []string
}

func NewNotifier(opts Options) (*Notifier, error) {
	if opts.APIKey == "" {
		return nil, errors.New("missing sendgrid api key")
	}
	if opts.FromAddress == "" {
		return nil, errors.New("missing sender address")
	}
	if len(opts.To) == 0 {
		return nil, errors.New("missing recipients")
	}

	return &Notifier{
		apiKey: opts.APIKey,
		host:   opts.Host,
		from:   mail.NewEmail(opts.FromName, opts.FromAddress),
		to:     opts.To,
	}, nil
}

func Subject(s *task.Summary) string {
	if s.Failed == 0 {
		return fmt.Sprintf("img2md: %d/%d images converted", s.Succeeded, s.Total)
	}
	return fmt.Sprintf("img2md: %d/%d images converted, %d failed", s.Succeeded, s.Total, s.Failed)
}

func (n *Notifier) message(s *task.Summary, outputLocation string) (*mail.SGMailV3, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "Run %s\n", s.RunID)
	if err := s.Report(&body, outputLocation); err != nil {
		return nil, err
	}

	m := mail.NewV3Mail()
	m.SetFrom(n.from)
	m.Subject = Subject(s)

	p := mail.NewPersonalization()
	for _, addr := range n.to {
		p.AddTos(mail.NewEmail("", addr))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", body.String()))
	return m, nil
}

// Send mails the summary to every recipient in a single message.
func (n *Notifier) Send(s *task.Summary, outputLocation string) error {
	m, err := n.message(s, outputLocation)
	if err != nil {
		return fmt.Errorf("build summary email: %w", err)
	}

	request := sendgrid.GetRequest(n.apiKey, sendEndpoint, n.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(m)

	response, err := sendgrid.MakeRequest(request)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	return nil
}
