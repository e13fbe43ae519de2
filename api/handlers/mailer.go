package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wanderlist/wanderlist-api/invites"
	templates "github.com/wanderlist/wanderlist-api/templates/html"
)

// SendgridMailer delivers transactional email through sendgrid. It
// implements invites.EmailSender for the invite hook and is reused by
// the scheduler for digest sends.
type SendgridMailer struct {
	APIKey    string
	FromName  string
	FromEmail string
	BaseURL   string
}

// NewSendgridMailer returns a mailer with the Wanderlist sender identity
func NewSendgridMailer(apiKey, baseURL string) *SendgridMailer {
	return &SendgridMailer{
		APIKey:    apiKey,
		FromName:  "Wanderlist",
		FromEmail: "no-reply@wanderlist.app",
		BaseURL:   baseURL,
	}
}

// SendInviteEmail renders and sends the invite email
func (m *SendgridMailer) SendInviteEmail(ctx context.Context, email invites.InviteEmail) error {
	joinLink := strings.TrimRight(m.BaseURL, "/") + "/join?code=" + email.Code

	from := mail.NewEmail(m.FromName, m.FromEmail)
	to := mail.NewEmail(email.InviteeName, email.ToEmail)
	subject := fmt.Sprintf("%s invited you to Wanderlist", email.InviterName)
	plain := fmt.Sprintf("%s invited you to Wanderlist. Use invite code %s or follow %s", email.InviterName, email.Code, joinLink)
	html := templates.RenderInviteEmail(templates.InviteEmailData{
		InviterName:      email.InviterName,
		InviteeName:      email.InviteeName,
		Code:             email.Code,
		CustomMessage:    email.CustomMessage,
		ExperienceCount:  email.ExperienceCount,
		DestinationCount: email.DestinationCount,
		JoinLink:         joinLink,
	})

	msg := mail.NewSingleEmail(from, subject, to, plain, html)
	client := sendgrid.NewSendClient(m.APIKey)
	_, err := client.Send(msg)
	return err
}

// SendDigestEmail renders and sends the weekly creator digest
func (m *SendgridMailer) SendDigestEmail(ctx context.Context, toEmail string, data templates.DigestEmailData) error {
	from := mail.NewEmail(m.FromName, m.FromEmail)
	to := mail.NewEmail(data.CreatorName, toEmail)
	subject := "Your weekly Wanderlist digest"
	plain := fmt.Sprintf("You have %d active invites with %d redemptions this week.", data.ActiveInvites, data.TotalUses)
	html := templates.RenderWeeklyDigest(data)

	msg := mail.NewSingleEmail(from, subject, to, plain, html)
	client := sendgrid.NewSendClient(m.APIKey)
	_, err := client.Send(msg)
	return err
}
