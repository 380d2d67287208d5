package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"babyofficehours/internal/models"
	"babyofficehours/internal/validation"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidEmail = errors.New("invalid email address")

// emailSender is the part of the SES client the service uses
type emailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService shares invite codes by email through Amazon SES
type EmailService struct {
	client     emailSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
}

// NewEmailService creates a new email service. Without a sender address the
// service is disabled and every send is a logged no-op.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, debug bool) (*EmailService, error) {
	if fromEmail == "" {
		log.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, debug: debug}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.WithFields(log.Fields{
		"from":   fromEmail,
		"region": awsRegion,
	}).Info("Email service enabled")

	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL, debug), nil
}

func newEmailService(client emailSender, fromEmail, fromName, appBaseURL string, debug bool) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		debug:      debug,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendInviteEmail sends the shareable code of an invite to toEmail
func (s *EmailService) SendInviteEmail(ctx context.Context, toEmail, inviterName, babyName string, invite models.Invite) error {
	if err := validation.ValidateEmail(toEmail); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmail, err)
	}
	toEmail = strings.TrimSpace(toEmail)

	if !s.enabled {
		log.WithField("invite_id", invite.ID).Info("Skipping invite email (service disabled)")
		return nil
	}

	code := models.CodePrefix(invite.ID)
	link := invite.ShareableCode()
	joinURL := fmt.Sprintf("%s/join?code=%s", s.appBaseURL, code)

	what := "follow"
	if invite.Role == models.RoleParent {
		what = "co-parent"
	}

	subject := fmt.Sprintf("%s invited you to %s %s on Baby Office Hours", inviterName, what, babyName)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h2>You're invited!</h2>
	<p>%s invited you to %s <strong>%s</strong> and see when they are free for a video call.</p>
	<p>Open this link on your phone: <a href="%s">%s</a></p>
	<p>Or enter the code <strong>%s</strong> in the app. You can also <a href="%s">join on the web</a>.</p>
</body>
</html>
`, html.EscapeString(inviterName), what, html.EscapeString(babyName), link, link, code, joinURL)

	textBody := fmt.Sprintf(`%s invited you to %s %s and see when they are free for a video call.

Open this link on your phone: %s
Or enter the code %s in the app.
Join on the web: %s

---
This is an automated email from Baby Office Hours. Please do not reply.
`, inviterName, what, babyName, link, code, joinURL)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	if s.debug {
		log.WithFields(log.Fields{
			"from":    fromAddress,
			"to":      toEmail,
			"subject": subject,
		}).Debug("Calling SES SendEmail")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	entry := log.WithFields(log.Fields{"to": toEmail, "subject": subject})
	if result.MessageId != nil {
		entry = entry.WithField("message_id", *result.MessageId)
	}
	entry.Info("Email sent successfully")
	return nil
}
