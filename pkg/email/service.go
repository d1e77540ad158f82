package email

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	baseURL     string
	sendGridKey string
	useSendGrid bool
}

// NewService creates a new email service.
// If sendGridAPIKey is provided, emails are sent via SendGrid; otherwise
// they are logged to the console (development mode).
func NewService(fromEmail, fromName, baseURL, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		baseURL:     baseURL,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
	}
}

// ShareURL builds the registration link carrying a referral code
func (s *Service) ShareURL(code string) string {
	return fmt.Sprintf("%s/register?ref=%s", s.baseURL, code)
}

// SendReferralInvite sends a referral invitation carrying the referrer's
// share link. Returns the invite tracking ID.
func (s *Service) SendReferralInvite(toEmail, referrerName, code string) (string, error) {
	inviteID := uuid.NewString()
	shareURL := s.ShareURL(code)

	subject := fmt.Sprintf("%s invited you to HiveBridge", referrerName)
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>You've been invited to HiveBridge!</h2>
			<p>Hi,</p>
			<p>%s is using HiveBridge and thinks you'd like it too. Sign up with referral code <strong>%s</strong> and you both benefit:</p>
			<p><a href="%s" style="background-color: #4CAF50; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Join HiveBridge</a></p>
			<p>Or copy and paste this link into your browser:</p>
			<p><a href="%s">%s</a></p>
			<p><strong>This invitation expires in 30 days.</strong></p>
			<p>If you weren't expecting this, you can safely ignore this email.</p>
			<p>Thanks,<br>The HiveBridge Team</p>
		</body>
		</html>
	`, referrerName, code, shareURL, shareURL, shareURL)

	plainText := fmt.Sprintf(`
Hi,

%s is using HiveBridge and thinks you'd like it too. Sign up with
referral code %s:

%s

This invitation expires in 30 days.

If you weren't expecting this, you can safely ignore this email.

Thanks,
The HiveBridge Team
	`, referrerName, code, shareURL)

	if s.useSendGrid {
		if err := s.sendViaSendGrid(toEmail, subject, body, plainText, inviteID); err != nil {
			return "", err
		}
		return inviteID, nil
	}

	// Development mode: log to console
	log.Printf("📧 [EMAIL] Referral invite to: %s", toEmail)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   Subject: %s", subject)
	log.Printf("   Invite ID: %s", inviteID)
	log.Printf("   Share URL: %s", shareURL)

	return inviteID, nil
}

func (s *Service) sendViaSendGrid(toEmail, subject, htmlBody, plainText, inviteID string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainText, htmlBody)
	message.SetCustomArg("invite_id", inviteID)

	client := sendgrid.NewSendClient(s.sendGridKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email: status %d", response.StatusCode)
	}

	return nil
}
