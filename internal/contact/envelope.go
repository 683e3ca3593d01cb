package contact

import (
	"fmt"
	"strings"

	"github.com/portfolio-site/contactrelay/internal/mailer"
)

// BuildEnvelope derives the notification email from a normalized request.
// Sender and recipient come from the mail configuration; replies go straight
// to the submitter.
func BuildEnvelope(r Request) mailer.Envelope {
	phone := r.Phone
	if phone == "" {
		phone = "Not provided"
	}

	var text strings.Builder
	text.WriteString("New Contact Form Submission\n\n")
	fmt.Fprintf(&text, "Name: %s\n", r.Name)
	fmt.Fprintf(&text, "Email: %s\n", r.Email)
	fmt.Fprintf(&text, "Phone: %s\n\n", phone)
	text.WriteString("Message:\n")
	text.WriteString(r.Message)

	var html strings.Builder
	html.WriteString("<h2>New Contact Form Submission</h2>")
	fmt.Fprintf(&html, "<p><strong>Name:</strong> %s<br>", mailer.HTMLFromText(r.Name))
	fmt.Fprintf(&html, "<strong>Email:</strong> %s<br>", mailer.HTMLFromText(r.Email))
	fmt.Fprintf(&html, "<strong>Phone:</strong> %s</p>", mailer.HTMLFromText(phone))
	fmt.Fprintf(&html, "<p><strong>Message:</strong><br>%s</p>", mailer.HTMLFromText(r.Message))

	return mailer.Envelope{
		Subject: "New Contact Form Submission from " + strings.Join(strings.Fields(r.Name), " "),
		Text:    text.String(),
		HTML:    html.String(),
		ReplyTo: r.Email,
	}
}
