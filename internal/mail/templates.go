package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

var (
	magicLinkTmpl = template.Must(template.New("magic_link").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<h2>Sign in to {{.Product}}</h2>
<p>Click the link below to sign in as {{.Email}}. This link will expire in {{.Expiry}}.</p>
<p><a href="{{.Link}}">Sign in</a></p>
<p>Or copy this URL into your browser:</p>
<p>{{.Link}}</p>
<p>If you didn't request this email, you can safely ignore it.</p>
</body>
</html>`))

	otpTmpl = template.Must(template.New("otp").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<h2>Your verification code</h2>
<p>Enter this code to sign in. This code will expire in {{.Expiry}}.</p>
<p style="font-size: 32px; letter-spacing: 8px;"><strong>{{.Code}}</strong></p>
<p>Didn't request this code?</p>
<p>If you didn't request this verification code, you can safely ignore this email.</p>
</body>
</html>`))

	welcomeTmpl = template.Must(template.New("welcome").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<h1>Welcome to {{.Product}}!</h1>
<p>Hi {{.Name}},</p>
<p>Your email has been verified and your account is ready.</p>
<p><a href="{{.Link}}">Get started</a></p>
</body>
</html>`))
)

// Templates renders the transactional messages.
type Templates struct {
	Product     string
	FrontendURL string
	// Expiry is shown to the user as the credential lifetime.
	Expiry time.Duration
}

// MagicLinkURL builds FRONTEND_URL/auth/verify?token=<token>.
func (t Templates) MagicLinkURL(token string) string {
	return strings.TrimRight(t.FrontendURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
}

// MagicLink renders the sign-in link message for email.
func (t Templates) MagicLink(email, token string) (Message, error) {
	html, err := render(magicLinkTmpl, map[string]any{
		"Product": t.Product,
		"Email":   email,
		"Link":    t.MagicLinkURL(token),
		"Expiry":  humanize(t.Expiry),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: email, Subject: "Your Magic Link to Sign In", HTML: html}, nil
}

// OTP renders the one-time code message.
func (t Templates) OTP(email, code string) (Message, error) {
	html, err := render(otpTmpl, map[string]any{
		"Code":   code,
		"Expiry": humanize(t.Expiry),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: email, Subject: "Your One-Time Password", HTML: html}, nil
}

// Welcome renders the first-login message. name may be empty.
func (t Templates) Welcome(email, name string) (Message, error) {
	if name == "" {
		name = "there"
	}
	html, err := render(welcomeTmpl, map[string]any{
		"Product": t.Product,
		"Name":    name,
		"Link":    strings.TrimRight(t.FrontendURL, "/"),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: email, Subject: fmt.Sprintf("Welcome to %s!", t.Product), HTML: html}, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func humanize(d time.Duration) string {
	if d <= 0 {
		d = 5 * time.Minute
	}
	if m := int(d / time.Minute); m > 0 && d%time.Minute == 0 {
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
