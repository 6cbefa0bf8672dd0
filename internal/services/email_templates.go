package services

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"
)

const appName = "LeafCheck"

// ResetLink builds the client-facing password reset URL for token.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password/" + url.PathEscape(token)
}

func minutesUntil(expiresAt, now time.Time) int {
	minutes := int(expiresAt.Sub(now).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

const emailLayout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #e8f5e9; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 28px; letter-spacing: 6px; font-weight: bold; text-align: center; margin: 20px 0; }
        .button { display: inline-block; background-color: #2e7d32; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>%s</h1></div>
        %s
        <div class="footer"><p>This is an automated message from %s. Please do not reply to this email.</p></div>
    </div>
</body>
</html>
`

// verificationEmail carries the registration OTP
func verificationEmail(to, username, code string, expiresAt, now time.Time) Message {
	minutes := minutesUntil(expiresAt, now)

	content := fmt.Sprintf(`<p>Hi %s,</p>
        <p>Use this code to verify your email address:</p>
        <div class="code">%s</div>
        <p>The code expires in %d minutes. If you did not create an account, you can ignore this email.</p>`,
		html.EscapeString(username), html.EscapeString(code), minutes)

	text := fmt.Sprintf(`Hi %s,

Use this code to verify your email address: %s

The code expires in %d minutes. If you did not create an account, you can ignore this email.
`, username, code, minutes)

	return Message{
		To:       to,
		Subject:  "Verify your email - " + appName,
		TextBody: text,
		HTMLBody: fmt.Sprintf(emailLayout, "Verify Your Email", content, appName),
	}
}

// passwordResetEmail carries the reset link
func passwordResetEmail(to, link string, expiresAt, now time.Time) Message {
	minutes := minutesUntil(expiresAt, now)
	escaped := html.EscapeString(link)

	content := fmt.Sprintf(`<p>You are receiving this email because you (or someone else) requested a password reset.</p>
        <p><a href="%s" class="button">Reset Password</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>The link expires in %d minutes. If you did not request this, ignore this email and your password will remain unchanged.</p>`,
		escaped, escaped, minutes)

	text := fmt.Sprintf(`You are receiving this email because you (or someone else) requested a password reset.

Open this link to choose a new password:

%s

The link expires in %d minutes. If you did not request this, ignore this email and your password will remain unchanged.
`, link, minutes)

	return Message{
		To:       to,
		Subject:  "Password reset request - " + appName,
		TextBody: text,
		HTMLBody: fmt.Sprintf(emailLayout, "Password Reset", content, appName),
	}
}
