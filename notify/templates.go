package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// VerificationCodeMessage builds the message carrying a signup verification code.
func VerificationCodeMessage(appName, to, displayName, code string, ttl time.Duration) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greetingName(displayName, to))
	fmt.Fprintf(&b, "Your %s verification code is: %s\n\n", appName, code)
	fmt.Fprintf(&b, "The code expires in %s. If you did not sign up, ignore this message.\n", humanDuration(ttl))

	return Message{
		Kind:    KindVerificationCode,
		To:      to,
		Subject: fmt.Sprintf("Your %s verification code", appName),
		Body:    b.String(),
	}
}

// PasswordResetMessage builds the message carrying a password-reset link.
func PasswordResetMessage(appName, to, displayName, link string, ttl time.Duration) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greetingName(displayName, to))
	fmt.Fprintf(&b, "A password reset was requested for your %s account. Open the link below to choose a new password:\n\n", appName)
	fmt.Fprintf(&b, "%s\n\n", link)
	fmt.Fprintf(&b, "The link expires in %s and can be used once. If you did not request a reset, ignore this message.\n", humanDuration(ttl))

	return Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: fmt.Sprintf("Reset your %s password", appName),
		Body:    b.String(),
	}
}

// ResetLink joins baseURL and path and appends the token as the "token" query
// parameter.
func ResetLink(baseURL, path, token string) string {
	link := strings.TrimRight(baseURL, "/")
	if path != "" {
		link += "/" + strings.TrimLeft(path, "/")
	}
	return link + "?token=" + url.QueryEscape(token)
}

func greetingName(displayName, to string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	return to
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
