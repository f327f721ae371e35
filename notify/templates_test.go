package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerificationCodeMessage(t *testing.T) {
	msg := VerificationCodeMessage("JobBoard", "a@x.io", "Ana", "123456", 15*time.Minute)

	assert.Equal(t, KindVerificationCode, msg.Kind)
	assert.Equal(t, "a@x.io", msg.To)
	assert.Contains(t, msg.Subject, "JobBoard")
	assert.Contains(t, msg.Body, "Hello Ana")
	assert.Contains(t, msg.Body, "123456")
	assert.Contains(t, msg.Body, "15 minutes")
}

func TestPasswordResetMessageFallsBackToAddress(t *testing.T) {
	msg := PasswordResetMessage("JobBoard", "a@x.io", " ", "https://app/reset?token=t", time.Hour)

	assert.Equal(t, KindPasswordReset, msg.Kind)
	assert.Contains(t, msg.Body, "Hello a@x.io")
	assert.Contains(t, msg.Body, "https://app/reset?token=t")
	assert.Contains(t, msg.Body, "1 hour")
}

func TestResetLink(t *testing.T) {
	cases := []struct {
		base, path, token, want string
	}{
		{"https://jobs.example.com", "/reset-password", "abc", "https://jobs.example.com/reset-password?token=abc"},
		{"https://jobs.example.com/", "reset-password", "abc", "https://jobs.example.com/reset-password?token=abc"},
		{"https://jobs.example.com", "", "a+b=", "https://jobs.example.com?token=a%2Bb%3D"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResetLink(tc.base, tc.path, tc.token))
	}
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME("noreply@x.io", Message{To: "a@x.io", Subject: "Código", Body: "line1\nline2"}))

	assert.True(t, strings.HasPrefix(raw, "From: noreply@x.io\r\nTo: a@x.io\r\n"))
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline1\r\nline2"))
}
