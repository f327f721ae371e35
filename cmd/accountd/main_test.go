package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/accountcore/internal/config"
	"github.com/MrEthical07/accountcore/notify"
)

func sendThroughLog(t *testing.T, cfg *config.Config) string {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sender := newSender(cfg, logger)
	require.IsType(t, notify.LogSender{}, sender)
	require.NoError(t, sender.Send(context.Background(), notify.Message{
		Kind:    notify.KindVerificationCode,
		To:      "a@example.com",
		Subject: "Your code",
		Body:    "Your verification code is: 482913",
	}))
	return buf.String()
}

func TestNewSenderHidesBodiesByDefault(t *testing.T) {
	cfg := config.Default()

	out := sendThroughLog(t, &cfg)
	assert.Contains(t, out, "a@example.com")
	assert.NotContains(t, out, "482913")
}

func TestNewSenderLogsBodiesWhenAsked(t *testing.T) {
	cfg := config.Default()
	cfg.Log.NotificationBodies = true

	out := sendThroughLog(t, &cfg)
	assert.Contains(t, out, "482913")
	assert.Contains(t, out, "notification bodies are logged")
}

func TestNewSenderUsesSMTPWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.From = "noreply@example.com"

	_, isLog := newSender(&cfg, slog.New(slog.DiscardHandler)).(notify.LogSender)
	assert.False(t, isLog)
}
