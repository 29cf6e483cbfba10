package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Dispatcher renders account emails and sends them with a fixed-backoff retry.
type Dispatcher struct {
	sender     Sender
	maxRetries uint64
	backoff    time.Duration
	logger     *zap.SugaredLogger
}

func NewDispatcher(sender Sender, cfg Config, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return &Dispatcher{sender: sender, maxRetries: cfg.MaxRetries, backoff: backoff, logger: logger}
}

// deliver makes one attempt plus up to maxRetries retries. It blocks the
// caller for at most maxRetries*backoff plus send time, less if ctx ends.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	b := retry.WithMaxRetries(d.maxRetries, retry.NewConstant(d.backoff))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warnw("email send failed", "to", msg.To, "category", msg.Category, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// SendOTP delivers a login code.
func (d *Dispatcher) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	minutes := int(ttl / time.Minute)
	msg := Message{
		To:       email,
		Subject:  "Your login code",
		HTML:     fmt.Sprintf(otpHTML, code, minutes),
		Text:     fmt.Sprintf("Your login code is: %s. This code will expire in %d minutes.", code, minutes),
		Category: "otp",
	}
	if err := d.deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver otp: %w", err)
	}
	return nil
}

// SendWelcome greets a newly registered account.
func (d *Dispatcher) SendWelcome(ctx context.Context, email, firstName string) error {
	msg := Message{
		To:       email,
		ToName:   firstName,
		Subject:  "Welcome to Notes!",
		HTML:     fmt.Sprintf(welcomeHTML, html.EscapeString(firstName)),
		Text:     fmt.Sprintf("Welcome %s! Your account has been successfully created.", firstName),
		Category: "welcome",
	}
	if err := d.deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver welcome: %w", err)
	}
	return nil
}

const otpHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Your login code</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>Your login code</h2>
		<p>Use the code below to continue signing in:</p>
		<p style="font-size: 32px; letter-spacing: 8px; font-weight: bold; margin: 30px 0;">%s</p>
		<p>This code will expire in %d minutes.</p>
		<p>If you didn't request this code, you can safely ignore this email.</p>
		<hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
		<p style="font-size: 12px; color: #666;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`

const welcomeHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Welcome</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>Welcome, %s!</h2>
		<p>Your account has been successfully created. Sign in any time with a code sent to this address.</p>
		<hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">
		<p style="font-size: 12px; color: #666;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`
