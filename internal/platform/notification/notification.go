// Package notification delivers one-time codes to patients by SMS.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/arsmn/go-smsir/smsir"
	"github.com/rs/zerolog"
)

// OTPSender delivers a verification code to an E.164 phone number.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

type SMSConfig struct {
	Enabled    bool
	APIKey     string
	SecretKey  string
	TemplateID string
}

// NewFromConfig returns an sms.ir sender when SMS is enabled and a logging
// sender otherwise.
func NewFromConfig(cfg SMSConfig, logger zerolog.Logger) (OTPSender, error) {
	if !cfg.Enabled {
		return NewLogSender(logger, NewTemplateEngine()), nil
	}
	if cfg.APIKey == "" {
		return nil, errors.New("sms.ir API key required when SMS enabled")
	}
	if cfg.TemplateID == "" {
		return nil, errors.New("sms.ir template id required when SMS enabled")
	}
	return NewSMSIRSender(cfg.APIKey, cfg.SecretKey, cfg.TemplateID), nil
}

// SMSIRSender sends codes through an sms.ir verification template. The
// template must declare a "code" parameter.
type SMSIRSender struct {
	client     *smsir.Client
	templateID string
}

func NewSMSIRSender(apiKey, secretKey, templateID string) *SMSIRSender {
	return &SMSIRSender{
		client:     smsir.NewClient().WithAuthentication(apiKey, secretKey),
		templateID: templateID,
	}
}

func (s *SMSIRSender) SendOTP(ctx context.Context, phone, code string) error {
	if phone == "" || code == "" {
		return errors.New("phone number and code are required")
	}
	req := &smsir.UltraFastSendRequest{
		Mobile:     phone,
		TemplateID: s.templateID,
		Parameters: []smsir.UltraFastParameter{
			{Key: "code", Value: code},
		},
	}
	if _, err := s.client.Verification.UltraFastSend(ctx, req); err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}
	return nil
}

// LogSender writes the rendered message to the log instead of sending it.
type LogSender struct {
	logger    zerolog.Logger
	templates *TemplateEngine
}

func NewLogSender(logger zerolog.Logger, templates *TemplateEngine) *LogSender {
	return &LogSender{logger: logger, templates: templates}
}

func (s *LogSender) SendOTP(_ context.Context, phone, code string) error {
	body, err := s.templates.Render(TemplateConsentOTP, map[string]string{"code": code})
	if err != nil {
		return err
	}
	s.logger.Debug().Str("to", phone).Str("body", body).Msg("sms delivery disabled, message not sent")
	return nil
}

const TemplateConsentOTP = "consent-otp"

// TemplateEngine renders {{key}} placeholders in message bodies.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]string
}

func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		templates: map[string]string{
			TemplateConsentOTP: "Your consent verification code is {{code}}. It expires in a few minutes. Do not share it.",
		},
	}
}

// RegisterTemplate adds or replaces a template body.
func (e *TemplateEngine) RegisterTemplate(id, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[id] = body
}

// Render substitutes data into the template. Unknown placeholders are left as-is.
func (e *TemplateEngine) Render(id string, data map[string]string) (string, error) {
	e.mu.RLock()
	body, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", id)
	}
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body, nil
}

// OTPCall records a single call to SendOTP.
type OTPCall struct {
	Phone string
	Code  string
}

// MockSender is a test double for OTPSender.
type MockSender struct {
	mu    sync.Mutex
	calls []OTPCall
	Err   error
}

func (m *MockSender) SendOTP(_ context.Context, phone, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, OTPCall{Phone: phone, Code: code})
	return m.Err
}

// Calls returns a copy of recorded calls.
func (m *MockSender) Calls() []OTPCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OTPCall, len(m.calls))
	copy(out, m.calls)
	return out
}
