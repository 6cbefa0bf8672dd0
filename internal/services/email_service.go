package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"

	appconfig "github.com/BradenHooton/leafcheck/internal/config"
	pkglogger "github.com/BradenHooton/leafcheck/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	gomail "github.com/wneessen/go-mail"
)

// Message is one outbound email
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Notifier delivers messages to users. A returned error means the user was
// not told, and callers roll back whatever secret the message carried.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NewNotifier builds the notifier selected by cfg.Provider
func NewNotifier(ctx context.Context, cfg *appconfig.EmailConfig, logger *slog.Logger) (Notifier, error) {
	switch cfg.Provider {
	case appconfig.EmailProviderSES:
		return NewSESNotifier(ctx, cfg, logger)
	case appconfig.EmailProviderSMTP:
		return NewSMTPNotifier(cfg, logger), nil
	case appconfig.EmailProviderLog:
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

func formatFrom(name, address string) string {
	if name == "" {
		return address
	}
	return (&mail.Address{Name: name, Address: address}).String()
}

// sesAPI is the subset of the SES client SESNotifier uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends emails using AWS SES
type SESNotifier struct {
	client sesAPI
	from   string
	logger *slog.Logger
}

// NewSESNotifier loads AWS configuration and creates the SES client. Static
// credentials and an endpoint override are used when configured, which is
// how local SES emulators are reached.
func NewSESNotifier(ctx context.Context, cfg *appconfig.EmailConfig, logger *slog.Logger) (*SESNotifier, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})

	return newSESNotifierWithClient(client, formatFrom(cfg.FromName, cfg.FromAddress), logger), nil
}

func newSESNotifierWithClient(client sesAPI, from string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{client: client, from: from, logger: logger}
}

func (s *SESNotifier) Send(ctx context.Context, msg Message) error {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")},
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", pkglogger.SanitizedEmail(msg.To)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", pkglogger.SanitizedEmail(msg.To)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// SMTPNotifier sends emails through an SMTP relay. Port 465 uses implicit
// TLS; other ports upgrade with STARTTLS when the server offers it.
type SMTPNotifier struct {
	host     string
	port     int
	username string
	password string
	fromName string
	fromAddr string
	logger   *slog.Logger
}

func NewSMTPNotifier(cfg *appconfig.EmailConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		fromName: cfg.FromName,
		fromAddr: cfg.FromAddress,
		logger:   logger,
	}
}

func (s *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if err := s.send(ctx, msg); err != nil {
		s.logger.Error("failed to send email via SMTP",
			slog.String("email", pkglogger.SanitizedEmail(msg.To)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("email", pkglogger.SanitizedEmail(msg.To)))
	return nil
}

func (s *SMTPNotifier) send(ctx context.Context, msg Message) error {
	m, err := s.newMessage(msg)
	if err != nil {
		return err
	}

	client, err := s.newClient()
	if err != nil {
		return err
	}

	return client.DialAndSendWithContext(ctx, m)
}

// newClient builds a client per send; a go-mail client holds one connection
// and is not shared between concurrent requests.
func (s *SMTPNotifier) newClient() (*gomail.Client, error) {
	opts := []gomail.Option{gomail.WithPort(s.port)}
	if s.port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

// newMessage renders msg as a text body with an HTML alternative when one
// is present.
func (s *SMTPNotifier) newMessage(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	var err error
	if s.fromName != "" {
		err = m.FromFormat(s.fromName, s.fromAddr)
	} else {
		err = m.From(s.fromAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}

	return m, nil
}

// LogNotifier writes messages to the log instead of sending them. It is the
// development default when no mail transport is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.Info("email simulated, no transport configured",
		slog.String("email", pkglogger.SanitizedEmail(msg.To)),
		slog.String("subject", msg.Subject))
	return nil
}
