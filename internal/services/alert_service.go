package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	pkglogger "github.com/stagewerk/lockbox/pkg/logger"
)

// AWSSESAlertService emails the security team when an account transitions
// into lockout. Delivery is best-effort; the lockout stands whether or not
// the mail goes out.
type AWSSESAlertService struct {
	sesClient       *ses.Client
	fromAddress     string
	securityAddress string
	logger          *slog.Logger
}

// NewAWSSESAlertService creates a new AWS SES alert service
func NewAWSSESAlertService(region, fromAddress, securityAddress string, logger *slog.Logger) (*AWSSESAlertService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESAlertService{
		sesClient:       ses.NewFromConfig(cfg),
		fromAddress:     fromAddress,
		securityAddress: securityAddress,
		logger:          logger,
	}, nil
}

// NotifyLockout sends a lockout alert for the given identity
func (s *AWSSESAlertService) NotifyLockout(ctx context.Context, identity, ipAddress string, until time.Time) error {
	subject := "Account lockout triggered"
	body := fmt.Sprintf(
		"Account %s was locked after repeated failed login attempts.\n\n"+
			"Last attempt from IP: %s\n"+
			"Locked until: %s\n\n"+
			"If this pattern repeats, consider investigating the source address.",
		identity, ipAddress, until.UTC().Format(time.RFC3339),
	)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.securityAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send lockout alert: %w", err)
	}

	s.logger.Info("lockout alert sent",
		slog.String("identity", pkglogger.SanitizedEmail(identity)),
		slog.String("to", s.securityAddress),
	)
	return nil
}
