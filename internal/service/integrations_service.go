package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/events"
)

// IntegrationsService forwards domain events to outbound channels. Email and
// webhook delivery are stubs that log what would be sent; the in-app
// notification path does not go through here.
type IntegrationsService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewIntegrationsService creates the service.
func NewIntegrationsService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *IntegrationsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrationsService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *IntegrationsService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventComplaintCreated, n.handleComplaintCreated)
	n.dispatcher.Subscribe(events.EventComplaintStatusChanged, n.handleComplaintStatusChanged)
	n.dispatcher.Subscribe(events.EventComplaintAssigned, n.handleComplaintAssigned)
	n.dispatcher.Subscribe(events.EventComplaintCommentAdded, n.handleComplaintCommentAdded)
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleSLAAlert)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLAAlert)
}

func (n *IntegrationsService) handleComplaintCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintCreated", zap.String("complaint_id", event.ComplaintID), zap.Any("payload", event.Payload))
	n.sendEmailStub(ctx, event)
	n.sendWebhookStub(ctx, event)
	return nil
}

func (n *IntegrationsService) handleComplaintStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintStatusChanged", zap.String("complaint_id", event.ComplaintID), zap.Any("payload", event.Payload))
	n.sendWebhookStub(ctx, event)
	return nil
}

func (n *IntegrationsService) handleComplaintAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintAssigned", zap.String("complaint_id", event.ComplaintID), zap.Any("payload", event.Payload))
	n.sendWebhookStub(ctx, event)
	return nil
}

func (n *IntegrationsService) handleComplaintCommentAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("ComplaintCommentAdded", zap.String("complaint_id", event.ComplaintID), zap.Any("payload", event.Payload))
	n.sendEmailStub(ctx, event)
	return nil
}

func (n *IntegrationsService) handleSLAAlert(ctx context.Context, event events.Event) error {
	n.logger.Info("SLAAlert", zap.String("complaint_id", event.ComplaintID), zap.String("event_type", string(event.Type)), zap.Any("payload", event.Payload))
	n.sendEmailStub(ctx, event)
	n.sendWebhookStub(ctx, event)
	return nil
}

func (n *IntegrationsService) sendEmailStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("complaint_id", event.ComplaintID),
		zap.String("event_type", string(event.Type)))
}

func (n *IntegrationsService) sendWebhookStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("complaint_id", event.ComplaintID),
		zap.String("event_type", string(event.Type)))
}
