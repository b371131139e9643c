package servicebus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

// NewServiceBus connects to a namespace (e.g. planner.servicebus.windows.net) with the default Azure credential chain.
func NewServiceBus(namespace string) (*azservicebus.Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("service bus namespace is empty")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load azure credential: %w", err)
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// RefreshSender puts every finished refresh run on a Service Bus queue.
type RefreshSender struct {
	newSender func() (messageSender, error)
}

func NewRefreshSender(client *azservicebus.Client, queue string) *RefreshSender {
	return &RefreshSender{newSender: func() (messageSender, error) {
		if client == nil {
			return nil, fmt.Errorf("service bus client is nil")
		}
		return client.NewSender(queue, nil)
	}}
}

func (s *RefreshSender) NotifyRefresh(ctx context.Context, event model.RefreshEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh event: %w", err)
	}
	sender, err := s.newSender()
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender messageSender, ctx context.Context) {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.WithoutCancel(ctx))

	contentType := "application/json"
	subject := string(event.Result)
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		MessageID:   &event.RunID,
		ApplicationProperties: map[string]interface{}{
			"trigger": event.Trigger,
		},
	}
	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to send refresh event: %w", err)
	}
	return nil
}
