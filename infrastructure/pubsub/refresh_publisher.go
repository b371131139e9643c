package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id is empty")
	}
	return pubsub.NewClient(ctx, projectID)
}

// RefreshPublisher publishes every finished refresh run to a Pub/Sub topic.
type RefreshPublisher struct {
	client  *pubsub.Client
	topicID string

	mu    sync.Mutex
	topic *pubsub.Topic
}

func NewRefreshPublisher(client *pubsub.Client, topicID string) *RefreshPublisher {
	return &RefreshPublisher{client: client, topicID: topicID}
}

func (p *RefreshPublisher) NotifyRefresh(ctx context.Context, event model.RefreshEvent) error {
	if p.client == nil {
		return fmt.Errorf("pubsub client is nil")
	}
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh event: %w", err)
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type":    event.Type,
			"result":  string(event.Result),
			"trigger": event.Trigger,
		},
	}
	serverID, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish refresh event: %w", err)
	}
	logger.GetLogger().WithField("server ID", serverID).WithField("run_id", event.RunID).Info("Refresh event published")
	return nil
}

// ensureTopic creates the topic on first use if it doesn't exist.
func (p *RefreshPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	topic := p.client.Topic(p.topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic: %w", err)
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topicID).Info("Topic doesn't exist - creating it")
		topic, err = p.client.CreateTopic(ctx, p.topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic: %w", err)
		}
	}
	p.topic = topic
	return topic, nil
}

// Stop flushes pending messages.
func (p *RefreshPublisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
}
