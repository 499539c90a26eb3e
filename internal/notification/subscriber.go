package notification

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Subscriber pulls Gmail notifications from a Pub/Sub subscription.
type Subscriber struct {
	client     *pubsub.Client
	dispatcher *Dispatcher
	topicName  string
	subName    string
}

// NewSubscriber connects to Pub/Sub. The subscription is named after the
// topic with a "-sub" suffix.
func NewSubscriber(ctx context.Context, projectID, topicName, credentialsFile string, dispatcher *Dispatcher) (*Subscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Subscriber{
		client:     client,
		dispatcher: dispatcher,
		topicName:  topicName,
		subName:    topicName + "-sub",
	}, nil
}

// Run receives messages until ctx is done. Messages whose pass failed are
// nacked so Pub/Sub redelivers them.
func (s *Subscriber) Run(ctx context.Context) error {
	logrus.Infof("[PubSub] Starting subscriber on topic %s, subscription %s", s.topicName, s.subName)

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.dispatcher.DispatchRaw(ctx, msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	logrus.Info("[PubSub] Subscriber stopped")
	return nil
}

func (s *Subscriber) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.client.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.client.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", s.topicName)
	}

	sub, err = s.client.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	logrus.Infof("[PubSub] Created subscription %s", s.subName)
	return sub, nil
}

func (s *Subscriber) Close() error {
	return s.client.Close()
}
