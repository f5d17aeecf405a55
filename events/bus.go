package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Publisher accepts domain events for asynchronous at-least-once delivery.
// Publish returns once the transport has durably accepted the event; events
// sharing an ordering key on the same topic are delivered to each subscription
// in publish order, everything else is unordered. There is no transactional
// publish: consecutive calls are independent.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, orderingKey string) error
}

// QueueBus is a Publisher backed by one storage queue per registered topic.
type QueueBus struct {
	queues map[string]*azqueue.QueueClient
}

// NewQueueBus creates queue clients for every registered topic.
func NewQueueBus(connStr string) (*QueueBus, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	queues := make(map[string]*azqueue.QueueClient, len(Topics()))
	for _, topic := range Topics() {
		qc, err := azqueue.NewQueueClientFromConnectionString(connStr, topic, &opts)
		if err != nil {
			return nil, fmt.Errorf("queue client for %s: %w", topic, err)
		}
		queues[topic] = qc
	}
	return &QueueBus{queues: queues}, nil
}

// Publish marshals the payload and enqueues it on the topic queue.
func (b *QueueBus) Publish(ctx context.Context, topic string, payload any, orderingKey string) error {
	queue, ok := b.queues[topic]
	if !ok {
		return fmt.Errorf("unknown topic %s", topic)
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	msg := PushMessage{
		ID:          uuid.NewString(),
		Data:        data,
		OrderingKey: orderingKey,
	}
	body, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := queue.EnqueueMessage(ctx, string(body), nil); err != nil {
		return fmt.Errorf("enqueue on %s: %w", topic, err)
	}
	return nil
}
