// The delivery pump moves queued events to their push endpoints. One goroutine
// drains each topic queue; a message is deleted only after every subscription
// acknowledged it, and a failed message is retried in place before the loop
// advances, so later messages on a topic can never overtake a failed one.
package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/events"
	"github.com/silvesterwali/daily-gateway/workers"
)

const (
	pollInterval   = time.Second
	deliverTimeout = 30 * time.Second

	// How long a message stays invisible between in-place retries. The hold
	// is renewed on every retry, so it only needs to outlast one attempt.
	retryHoldSeconds = 60
)

// topicQueue is the slice of the queue client the pump uses.
type topicQueue interface {
	DequeueMessage(ctx context.Context, o *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
	UpdateMessage(ctx context.Context, messageID, popReceipt, content string, o *azqueue.UpdateMessageOptions) (azqueue.UpdateMessageResponse, error)
}

type pump struct {
	http      *http.Client
	baseURL   string
	logger    *log.Logger
	retryWait time.Duration
}

func main() {
	logger := log.New()
	logger.Info("delivery pump starting")

	connStr := os.Getenv("QUEUE_CONNECTION_STRING")
	baseURL := os.Getenv("PUSH_BASE_URL")
	if connStr == "" || baseURL == "" {
		logger.Fatal("missing delivery config")
	}

	// Worker deps stay empty: only the topic/subscription routing table is
	// used here, handlers run in the gateway process.
	routes := workers.SubscriptionsByTopic(workers.All(workers.Deps{}))

	p := &pump{
		http:      &http.Client{Timeout: deliverTimeout},
		baseURL:   baseURL,
		logger:    logger,
		retryWait: pollInterval,
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for topic, subs := range routes {
		queue, err := azqueue.NewQueueClientFromConnectionString(connStr, topic, nil)
		if err != nil {
			logger.Fatalf("queue client for %s: %v", topic, err)
		}
		wg.Add(1)
		go func(topic string, queue topicQueue, subs []string) {
			defer wg.Done()
			p.drain(ctx, topic, queue, subs)
		}(topic, queue, subs)
	}
	wg.Wait()
}

// drain processes one topic queue. Messages are handled strictly one at a
// time in dequeue order, which preserves per-key ordering for the topics that
// carry ordering keys.
func (p *pump) drain(ctx context.Context, topic string, queue topicQueue, subs []string) {
	for {
		resp, err := queue.DequeueMessage(ctx, nil)
		if err != nil {
			p.logger.WithField("topic", topic).WithError(err).Warn("dequeue failed")
			time.Sleep(pollInterval)
			continue
		}
		if len(resp.Messages) == 0 {
			time.Sleep(pollInterval)
			continue
		}
		p.process(ctx, topic, queue, resp.Messages[0], subs)
	}
}

// process delivers one message to completion before the topic loop may
// advance. A failed delivery is retried in place while the hold on the
// message is renewed; advancing past it would let later messages with the
// same ordering key be delivered first.
func (p *pump) process(ctx context.Context, topic string, queue topicQueue, msg *azqueue.DequeuedMessage, subs []string) {
	if msg == nil || msg.MessageText == nil || msg.MessageID == nil || msg.PopReceipt == nil {
		return
	}
	popReceipt := *msg.PopReceipt
	for {
		if p.deliver(ctx, topic, *msg.MessageText, subs) {
			if _, err := queue.DeleteMessage(ctx, *msg.MessageID, popReceipt, nil); err != nil {
				p.logger.WithField("topic", topic).WithError(err).Warn("delete failed")
			}
			return
		}

		time.Sleep(p.retryWait)
		hold := int32(retryHoldSeconds)
		resp, err := queue.UpdateMessage(ctx, *msg.MessageID, popReceipt, *msg.MessageText,
			&azqueue.UpdateMessageOptions{VisibilityTimeout: &hold})
		if err != nil {
			// The hold is gone; the queue redelivers the message and the
			// loop picks it up again at the head of the topic.
			p.logger.WithFields(log.Fields{
				"topic":     topic,
				"messageId": *msg.MessageID,
			}).WithError(err).Warn("lost message hold, waiting for redelivery")
			return
		}
		if resp.PopReceipt != nil {
			popReceipt = *resp.PopReceipt
		}
	}
}

// deliver fans one queue message out to every subscription endpoint and
// reports whether all of them acknowledged. Keyed messages go out one
// subscription at a time; unkeyed ones in parallel.
func (p *pump) deliver(ctx context.Context, topic, raw string, subs []string) bool {
	var msg events.PushMessage
	if err := sonic.UnmarshalString(raw, &msg); err != nil {
		p.logger.WithField("topic", topic).WithError(err).Error("dropping malformed queue message")
		return true
	}

	if msg.OrderingKey != "" || len(subs) == 1 {
		for _, sub := range subs {
			if !p.push(ctx, sub, msg) {
				return false
			}
		}
		return true
	}

	results := make(chan bool, len(subs))
	for _, sub := range subs {
		go func(sub string) {
			results <- p.push(ctx, sub, msg)
		}(sub)
	}
	ok := true
	for range subs {
		if !<-results {
			ok = false
		}
	}
	return ok
}

func (p *pump) push(ctx context.Context, subscription string, msg events.PushMessage) bool {
	env := events.PushEnvelope{Message: msg, Subscription: subscription}
	body, err := sonic.Marshal(env)
	if err != nil {
		p.logger.WithField("subscription", subscription).WithError(err).Error("marshal envelope")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/push/"+subscription, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.WithFields(log.Fields{
			"subscription": subscription,
			"messageId":    msg.ID,
		}).WithError(err).Warn("push delivery failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.WithFields(log.Fields{
			"subscription": subscription,
			"messageId":    msg.ID,
			"status":       resp.StatusCode,
		}).Warn("push delivery rejected")
		return false
	}
	return true
}
