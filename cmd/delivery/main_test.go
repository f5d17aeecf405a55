package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/events"
)

type fakeQueue struct {
	mu      sync.Mutex
	deleted []string
	updates int
}

func (f *fakeQueue) DequeueMessage(context.Context, *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error) {
	return azqueue.DequeueMessagesResponse{}, nil
}

func (f *fakeQueue) DeleteMessage(_ context.Context, messageID, _ string, _ *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return azqueue.DeleteMessageResponse{}, nil
}

func (f *fakeQueue) UpdateMessage(_ context.Context, _, popReceipt, _ string, _ *azqueue.UpdateMessageOptions) (azqueue.UpdateMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return azqueue.UpdateMessageResponse{PopReceipt: &popReceipt}, nil
}

func newTestPump(baseURL string) *pump {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return &pump{
		http:      &http.Client{Timeout: 5 * time.Second},
		baseURL:   baseURL,
		logger:    logger,
		retryWait: time.Millisecond,
	}
}

func queuedMessage(t *testing.T, id, orderingKey string) *azqueue.DequeuedMessage {
	t.Helper()
	body, err := json.Marshal(events.PushMessage{ID: id, Data: []byte(`{}`), OrderingKey: orderingKey})
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	text := string(body)
	receipt := "pr-" + id
	return &azqueue.DequeuedMessage{MessageID: &id, MessageText: &text, PopReceipt: &receipt}
}

// A transient rejection must hold up the topic: the failed message is retried
// until it lands, and only then may the next message go out.
func TestProcessRetriesInPlaceBeforeAdvancing(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	var failedOnce bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env events.PushEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("bad envelope: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if env.Message.ID == "m-a" && !failedOnce {
			failedOnce = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		delivered = append(delivered, env.Message.ID)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	p := newTestPump(srv.URL)
	queue := &fakeQueue{}
	subs := []string{"gateway-cdc"}
	ctx := context.Background()

	p.process(ctx, "gateway-changes", queue, queuedMessage(t, "m-a", "row-1"), subs)
	p.process(ctx, "gateway-changes", queue, queuedMessage(t, "m-b", "row-1"), subs)

	if len(delivered) != 2 || delivered[0] != "m-a" || delivered[1] != "m-b" {
		t.Fatalf("delivery order = %v, want [m-a m-b]", delivered)
	}
	if queue.updates != 1 {
		t.Fatalf("hold renewals = %d, want 1", queue.updates)
	}
	if len(queue.deleted) != 2 {
		t.Fatalf("deleted = %v, want both messages acked", queue.deleted)
	}
}

func TestProcessDeletesOnlyAfterAllSubsAck(t *testing.T) {
	var mu sync.Mutex
	acks := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env events.PushEnvelope
		json.NewDecoder(r.Body).Decode(&env)
		mu.Lock()
		acks[env.Subscription]++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	p := newTestPump(srv.URL)
	queue := &fakeQueue{}
	p.process(context.Background(), "user-registered", queue, queuedMessage(t, "m-1", ""),
		[]string{"user-registered-referral-contest", "user-registered-slack"})

	if acks["user-registered-referral-contest"] != 1 || acks["user-registered-slack"] != 1 {
		t.Fatalf("acks = %v, want one per subscription", acks)
	}
	if len(queue.deleted) != 1 || queue.deleted[0] != "m-1" {
		t.Fatalf("deleted = %v, want [m-1]", queue.deleted)
	}
}

func TestProcessDropsMalformedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("nothing should be pushed for a malformed message")
	}))
	t.Cleanup(srv.Close)

	p := newTestPump(srv.URL)
	queue := &fakeQueue{}
	id, text, receipt := "m-bad", "not json", "pr-bad"
	msg := &azqueue.DequeuedMessage{MessageID: &id, MessageText: &text, PopReceipt: &receipt}
	p.process(context.Background(), "user-updated", queue, msg, []string{"user-updated-mailing"})

	if len(queue.deleted) != 1 {
		t.Fatalf("deleted = %v, want the malformed message dropped", queue.deleted)
	}
}
