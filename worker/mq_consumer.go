package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/zlnvch/cipherchat/mq"
	"github.com/zlnvch/cipherchat/store"
)

// PurgeSenderMessagesMessage is the job enqueued when a tripcode is banned
// globally: every message that tripcode ever sent gets soft-deleted in the
// store, across all rooms.
type PurgeSenderMessagesMessage struct {
	Tripcode string `json:"tripcode"`
}

type MQConsumer struct {
	purgeQueue      mq.MessageQueue
	cipherchatStore store.CipherchatStore
}

func NewMQConsumer(purgeQueue mq.MessageQueue, cipherchatStore store.CipherchatStore) *MQConsumer {
	return &MQConsumer{
		purgeQueue:      purgeQueue,
		cipherchatStore: cipherchatStore,
	}
}

// Allow up to 5 minutes for the throttled purge of a prolific sender
const visibilityTimeout = 300

func (mqConsumer MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.purgeQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		var purgeMsg PurgeSenderMessagesMessage
		if err := json.Unmarshal([]byte(msg.Body), &purgeMsg); err != nil || purgeMsg.Tripcode == "" {
			// A malformed job can never succeed; drop it instead of
			// letting the queue redeliver it after every visibility
			// timeout.
			log.Printf("Dropping malformed purge job: %v", err)
			if err := mqConsumer.purgeQueue.Delete(context.Background(), msg); err != nil {
				log.Printf("mqConsumer delete error: %v", err)
			}
			continue
		}

		// timeout should be a little less than queue visibility timeout
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)

		marked, err := mqConsumer.cipherchatStore.MarkSenderMessagesDeleted(ctx, purgeMsg.Tripcode)
		cancel()
		if err != nil {
			// The job stays on the queue and is retried after the
			// visibility timeout.
			log.Printf("purge of sender messages failed after %d marked: %v", marked, err)
			continue
		}
		log.Printf("Purged %d stored messages for banned sender", marked)

		if err := mqConsumer.purgeQueue.Delete(context.Background(), msg); err != nil {
			log.Printf("mqConsumer delete error: %v", err)
			continue
		}
	}
}
