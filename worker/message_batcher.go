package worker

import (
	"context"
	"log"
	"time"

	"github.com/zlnvch/cipherchat/models"
	"github.com/zlnvch/cipherchat/store"
)

type DeletePendingRequest struct {
	RoomId    string
	MessageId string
}

// MessageBatcher is the write-behind path between broadcast and the store.
// Broadcast hands a record to WriteCh and never waits on persistence;
// records are flushed in DynamoDB-sized batches on a ticker or when full.
// Unprocessed records are carried into the next batch, so persistence is
// attempted at least once per record while delivery is never delayed.
//
// DeleteCh flips the deleted flag on a record still sitting in the buffer,
// so a moderation delete that races the flush is not lost.
type MessageBatcher struct {
	WriteCh            chan models.MessageRecord
	DeleteCh           chan DeletePendingRequest
	cipherchatStore    store.CipherchatStore
	tickerMilliseconds int
}

const maxBatchSize = 25 // DynamoDB BatchWriteItem limit

// How long a delete for a not-yet-seen record is remembered. A record
// spends at most a few flush intervals in WriteCh; deletes for records
// that already flushed are handled by the store and age out here.
const pendingDeleteRetention = time.Minute

func NewMessageBatcher(cipherchatStore store.CipherchatStore, tickerMilliseconds int) *MessageBatcher {
	return &MessageBatcher{
		WriteCh:            make(chan models.MessageRecord, 1024), // buffer to absorb bursts
		DeleteCh:           make(chan DeletePendingRequest, 1024),
		cipherchatStore:    cipherchatStore,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *MessageBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]models.MessageRecord, 0, maxBatchSize)
	batchIndices := make(map[string]int, maxBatchSize)
	pendingDeletes := make(map[string]time.Time)

	key := func(roomId, messageId string) string {
		return roomId + "/" + messageId
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background context so the final flush on shutdown still runs.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		unprocessed, err := b.cipherchatStore.WriteMessageBatch(ctx, batch)
		if err != nil {
			log.Printf("Error writing message batch to store: %v", err)
		}

		// Unprocessed records roll over into the next batch rather than
		// being dropped; the log sink is at-least-once-attempted.
		batch = batch[:0]
		clear(batchIndices)
		for _, u := range unprocessed {
			batch = append(batch, u)
			batchIndices[key(u.RoomId, u.Message.Id)] = len(batch) - 1
		}

		for k, seen := range pendingDeletes {
			if time.Since(seen) > pendingDeleteRetention {
				delete(pendingDeletes, k)
			}
		}
	}

	for {
		select {
		case record := <-b.WriteCh:
			k := key(record.RoomId, record.Message.Id)
			// A delete may have overtaken the record while it sat in
			// WriteCh; apply it as the record drains.
			if _, ok := pendingDeletes[k]; ok {
				record.Message.Deleted = true
				delete(pendingDeletes, k)
			}
			batch = append(batch, record)
			batchIndices[k] = len(batch) - 1
			if len(batch) >= maxBatchSize {
				flush()
			}

		case deleteReq := <-b.DeleteCh:
			// Soft delete: the record stays in the batch, only flagged.
			// Records not buffered yet get the flag on arrival instead.
			if idx, ok := batchIndices[key(deleteReq.RoomId, deleteReq.MessageId)]; ok {
				batch[idx].Message.Deleted = true
			} else {
				pendingDeletes[key(deleteReq.RoomId, deleteReq.MessageId)] = time.Now()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
