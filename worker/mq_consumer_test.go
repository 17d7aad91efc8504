package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/cipherchat/mq"
	mqmocks "github.com/zlnvch/cipherchat/mq/mocks"
	storemocks "github.com/zlnvch/cipherchat/store/mocks"
	"github.com/zlnvch/cipherchat/worker"
)

func TestMQConsumer_PurgesAndDeletes(t *testing.T) {
	mockMQ := new(mqmocks.MockMQ)
	mockStore := new(storemocks.MockStore)

	msg := &mq.Message{Id: "job1", Body: `{"tripcode":"trip1"}`}
	mockMQ.On("Receive", mock.Anything, int32(300)).Return(msg, nil).Once()
	mockMQ.On("Receive", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	mockStore.On("MarkSenderMessagesDeleted", mock.Anything, "trip1").Return(3, nil)
	deleteDone := wrapMockWithSignal(mockMQ.On("Delete", mock.Anything, msg).Return(nil))

	consumer := worker.NewMQConsumer(mockMQ, mockStore)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	select {
	case <-deleteDone:
	case <-time.After(1 * time.Second):
		assert.Fail(t, "timed out waiting for job deletion")
	}

	mockStore.AssertExpectations(t)
}

func TestMQConsumer_FailedPurgeStaysOnQueue(t *testing.T) {
	mockMQ := new(mqmocks.MockMQ)
	mockStore := new(storemocks.MockStore)

	msg := &mq.Message{Id: "job1", Body: `{"tripcode":"trip1"}`}
	mockMQ.On("Receive", mock.Anything, int32(300)).Return(msg, nil).Once()
	secondReceive := wrapMockWithSignal(
		mockMQ.On("Receive", mock.Anything, mock.Anything).Return(nil, context.Canceled),
	)
	mockStore.On("MarkSenderMessagesDeleted", mock.Anything, "trip1").Return(0, assert.AnError)

	consumer := worker.NewMQConsumer(mockMQ, mockStore)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	select {
	case <-secondReceive:
	case <-time.After(1 * time.Second):
		assert.Fail(t, "timed out waiting for consumer loop")
	}

	// The job is not acknowledged; SQS redelivers it after the
	// visibility timeout
	mockMQ.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestMQConsumer_MalformedJobDropped(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Not JSON", `not json`},
		{"Empty Tripcode", `{"tripcode":""}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockMQ := new(mqmocks.MockMQ)
			mockStore := new(storemocks.MockStore)

			msg := &mq.Message{Id: "job1", Body: tc.body}
			mockMQ.On("Receive", mock.Anything, int32(300)).Return(msg, nil).Once()
			mockMQ.On("Receive", mock.Anything, mock.Anything).Return(nil, context.Canceled)
			// The bad job is acknowledged so the queue stops redelivering it
			deleteDone := wrapMockWithSignal(mockMQ.On("Delete", mock.Anything, msg).Return(nil))

			consumer := worker.NewMQConsumer(mockMQ, mockStore)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go consumer.Run(ctx)

			select {
			case <-deleteDone:
			case <-time.After(1 * time.Second):
				assert.Fail(t, "timed out waiting for job deletion")
			}

			mockStore.AssertNotCalled(t, "MarkSenderMessagesDeleted", mock.Anything, mock.Anything)
		})
	}
}
