package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestPublishFormAction(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	defer mock.Close()

	event := FormActionEvent{
		SessionID:  "session-1",
		Form:       "order",
		Action:     "create",
		Method:     "POST",
		Path:       "/api/orders",
		StatusCode: 201,
		Success:    true,
		Flash:      "Success",
	}

	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got FormActionEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.SessionID != event.SessionID || got.Action != "create" || got.StatusCode != 201 {
			return errors.New("unexpected event payload")
		}
		if got.EventTime.IsZero() {
			return errors.New("event_time not set")
		}
		return nil
	})

	producer := newKafkaProducer(mock, "", testLogger())
	if producer.topic != DefaultFormActionTopic {
		t.Errorf("expected default topic, got %q", producer.topic)
	}
	if err := producer.PublishFormAction(event); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishFormActionKeepsEventTime(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	defer mock.Close()

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got FormActionEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if !got.EventTime.Equal(at) {
			return errors.New("event_time was overwritten")
		}
		return nil
	})

	producer := newKafkaProducer(mock, "custom.topic", testLogger())
	if err := producer.PublishFormAction(FormActionEvent{SessionID: "s", EventTime: at}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublishFormActionFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	defer mock.Close()

	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := newKafkaProducer(mock, "", testLogger())
	err := producer.PublishFormAction(FormActionEvent{SessionID: "s"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected wrapped ErrOutOfBrokers, got %v", err)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := splitBrokers(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("unexpected brokers: %v", got)
	}
}
