package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	logginginfra "github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

func newJSONLogger(t *testing.T, buf *bytes.Buffer) ports.Logger {
	t.Helper()
	logger, err := logginginfra.New(logginginfra.Options{
		Writer:    buf,
		Level:     "debug",
		Layer:     "test",
		Component: "publisher",
	})
	require.NoError(t, err)
	return logger
}

func TestLoggingPublisherIncludesCorrelationID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	publisher := NewLoggingPublisher(newJSONLogger(t, buf))

	ctx := ports.WithCorrelationID(context.Background(), "abc-123")
	err := publisher.Publish(ctx, Event{
		Type: ports.EventRunStarted,
		Data: map[string]interface{}{"project": "demo"},
	})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "run event", entry["message"])
	require.Equal(t, ports.EventRunStarted, entry["event_type"])
	require.Equal(t, "abc-123", entry["correlation_id"])
	require.Equal(t, "demo", entry["project"])
	require.Equal(t, "info", entry["level"])
}

func TestLoggingPublisherWarnsOnFailure(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	publisher := NewLoggingPublisher(newJSONLogger(t, buf))
	require.NoError(t, publisher.Publish(context.Background(), Event{Type: ports.EventRunFailed}))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
}

func TestLoggingPublisherInvokesSubscribers(t *testing.T) {
	t.Parallel()

	publisher := NewLoggingPublisher(logginginfra.NewNoOpLogger())

	var typed, wildcard []string
	sub, err := publisher.Subscribe(ports.EventNodeFinished, func(_ context.Context, ev ports.DomainEvent) error {
		typed = append(typed, ev.EventType())
		return nil
	})
	require.NoError(t, err)
	_, err = publisher.Subscribe("*", func(_ context.Context, ev ports.DomainEvent) error {
		wildcard = append(wildcard, ev.EventType())
		return errors.New("ignored")
	})
	require.NoError(t, err)
	_, err = publisher.Subscribe(ports.EventNodeFinished, func(context.Context, ports.DomainEvent) error {
		panic("boom")
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, Event{Type: ports.EventNodeFinished}))
	require.NoError(t, publisher.Publish(ctx, Event{Type: ports.EventRunCompleted}))

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, publisher.Publish(ctx, Event{Type: ports.EventNodeFinished}))

	require.Equal(t, []string{ports.EventNodeFinished}, typed)
	require.Equal(t, []string{ports.EventNodeFinished, ports.EventRunCompleted, ports.EventNodeFinished}, wildcard)
}

func TestNilPublisherIsSafe(t *testing.T) {
	var publisher *LoggingPublisher
	require.NoError(t, publisher.Publish(context.Background(), Event{Type: ports.EventRunStarted}))
	sub, err := publisher.Subscribe(ports.EventRunStarted, func(context.Context, ports.DomainEvent) error { return nil })
	require.NoError(t, err)
	sub.Unsubscribe()
}
