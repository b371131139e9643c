package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "planner-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestRefreshPublisher_CreatesTopicAndPublishes(t *testing.T) {
	client, srv := newTestClient(t)
	publisher := NewRefreshPublisher(client, "trend-refresh")
	defer publisher.Stop()

	event := model.RefreshEvent{
		Type:        "refresh_finished",
		RunID:       "run-1",
		Trigger:     string(model.TriggerSchedule),
		Result:      model.RefreshCompleted,
		RecordCount: 42,
		LastUpdated: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.NotifyRefresh(context.Background(), event))
	require.NoError(t, publisher.NotifyRefresh(context.Background(), event))

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "completed", msgs[0].Attributes["result"])
	assert.Equal(t, string(model.TriggerSchedule), msgs[0].Attributes["trigger"])

	var got model.RefreshEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 42, got.RecordCount)
}

func TestRefreshPublisher_NilClient(t *testing.T) {
	err := NewRefreshPublisher(nil, "t").NotifyRefresh(context.Background(), model.RefreshEvent{})
	assert.Error(t, err)
}

func TestNewPubSub_EmptyProject(t *testing.T) {
	_, err := NewPubSub(context.Background(), "")
	assert.Error(t, err)
}
