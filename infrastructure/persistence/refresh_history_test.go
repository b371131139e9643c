package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
)

func run(id string) model.RefreshRun {
	return model.RefreshRun{ID: id, Trigger: model.TriggerSchedule, StartedAt: time.Now(), Result: model.RefreshCompleted}
}

func TestMemoryRefreshHistory_NewestFirst(t *testing.T) {
	h := NewMemoryRefreshHistory(3)
	ctx := context.Background()

	runs, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, h.Record(ctx, run(id)))
	}
	runs, _ = h.Recent(ctx, 10)
	assert.Equal(t, []string{"r2", "r1"}, runIDs(runs))

	for _, id := range []string{"r3", "r4", "r5"} {
		require.NoError(t, h.Record(ctx, run(id)))
	}
	runs, _ = h.Recent(ctx, 0)
	assert.Equal(t, []string{"r5", "r4", "r3"}, runIDs(runs))

	runs, _ = h.Recent(ctx, 2)
	assert.Equal(t, []string{"r5", "r4"}, runIDs(runs))
}

func runIDs(runs []model.RefreshRun) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}

type fakeCollection struct {
	inserted []interface{}
	err      error
}

func (f *fakeCollection) InsertOne(_ context.Context, document interface{}, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, document)
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeCollection) Find(_ context.Context, _ interface{}, _ ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	return nil, f.err
}

func TestMongoRefreshHistory(t *testing.T) {
	coll := &fakeCollection{}
	h := &MongoRefreshHistory{collection: coll}

	require.NoError(t, h.Record(context.Background(), run("r1")))
	require.Len(t, coll.inserted, 1)
	assert.Equal(t, "r1", coll.inserted[0].(model.RefreshRun).ID)

	coll.err = errors.New("no primary")
	assert.ErrorContains(t, h.Record(context.Background(), run("r2")), "no primary")
	_, err := h.Recent(context.Background(), 5)
	assert.ErrorContains(t, err, "no primary")
}

func TestMongoRefreshHistory_NilClient(t *testing.T) {
	h := NewMongoRefreshHistory(nil, "planner", "")
	assert.Error(t, h.Record(context.Background(), run("r1")))
	_, err := h.Recent(context.Background(), 5)
	assert.Error(t, err)
}
