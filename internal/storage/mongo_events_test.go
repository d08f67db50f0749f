package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/huddle/backend/internal/models"
)

// Both backends satisfy the same store contracts.
var (
	_ AccountStore = (*MemoryAccountStore)(nil)
	_ AccountStore = (*MongoAccountStore)(nil)
	_ ProfileStore = (*MemoryProfileStore)(nil)
	_ ProfileStore = (*MongoProfileStore)(nil)
	_ FriendStore  = (*MemoryFriendStore)(nil)
	_ FriendStore  = (*MongoFriendStore)(nil)
	_ EventStore   = (*MemoryEventStore)(nil)
	_ EventStore   = (*MongoEventStore)(nil)
)

// collectKeys walks a decoded document and returns every field name in it.
func collectKeys(v interface{}, out *[]string) {
	switch t := v.(type) {
	case bson.M:
		for k, child := range t {
			*out = append(*out, k)
			collectKeys(child, out)
		}
	case bson.D:
		for _, e := range t {
			*out = append(*out, e.Key)
			collectKeys(e.Value, out)
		}
	case bson.A:
		for _, child := range t {
			collectKeys(child, out)
		}
	}
}

func setFields(t *testing.T, stage bson.D) []string {
	t.Helper()
	require.Len(t, stage, 1)
	require.Equal(t, "$set", stage[0].Key)
	set, ok := stage[0].Value.(bson.D)
	require.True(t, ok)
	fields := make([]string, 0, len(set))
	for _, e := range set {
		fields = append(fields, e.Key)
	}
	return fields
}

func TestInvitationPipelineKeepsUserIDOutOfFieldNames(t *testing.T) {
	const userID = "odd.uid$with:chars"

	for _, status := range []models.InvitationStatus{models.InvitationAccepted, models.InvitationDeclined} {
		pipeline := invitationPipeline(userID, status)
		require.Len(t, pipeline, 1)

		raw, err := bson.Marshal(pipeline[0])
		require.NoError(t, err)
		var stage bson.D
		require.NoError(t, bson.Unmarshal(raw, &stage))

		var keys []string
		collectKeys(stage, &keys)
		for _, k := range keys {
			assert.False(t, strings.Contains(k, userID), "field %q carries the user id", k)
		}
		assert.Equal(t, []string{"invitation_responses", "attendees"}, setFields(t, stage), string(status))
	}
}

func TestEventDocRoundTripsInvitationResponses(t *testing.T) {
	e := &models.Event{
		ID:        "e1",
		OwnerID:   "a",
		Attendees: []string{"a", "b.c"},
		InvitationResponses: map[string]models.InvitationStatus{
			"b.c":  models.InvitationAccepted,
			"$d:e": models.InvitationDeclined,
		},
	}

	doc := eventToDoc(e)
	assert.Len(t, doc.InvitationResponses, 2)

	back := eventDocToModel(doc)
	assert.Equal(t, e.InvitationResponses, back.InvitationResponses)
	assert.Equal(t, e.Attendees, back.Attendees)
}
