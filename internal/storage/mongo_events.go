package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/huddle/backend/internal/models"
)

type mongoPollDoc struct {
	UserID    string    `bson:"user_id"`
	UserEmail string    `bson:"user_email"`
	Response  string    `bson:"response"`
	Timestamp time.Time `bson:"timestamp"`
}

// mongoInvitationDoc is stored as an array element so user ids never become field paths.
type mongoInvitationDoc struct {
	UserID string `bson:"user_id"`
	Status string `bson:"status"`
}

type mongoEventDoc struct {
	ID                  string               `bson:"_id"`
	OwnerID             string               `bson:"owner_id"`
	Title               string               `bson:"title"`
	Date                string               `bson:"date"`
	Time                string               `bson:"time"`
	Location            string               `bson:"location"`
	Description         string               `bson:"description,omitempty"`
	Attendees           []string             `bson:"attendees"`
	SpotifyPlaylistURL  string               `bson:"spotify_playlist_url,omitempty"`
	Latitude            *float64             `bson:"latitude,omitempty"`
	Longitude           *float64             `bson:"longitude,omitempty"`
	PollResponses       []mongoPollDoc       `bson:"poll_responses"`
	InvitationResponses []mongoInvitationDoc `bson:"invitation_responses,omitempty"`
	CreatedAt           time.Time            `bson:"created_at"`
}

func pollToDoc(r models.PollResponse) mongoPollDoc {
	return mongoPollDoc{
		UserID:    r.UserID,
		UserEmail: r.UserEmail,
		Response:  string(r.Response),
		Timestamp: r.Timestamp,
	}
}

func eventToDoc(e *models.Event) mongoEventDoc {
	doc := mongoEventDoc{
		ID:                 e.ID,
		OwnerID:            e.OwnerID,
		Title:              e.Title,
		Date:               e.Date,
		Time:               e.Time,
		Location:           e.Location,
		Description:        e.Description,
		Attendees:          append([]string{}, e.Attendees...),
		SpotifyPlaylistURL: e.SpotifyPlaylistURL,
		Latitude:           e.Latitude,
		Longitude:          e.Longitude,
		PollResponses:      make([]mongoPollDoc, 0, len(e.PollResponses)),
		CreatedAt:          e.CreatedAt,
	}
	for _, r := range e.PollResponses {
		doc.PollResponses = append(doc.PollResponses, pollToDoc(r))
	}
	if len(e.InvitationResponses) > 0 {
		doc.InvitationResponses = make([]mongoInvitationDoc, 0, len(e.InvitationResponses))
		for k, v := range e.InvitationResponses {
			doc.InvitationResponses = append(doc.InvitationResponses, mongoInvitationDoc{UserID: k, Status: string(v)})
		}
	}
	return doc
}

func eventDocToModel(d mongoEventDoc) *models.Event {
	e := &models.Event{
		ID:                 d.ID,
		OwnerID:            d.OwnerID,
		Title:              d.Title,
		Date:               d.Date,
		Time:               d.Time,
		Location:           d.Location,
		Description:        d.Description,
		Attendees:          d.Attendees,
		SpotifyPlaylistURL: d.SpotifyPlaylistURL,
		Latitude:           d.Latitude,
		Longitude:          d.Longitude,
		PollResponses:      make([]models.PollResponse, 0, len(d.PollResponses)),
		CreatedAt:          d.CreatedAt,
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	for _, r := range d.PollResponses {
		e.PollResponses = append(e.PollResponses, models.PollResponse{
			UserID:    r.UserID,
			UserEmail: r.UserEmail,
			Response:  models.PollAnswer(r.Response),
			Timestamp: r.Timestamp,
		})
	}
	if len(d.InvitationResponses) > 0 {
		e.InvitationResponses = make(map[string]models.InvitationStatus, len(d.InvitationResponses))
		for _, r := range d.InvitationResponses {
			e.InvitationResponses[r.UserID] = models.InvitationStatus(r.Status)
		}
	}
	return e
}

// MongoEventStore mutates attendees and poll responses with single-document updates
// so concurrent writers never overwrite each other's changes.
type MongoEventStore struct {
	col *mongo.Collection
}

func NewMongoEventStore(ctx context.Context, db *mongo.Database) *MongoEventStore {
	col := db.Collection("events")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "attendees", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})

	return &MongoEventStore{col: col}
}

func (s *MongoEventStore) Insert(ctx context.Context, event *models.Event) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.col.InsertOne(ctx, eventToDoc(event)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoEventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc mongoEventDoc
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return eventDocToModel(doc), nil
}

func (s *MongoEventStore) ListForAttendee(ctx context.Context, userID string) ([]models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cur, err := s.col.Find(
		ctx,
		bson.M{"attendees": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Event, 0)
	for cur.Next(ctx) {
		var doc mongoEventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *eventDocToModel(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoEventStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoEventStore) update(ctx context.Context, id string, update interface{}) (*models.Event, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc mongoEventDoc
	err := s.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return eventDocToModel(doc), nil
}

func (s *MongoEventStore) RemoveAttendee(ctx context.Context, id, userID string) (*models.Event, error) {
	return s.update(ctx, id, bson.M{"$pull": bson.M{"attendees": userID}})
}

// UpsertPollResponse replaces the caller's entry with one pipeline update: filter out
// the user's previous response, then append the new one.
func (s *MongoEventStore) UpsertPollResponse(ctx context.Context, id string, resp models.PollResponse) (*models.Event, error) {
	doc := pollToDoc(resp)
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "poll_responses", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				withoutUser("poll_responses", "user_id", resp.UserID),
				bson.D{{Key: "$literal", Value: bson.A{doc}}},
			}}}},
		}}},
	}
	return s.update(ctx, id, pipeline)
}

// withoutUser is an aggregation expression for field with every element matching userID
// removed. key names the compared subfield; an empty key compares the element itself.
func withoutUser(field, key, userID string) bson.D {
	elem := "$$x"
	if key != "" {
		elem = "$$x." + key
	}
	return bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}},
		{Key: "as", Value: "x"},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{elem, bson.D{{Key: "$literal", Value: userID}}}}}},
	}}}
}

// invitationPipeline replaces the user's invitation entry and moves them into or out of
// attendees in one update. The user id only ever appears as a literal value.
func invitationPipeline(userID string, status models.InvitationStatus) mongo.Pipeline {
	entry := mongoInvitationDoc{UserID: userID, Status: string(status)}
	set := bson.D{
		{Key: "invitation_responses", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
			withoutUser("invitation_responses", "user_id", userID),
			bson.D{{Key: "$literal", Value: bson.A{entry}}},
		}}}},
	}

	switch status {
	case models.InvitationAccepted:
		attendees := bson.D{{Key: "$ifNull", Value: bson.A{"$attendees", bson.A{}}}}
		// Append only when absent so the existing order is kept.
		set = append(set, bson.E{Key: "attendees", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{bson.D{{Key: "$literal", Value: userID}}, attendees}}},
			attendees,
			bson.D{{Key: "$concatArrays", Value: bson.A{attendees, bson.D{{Key: "$literal", Value: bson.A{userID}}}}}},
		}}}})
	case models.InvitationDeclined:
		set = append(set, bson.E{Key: "attendees", Value: withoutUser("attendees", "", userID)})
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func (s *MongoEventStore) SetInvitationResponse(ctx context.Context, id, userID string, status models.InvitationStatus) (*models.Event, error) {
	return s.update(ctx, id, invitationPipeline(userID, status))
}

func (s *MongoEventStore) SetCoordinates(ctx context.Context, id string, lat, lng float64) error {
	_, err := s.update(ctx, id, bson.M{"$set": bson.M{"latitude": lat, "longitude": lng}})
	return err
}
