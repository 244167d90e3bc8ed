package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

const (
	collectionUsers  = "users"
	collectionEvents = "events"
)

// Adapter implements ports.StorageAdapter on MongoDB: profiles are upserted
// by email into "users", events appended to "events".
type Adapter struct {
	db    *mongo.Database
	users *mongo.Collection
	evts  *mongo.Collection
	log   zerolog.Logger
	now   func() time.Time
}

func NewAdapter(db *mongo.Database, log zerolog.Logger) *Adapter {
	return &Adapter{
		db:    db,
		users: db.Collection(collectionUsers),
		evts:  db.Collection(collectionEvents),
		log:   log,
		now:   time.Now,
	}
}

func (a *Adapter) Name() string { return "mongo" }

type mongoEvent struct {
	ID          string    `bson:"_id"`
	Event       string    `bson:"event"`
	Data        any       `bson:"data,omitempty"`
	UserEmail   string    `bson:"user_email,omitempty"`
	UserID      string    `bson:"user_id,omitempty"`
	AnonymousID string    `bson:"anonymous_id,omitempty"`
	Timestamp   time.Time `bson:"timestamp"`
}

// SaveUser upserts the profile keyed by email. Subjects without an email
// have no profile row and are skipped.
func (a *Adapter) SaveUser(ctx context.Context, subject domain.Subject) error {
	if subject.Email == "" {
		a.log.Debug().Str("subject", subject.Key()).Msg("mongo: skip profile without email")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := profileUpdate(subject, a.now().UTC())
	_, err := a.users.UpdateOne(ctx, bson.M{"email": subject.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: mongo upsert user: %w", domain.ErrPersistence, err)
	}
	return nil
}

// SaveEvent inserts the event. Identified events also make sure the owning
// profile exists (connect-or-create) without overwriting it.
func (a *Adapter) SaveEvent(ctx context.Context, record domain.EventRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	s := record.Subject
	if s.Email != "" {
		_, err := a.users.UpdateOne(ctx,
			bson.M{"email": s.Email},
			bson.M{"$setOnInsert": bson.M{
				"email":      s.Email,
				"name":       s.Name,
				"image":      s.Image,
				"created_at": a.now().UTC(),
			}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("%w: mongo connect user: %w", domain.ErrPersistence, err)
		}
	}

	if _, err := a.evts.InsertOne(ctx, eventDocument(record)); err != nil {
		return fmt.Errorf("%w: mongo insert event: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Ping satisfies ports.HealthChecker.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

// EnsureIndexes creates the unique email index the upsert relies on.
func (a *Adapter) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := a.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}

	_, err := a.evts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_email", Value: 1}}},
		{Keys: bson.D{{Key: "anonymous_id", Value: 1}}},
		{Keys: bson.D{{Key: "event", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return err
}

// profileUpdate sets only the attributes the subject carries, so a partial
// identify never blanks stored fields.
func profileUpdate(subject domain.Subject, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if subject.Name != "" {
		set["name"] = subject.Name
	}
	if subject.Image != "" {
		set["image"] = subject.Image
	}
	if subject.UserID != "" {
		set["user_id"] = subject.UserID
	}
	if subject.AnonymousID != "" {
		set["anonymous_id"] = subject.AnonymousID
	}
	if !subject.Data.IsZero() {
		set["data"] = subject.Data.Interface()
	}

	return bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"email": subject.Email, "created_at": now},
	}
}

func eventDocument(record domain.EventRecord) mongoEvent {
	return mongoEvent{
		ID:          record.ID,
		Event:       record.Event,
		Data:        record.Data.Interface(),
		UserEmail:   record.Subject.Email,
		UserID:      record.Subject.UserID,
		AnonymousID: record.Subject.AnonymousID,
		Timestamp:   record.Timestamp.UTC(),
	}
}
