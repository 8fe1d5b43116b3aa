package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
)

const collectionUsers = "users"

// UserRepository persists accounts and their session secret digest. Every
// session mutation is a single-document write, so MongoDB's per-document
// atomicity is the only concurrency control needed.
type UserRepository struct {
	col *mongo.Collection
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type mongoUser struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	GoogleID      string             `bson:"google_id"`
	DisplayName   string             `bson:"display_name"`
	Email         string             `bson:"email"`
	AvatarURL     string             `bson:"avatar_url,omitempty"`
	IsAdmin       bool               `bson:"is_admin"`
	SessionSecret *string            `bson:"session_secret"`
	IsOnline      bool               `bson:"is_online"`
	LastActiveAt  time.Time          `bson:"last_active_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func (m *mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:            m.ID.Hex(),
		GoogleID:      m.GoogleID,
		DisplayName:   m.DisplayName,
		Email:         m.Email,
		AvatarURL:     m.AvatarURL,
		IsAdmin:       m.IsAdmin,
		SessionSecret: m.SessionSecret,
		IsOnline:      m.IsOnline,
		LastActiveAt:  m.LastActiveAt.UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

// List returns all accounts ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toDomain())
	}
	return users, nil
}

// UpsertSession creates the account on first sign-in and, in the same write,
// replaces its session secret digest. Profile fields are refreshed from the
// identity provider on every login; the admin flag is never touched.
func (r *UserRepository) UpsertSession(ctx context.Context, ident *domain.ExternalIdentity, secretDigest string, now time.Time) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"google_id": ident.Subject}
	update := bson.M{
		"$set": bson.M{
			"display_name":   ident.Name,
			"email":          ident.Email,
			"avatar_url":     ident.Picture,
			"session_secret": secretDigest,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{
			"is_admin":   false,
			"is_online":  false,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	// Two first logins racing on the same subject can both attempt the insert;
	// the loser hits the unique index and succeeds on retry as an update.
	var mu mongoUser
	for attempt := 0; ; attempt++ {
		err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&mu)
		if err == nil {
			break
		}
		if mongo.IsDuplicateKeyError(err) {
			if attempt == 0 {
				continue
			}
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("upsert session: %w", err)
	}
	return mu.toDomain(), nil
}

// ClearSession unconditionally nulls the session secret and marks the account
// offline.
func (r *UserRepository) ClearSession(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, clearSessionUpdate())
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ClearSessionIf clears the session only while the stored digest still equals
// secretDigest. It reports whether a session was cleared.
func (r *UserRepository) ClearSessionIf(ctx context.Context, id, secretDigest string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid, "session_secret": secretDigest}, clearSessionUpdate())
	if err != nil {
		return false, fmt.Errorf("clear session: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func clearSessionUpdate() bson.M {
	return bson.M{"$set": bson.M{
		"session_secret": nil,
		"is_online":      false,
		"updated_at":     time.Now().UTC(),
	}}
}

func (r *UserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"is_admin": isAdmin, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var mu mongoUser
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("set admin: %w", err)
	}
	return mu.toDomain(), nil
}

// SetPresence records the online flag and last activity time. Missing
// accounts are ignored: the account may have been deleted while connected.
func (r *UserRepository) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"is_online": online, "last_active_at": at}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique indexes on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "google_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "is_online", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
