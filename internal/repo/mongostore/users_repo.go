package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/geocoder89/collegehub/internal/observability"
	"github.com/geocoder89/collegehub/internal/repo/protected"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const usersCollection = "users"

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d userDocument) toUser() user.User {
	return user.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		Role:         user.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type UsersRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
	prom   *observability.Prom

	// indexed is set once the unique email index is known to exist.
	indexed atomic.Bool
}

func NewUsersRepo(client *mongo.Client, database string, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		client: client,
		coll:   client.Database(database).Collection(usersCollection),
		prom:   prom,
	}
}

// EnsureIndexes creates the unique email index. Registration relies on it
// to settle concurrent sign-ups for the same address, so Create refuses to
// write until this has succeeded once.
func (r *UsersRepo) EnsureIndexes(ctx context.Context) error {
	if r.indexed.Load() {
		return nil
	}

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_uniq"),
	})
	if err != nil {
		return err
	}

	r.indexed.Store(true)
	return nil
}

func (r *UsersRepo) Create(ctx context.Context, name, email, passwordHash string, role user.Role) (user.User, error) {
	if err := r.EnsureIndexes(ctx); err != nil {
		return user.User{}, fmt.Errorf("%w: email index: %w", protected.ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     user.NormalizeEmail(email),
		Password:  passwordHash,
		Role:      string(role),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.prom.ObserveStore("users.create", func() error {
		_, e := r.coll.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(e) {
			return user.ErrEmailAlreadyUsed
		}
		return e
	})

	if err != nil {
		return user.User{}, err
	}

	return doc.toUser(), nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"email": user.NormalizeEmail(email)})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": oid})
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var doc userDocument

	err := r.prom.ObserveStore(op, func() error {
		e := r.coll.FindOne(ctx, filter).Decode(&doc)
		if errors.Is(e, mongo.ErrNoDocuments) {
			return user.ErrNotFound
		}
		return e
	})

	if err != nil {
		return user.User{}, err
	}

	return doc.toUser(), nil
}
