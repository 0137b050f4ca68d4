package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/models"
)

// MongoUserStore implements UserStore over MongoDB. Every profile read
// normalizes legacy permission shapes before the record leaves this layer.
type MongoUserStore struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoUserStore(client *mongo.Client, db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{Client: client, DB: db}
}

func (s *MongoUserStore) users() *mongo.Collection {
	return s.DB.Collection(UsersCollection)
}

func (s *MongoUserStore) credentials() *mongo.Collection {
	return s.DB.Collection(CredentialsCollection)
}

// CreateWithCredential inserts the profile and credential in one
// transaction and returns the new user id. A duplicate email maps to
// ErrDuplicateEmail.
func (s *MongoUserStore) CreateWithCredential(ctx context.Context, user models.OrgUser, cred models.Credential) (string, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	cred.ID = primitive.NewObjectID()
	cred.UserID = user.ID.Hex()
	cred.Email = user.Email
	cred.CreatedAt = now
	cred.UpdatedAt = now

	err := withTransaction(ctx, s.Client, func(sc mongo.SessionContext) error {
		if _, err := s.users().InsertOne(sc, user); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return apperr.ErrDuplicateEmail
			}
			return err
		}
		if _, err := s.credentials().InsertOne(sc, cred); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return apperr.ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", apperr.Store("create user", err)
	}
	return user.ID.Hex(), nil
}

// FindByID finds a user profile by id.
func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.OrgUser, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var user models.OrgUser
	err = s.users().FindOne(ctx, bson.M{"_id": objectID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store("find user", err)
	}
	user.Normalize()
	return &user, nil
}

// List returns the users of one organization.
func (s *MongoUserStore) List(ctx context.Context, orgID string) ([]models.OrgUser, error) {
	cursor, err := s.users().Find(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return nil, apperr.Store("list users", err)
	}
	defer cursor.Close(ctx)
	users := []models.OrgUser{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, apperr.Store("list users", err)
	}
	for i := range users {
		users[i].Normalize()
	}
	return users, nil
}

// UpdatePermissions replaces a user's permission set and clears any legacy
// is_admin flag so the record has exactly one authoritative shape.
func (s *MongoUserStore) UpdatePermissions(ctx context.Context, id string, perms models.PermissionSet) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	result, err := s.users().UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{
		"$set":   bson.M{"permissions": perms, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"is_admin": ""},
	})
	if err != nil {
		return apperr.Store("update permissions", err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteProfile removes a user profile. ErrNotFound if it was already gone.
func (s *MongoUserStore) DeleteProfile(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	result, err := s.users().DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return apperr.Store("delete user", err)
	}
	if result.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// FindCredentialByEmail finds the authentication record for an email.
func (s *MongoUserStore) FindCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var cred models.Credential
	err := s.credentials().FindOne(ctx, bson.M{"email": email}).Decode(&cred)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store("find credential", err)
	}
	return &cred, nil
}

// DeleteCredential removes a user's authentication record. ErrNotFound if
// it was already gone.
func (s *MongoUserStore) DeleteCredential(ctx context.Context, userID string) error {
	result, err := s.credentials().DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return apperr.Store("delete credential", err)
	}
	if result.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
