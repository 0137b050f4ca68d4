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

// MongoClientStore implements ClientStore over MongoDB.
type MongoClientStore struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoClientStore(client *mongo.Client, db *mongo.Database) *MongoClientStore {
	return &MongoClientStore{Client: client, DB: db}
}

func (s *MongoClientStore) clients() *mongo.Collection {
	return s.DB.Collection(ClientsCollection)
}

func (s *MongoClientStore) contacts() *mongo.Collection {
	return s.DB.Collection(ContactsCollection)
}

// InsertClient inserts a new client and returns its id.
func (s *MongoClientStore) InsertClient(ctx context.Context, client models.Client) (string, error) {
	if client.ID.IsZero() {
		client.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	if _, err := s.clients().InsertOne(ctx, client); err != nil {
		return "", apperr.Store("insert client", err)
	}
	return client.ID.Hex(), nil
}

// UpdateClient replaces a client's mutable fields.
func (s *MongoClientStore) UpdateClient(ctx context.Context, client models.Client) error {
	client.UpdatedAt = time.Now().UTC()
	result, err := s.clients().UpdateOne(ctx,
		bson.M{"_id": client.ID, "organization_id": client.OrganizationID},
		bson.M{"$set": bson.M{
			"type":         client.Type,
			"name":         client.Name,
			"company_name": client.CompanyName,
			"phone":        client.Phone,
			"email":        client.Email,
			"updated_at":   client.UpdatedAt,
		}})
	if err != nil {
		return apperr.Store("update client", err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteClient removes a client and cascade-deletes its contacts in one
// transaction. Tickets referencing the client keep their snapshots.
func (s *MongoClientStore) DeleteClient(ctx context.Context, orgID, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	err = withTransaction(ctx, s.Client, func(sc mongo.SessionContext) error {
		result, err := s.clients().DeleteOne(sc, bson.M{"_id": objectID, "organization_id": orgID})
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return apperr.ErrNotFound
		}
		_, err = s.contacts().DeleteMany(sc, bson.M{"client_id": id, "organization_id": orgID})
		return err
	})
	return apperr.Store("delete client", err)
}

// FindClientByID finds a client by its id within the organization.
func (s *MongoClientStore) FindClientByID(ctx context.Context, orgID, id string) (*models.Client, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var client models.Client
	err = s.clients().FindOne(ctx, bson.M{"_id": objectID, "organization_id": orgID}).Decode(&client)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store("find client", err)
	}
	return &client, nil
}

// ListClients returns all clients of an organization.
func (s *MongoClientStore) ListClients(ctx context.Context, orgID string) ([]models.Client, error) {
	cursor, err := s.clients().Find(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return nil, apperr.Store("list clients", err)
	}
	defer cursor.Close(ctx)
	clients := []models.Client{}
	if err := cursor.All(ctx, &clients); err != nil {
		return nil, apperr.Store("list clients", err)
	}
	return clients, nil
}

// InsertContact inserts a contact under a client and returns its id.
func (s *MongoClientStore) InsertContact(ctx context.Context, contact models.Contact) (string, error) {
	if contact.ID.IsZero() {
		contact.ID = primitive.NewObjectID()
	}
	if _, err := s.contacts().InsertOne(ctx, contact); err != nil {
		return "", apperr.Store("insert contact", err)
	}
	return contact.ID.Hex(), nil
}

// UpdateContact replaces a contact's fields.
func (s *MongoClientStore) UpdateContact(ctx context.Context, contact models.Contact) error {
	result, err := s.contacts().UpdateOne(ctx,
		bson.M{"_id": contact.ID, "organization_id": contact.OrganizationID, "client_id": contact.ClientID},
		bson.M{"$set": bson.M{
			"name":  contact.Name,
			"phone": contact.Phone,
			"email": contact.Email,
		}})
	if err != nil {
		return apperr.Store("update contact", err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteContact removes a single contact.
func (s *MongoClientStore) DeleteContact(ctx context.Context, orgID, clientID, contactID string) error {
	objectID, err := primitive.ObjectIDFromHex(contactID)
	if err != nil {
		return apperr.ErrNotFound
	}
	result, err := s.contacts().DeleteOne(ctx,
		bson.M{"_id": objectID, "organization_id": orgID, "client_id": clientID})
	if err != nil {
		return apperr.Store("delete contact", err)
	}
	if result.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// FindContactByID finds a contact within the organization.
func (s *MongoClientStore) FindContactByID(ctx context.Context, orgID, contactID string) (*models.Contact, error) {
	objectID, err := primitive.ObjectIDFromHex(contactID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var contact models.Contact
	err = s.contacts().FindOne(ctx, bson.M{"_id": objectID, "organization_id": orgID}).Decode(&contact)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store("find contact", err)
	}
	return &contact, nil
}

// ContactsForClient lists the contacts owned by one client.
func (s *MongoClientStore) ContactsForClient(ctx context.Context, orgID, clientID string) ([]models.Contact, error) {
	cursor, err := s.contacts().Find(ctx, bson.M{"organization_id": orgID, "client_id": clientID})
	if err != nil {
		return nil, apperr.Store("list contacts", err)
	}
	defer cursor.Close(ctx)
	contacts := []models.Contact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, apperr.Store("list contacts", err)
	}
	return contacts, nil
}
