package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/models"
)

// MongoTicketStore implements TicketStore and HistoryStore over MongoDB.
// Ticket writes and their history entries share one transaction, mirroring
// the atomic batch the audit trail depends on.
type MongoTicketStore struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoTicketStore(client *mongo.Client, db *mongo.Database) *MongoTicketStore {
	return &MongoTicketStore{Client: client, DB: db}
}

func (s *MongoTicketStore) tickets() *mongo.Collection {
	return s.DB.Collection(TicketsCollection)
}

func (s *MongoTicketStore) history() *mongo.Collection {
	return s.DB.Collection(HistoryCollection)
}

// FindByTag looks up at most one ticket whose tag equals the identifier
// within the organization.
func (s *MongoTicketStore) FindByTag(ctx context.Context, orgID, tagID string) (*models.ServiceItem, error) {
	var item models.ServiceItem
	err := s.tickets().FindOne(ctx, bson.M{"organization_id": orgID, "tag_id": tagID}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store("find ticket by tag", err)
	}
	return &item, nil
}

// FindByID finds a ticket by its record id, scoped to the organization.
func (s *MongoTicketStore) FindByID(ctx context.Context, orgID, id string) (*models.ServiceItem, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	var item models.ServiceItem
	err = s.tickets().FindOne(ctx, bson.M{"_id": objectID, "organization_id": orgID}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Store("find ticket", err)
	}
	return &item, nil
}

// List returns all tickets of an organization.
func (s *MongoTicketStore) List(ctx context.Context, orgID string) ([]models.ServiceItem, error) {
	cursor, err := s.tickets().Find(ctx, bson.M{"organization_id": orgID},
		options.Find().SetSort(bson.D{{Key: "last_updated", Value: -1}}))
	if err != nil {
		return nil, apperr.Store("list tickets", err)
	}
	defer cursor.Close(ctx)
	items := []models.ServiceItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, apperr.Store("list tickets", err)
	}
	return items, nil
}

// CreateWithHistory inserts the ticket and its derived history entries in
// one transaction and returns the new record id. A duplicate tag within the
// organization maps to ErrDuplicateIdentifier.
func (s *MongoTicketStore) CreateWithHistory(ctx context.Context, item models.ServiceItem, entries []models.HistoryEntry) (string, error) {
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	err := withTransaction(ctx, s.Client, func(sc mongo.SessionContext) error {
		if _, err := s.tickets().InsertOne(sc, item); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return apperr.ErrDuplicateIdentifier
			}
			return err
		}
		return s.insertEntries(sc, item.ID.Hex(), entries)
	})
	if err != nil {
		return "", apperr.Store("create ticket", err)
	}
	return item.ID.Hex(), nil
}

// UpdateWithHistory applies the proposed ticket state, appends the optional
// note, and inserts the new history entries, all in one transaction. Only
// mutable fields are written; tag, organization and date received never
// change after intake, and service_notes only grows via the note push.
func (s *MongoTicketStore) UpdateWithHistory(ctx context.Context, item models.ServiceItem, note *models.Note, entries []models.HistoryEntry) error {
	set := bson.M{
		"client_id":         item.ClientID,
		"contact_id":        item.ContactID,
		"client_name":       item.ClientName,
		"client_phone":      item.ClientPhone,
		"client_email":      item.ClientEmail,
		"device_name":       item.DeviceName,
		"device_model":      item.DeviceModel,
		"serial_number":     item.SerialNumber,
		"reported_fault":    item.ReportedFault,
		"status":            item.Status,
		"assigned_to":       item.AssignedTo,
		"assigned_to_name":  item.AssignedToName,
		"next_service_date": item.NextServiceDate,
		"last_updated":      item.LastUpdated,
	}
	update := bson.M{"$set": set}
	if note != nil {
		update["$push"] = bson.M{"service_notes": note}
	}

	err := withTransaction(ctx, s.Client, func(sc mongo.SessionContext) error {
		result, err := s.tickets().UpdateOne(sc,
			bson.M{"_id": item.ID, "organization_id": item.OrganizationID}, update)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return apperr.ErrNotFound
		}
		return s.insertEntries(sc, item.ID.Hex(), entries)
	})
	return apperr.Store("update ticket", err)
}

// DeleteWithHistory removes the ticket and its entire history subcollection
// in one transaction.
func (s *MongoTicketStore) DeleteWithHistory(ctx context.Context, orgID, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	err = withTransaction(ctx, s.Client, func(sc mongo.SessionContext) error {
		result, err := s.tickets().DeleteOne(sc, bson.M{"_id": objectID, "organization_id": orgID})
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return apperr.ErrNotFound
		}
		_, err = s.history().DeleteMany(sc, bson.M{"service_item_id": id})
		return err
	})
	return apperr.Store("delete ticket", err)
}

func (s *MongoTicketStore) insertEntries(sc mongo.SessionContext, ticketID string, entries []models.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		entry.ID = primitive.NewObjectID()
		entry.ServiceItemID = ticketID
		docs = append(docs, entry)
	}
	_, err := s.history().InsertMany(sc, docs)
	return err
}

// ForTicket returns a ticket's history, newest first.
func (s *MongoTicketStore) ForTicket(ctx context.Context, orgID, ticketID string, limit int64) ([]models.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.history().Find(ctx,
		bson.M{"organization_id": orgID, "service_item_id": ticketID}, opts)
	if err != nil {
		return nil, apperr.Store("ticket history", err)
	}
	defer cursor.Close(ctx)
	entries := []models.HistoryEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, apperr.Store("ticket history", err)
	}
	return entries, nil
}

// ForOrganization returns the newest history entries across all tickets of
// an organization. The query needs the composite org/timestamp index; if it
// is missing the caller gets a ConfigError instead of a silent empty feed.
func (s *MongoTicketStore) ForOrganization(ctx context.Context, orgID string, limit int64) ([]models.HistoryEntry, error) {
	ok, err := hasIndex(ctx, s.history(), OrgHistoryIndexName)
	if err != nil {
		return nil, apperr.Store("org history", err)
	}
	if !ok {
		return nil, apperr.Config("missing history index "+OrgHistoryIndexName, nil)
	}

	if limit <= 0 {
		limit = 25
	}
	cursor, err := s.history().Find(ctx, bson.M{"organization_id": orgID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, apperr.Store("org history", err)
	}
	defer cursor.Close(ctx)
	entries := []models.HistoryEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, apperr.Store("org history", err)
	}
	return entries, nil
}
