package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryType classifies an audit entry.
type HistoryType string

const (
	HistoryCreated       HistoryType = "Created"
	HistoryStatusChanged HistoryType = "StatusChanged"
	HistoryNoteAdded     HistoryType = "NoteAdded"
	HistoryDataEdited    HistoryType = "DataEdited"
)

// HistoryEntry is an immutable audit record describing one state transition
// of a ticket. Entries are created only by the ticket lifecycle manager,
// inside the same transaction as the ticket write, and are never edited or
// deleted individually. OrganizationID is denormalized so the org-wide
// history feed can query across tickets.
type HistoryEntry struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type            HistoryType        `json:"type" bson:"type"`
	Details         string             `json:"details" bson:"details"`
	User            string             `json:"user" bson:"user"`
	Timestamp       time.Time          `json:"timestamp" bson:"timestamp"`
	ServiceItemID   string             `json:"service_item_id" bson:"service_item_id"`
	ServiceItemName string             `json:"service_item_name" bson:"service_item_name"`
	OrganizationID  string             `json:"organization_id" bson:"organization_id"`
}
