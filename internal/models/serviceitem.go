package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServiceStatus is the workflow state of a service ticket.
type ServiceStatus string

const (
	StatusReceived         ServiceStatus = "Received"
	StatusDiagnosing       ServiceStatus = "Diagnosing"
	StatusAwaitingParts    ServiceStatus = "AwaitingParts"
	StatusRepairing        ServiceStatus = "Repairing"
	StatusReadyForPickup   ServiceStatus = "ReadyForPickup"
	StatusReturnedToClient ServiceStatus = "ReturnedToClient"
)

// ServiceStatuses lists all statuses in intended forward order. Backward
// transitions are allowed; the order is informational only.
var ServiceStatuses = []ServiceStatus{
	StatusReceived,
	StatusDiagnosing,
	StatusAwaitingParts,
	StatusRepairing,
	StatusReadyForPickup,
	StatusReturnedToClient,
}

// IsValidStatus checks if a status is one of the known workflow states.
func IsValidStatus(s ServiceStatus) bool {
	for _, known := range ServiceStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Note is a single append-only service note embedded in a ticket.
type Note struct {
	ID        string    `json:"id" bson:"id"`
	Text      string    `json:"text" bson:"text"`
	User      string    `json:"user" bson:"user"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// ServiceItem represents one device under repair. The TagID is the external
// NFC tag or barcode value, unique within the organization and never
// reassigned after intake. Client name/phone/email are a snapshot taken when
// the client was assigned, not a live join.
type ServiceItem struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TagID          string             `json:"tag_id" bson:"tag_id"`
	OrganizationID string             `json:"organization_id" bson:"organization_id"`

	ClientID  string `json:"client_id,omitempty" bson:"client_id,omitempty"`
	ContactID string `json:"contact_id,omitempty" bson:"contact_id,omitempty"`

	ClientName  string `json:"client_name" bson:"client_name"`
	ClientPhone string `json:"client_phone" bson:"client_phone"`
	ClientEmail string `json:"client_email,omitempty" bson:"client_email,omitempty"`

	DeviceName    string `json:"device_name" bson:"device_name"`
	DeviceModel   string `json:"device_model,omitempty" bson:"device_model,omitempty"`
	SerialNumber  string `json:"serial_number,omitempty" bson:"serial_number,omitempty"`
	ReportedFault string `json:"reported_fault" bson:"reported_fault"`

	Status          ServiceStatus `json:"status" bson:"status"`
	AssignedTo      string        `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	AssignedToName  string        `json:"assigned_to_name,omitempty" bson:"assigned_to_name,omitempty"`
	NextServiceDate *time.Time    `json:"next_service_date,omitempty" bson:"next_service_date,omitempty"`

	DateReceived time.Time `json:"date_received" bson:"date_received"`
	LastUpdated  time.Time `json:"last_updated" bson:"last_updated"`
	ServiceNotes []Note    `json:"service_notes" bson:"service_notes"`
}

// NewDraft initializes a ticket stub for a freshly scanned identifier:
// default status, current timestamps, empty notes.
func NewDraft(organizationID, tagID string, now time.Time) ServiceItem {
	return ServiceItem{
		TagID:          tagID,
		OrganizationID: organizationID,
		Status:         StatusReceived,
		DateReceived:   now,
		LastUpdated:    now,
		ServiceNotes:   []Note{},
	}
}
