package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientType distinguishes individual and company clients.
type ClientType string

const (
	ClientIndividual ClientType = "individual"
	ClientCompany    ClientType = "company"
)

// IsValidClientType checks if a client type is known.
func IsValidClientType(t ClientType) bool {
	return t == ClientIndividual || t == ClientCompany
}

// Client is a customer record. Individual clients carry a personal name;
// company clients carry a company name plus main phone/email and may own
// contacts. Deleting a client removes its contacts but leaves tickets'
// denormalized snapshots untouched.
type Client struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type           ClientType         `json:"type" bson:"type"`
	OrganizationID string             `json:"organization_id" bson:"organization_id"`

	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	CompanyName string `json:"company_name,omitempty" bson:"company_name,omitempty"`
	Phone       string `json:"phone,omitempty" bson:"phone,omitempty"`
	Email       string `json:"email,omitempty" bson:"email,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DisplayName returns the name shown on tickets and lists.
func (c *Client) DisplayName() string {
	if c.Type == ClientCompany {
		return c.CompanyName
	}
	return c.Name
}

// Contact is a person at a company client. Contacts exist only under
// company-type clients.
type Contact struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ClientID       string             `json:"client_id" bson:"client_id"`
	OrganizationID string             `json:"organization_id" bson:"organization_id"`
	Name           string             `json:"name" bson:"name"`
	Phone          string             `json:"phone" bson:"phone"`
	Email          string             `json:"email,omitempty" bson:"email,omitempty"`
}
