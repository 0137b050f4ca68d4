package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Credential is a user's authentication record, stored separately from the
// OrgUser profile. Deleting a user must remove both; if they have diverged,
// the delete reconciles by removing whichever remains.
type Credential struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID       string             `json:"user_id" bson:"user_id"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password_hash"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}
