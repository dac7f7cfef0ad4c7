package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Extraction status values for records created by the async upload path.
// A record created through the regular form flow has an empty status.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Book struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InputDate           string             `bson:"inputDate" json:"inputDate"` // YYYY-MM-DD
	Author              string             `bson:"author" json:"author"`
	Title               string             `bson:"title" json:"title"`
	Edition             string             `bson:"edition" json:"edition"`
	PublicationCity     string             `bson:"publicationCity" json:"publicationCity"`
	Publisher           string             `bson:"publisher" json:"publisher"`
	PublicationYear     string             `bson:"publicationYear" json:"publicationYear"`
	PhysicalDescription string             `bson:"physicalDescription" json:"physicalDescription"`
	Source              string             `bson:"source" json:"source"`
	Subject             string             `bson:"subject" json:"subject"`
	CallNumber          string             `bson:"callNumber" json:"callNumber"`
	ISBN                string             `bson:"isbn" json:"isbn"`
	Level               string             `bson:"level" json:"level"`
	ExemplarCount       int                `bson:"exemplarCount" json:"exemplarCount"`
	Status              string             `bson:"status,omitempty" json:"status,omitempty"`
	ScanKey             string             `bson:"scanKey,omitempty" json:"scanKey,omitempty"` // object key of the archived page scan in S3

	// Normalized match keys maintained by the store; these back the unique
	// indexes used for duplicate reconciliation.
	TitleKey  string `bson:"titleKey,omitempty" json:"-"`
	AuthorKey string `bson:"authorKey,omitempty" json:"-"`
	ISBNKey   string `bson:"isbnKey,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
