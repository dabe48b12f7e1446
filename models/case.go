package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Case lifecycle statuses. Only the job orchestrator writes these.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
	StatusNotFound   = "not_found"
)

// CaseIdentity is the tuple that identifies a case in the judicial portal.
type CaseIdentity struct {
	Jurisdiction string `bson:"jurisdiction" json:"jurisdiction" binding:"required"`
	Court        string `bson:"court" json:"court" binding:"required"`
	Tribunal     string `bson:"tribunal" json:"tribunal" binding:"required"`
	CaseType     string `bson:"case_type" json:"case_type" binding:"required"`
	Roll         int    `bson:"roll" json:"roll" binding:"required"`
	Year         int    `bson:"year" json:"year" binding:"required"`
}

// Title renders the human-readable case caption used in the registry.
func (id CaseIdentity) Title() string {
	return fmt.Sprintf("%s %d-%d (%s)", id.CaseType, id.Roll, id.Year, id.Tribunal)
}

// Case is a judicial matter tracked by the registry. Rows are never
// deleted; they remain as an audit trail of every acquisition attempt.
type Case struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Jurisdiction string             `bson:"jurisdiction" json:"jurisdiction"`
	Court        string             `bson:"court" json:"court"`
	Tribunal     string             `bson:"tribunal" json:"tribunal"`
	CaseType     string             `bson:"case_type" json:"case_type"`
	Roll         int                `bson:"roll" json:"roll"`
	Year         int                `bson:"year" json:"year"`
	Title        string             `bson:"title" json:"title"`
	DocDir       string             `bson:"doc_dir,omitempty" json:"doc_dir,omitempty"`
	StorePath    string             `bson:"store_path,omitempty" json:"store_path,omitempty"`
	Status       string             `bson:"status" json:"status"`
	LastError    string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Identity returns the portal identity tuple of the case.
func (c *Case) Identity() CaseIdentity {
	return CaseIdentity{
		Jurisdiction: c.Jurisdiction,
		Court:        c.Court,
		Tribunal:     c.Tribunal,
		CaseType:     c.CaseType,
		Roll:         c.Roll,
		Year:         c.Year,
	}
}

// DetailRow is one row of the case detail table on the portal. Rows with
// a submittable document form carry the action URL and the opaque dtaDoc
// token needed to download the attachment.
type DetailRow struct {
	Folio       string `bson:"folio" json:"folio"`
	DocURL      string `bson:"doc_url,omitempty" json:"doc_url,omitempty"`
	DocToken    string `bson:"doc_token,omitempty" json:"doc_token,omitempty"`
	Annex       string `bson:"annex,omitempty" json:"annex,omitempty"`
	Stage       string `bson:"stage" json:"stage"`
	Procedure   string `bson:"procedure" json:"procedure"`
	Description string `bson:"description" json:"description"`
	Page        string `bson:"page" json:"page"`
	Location    string `bson:"location" json:"location"`
}

// HasDocument reports whether the row carries a downloadable attachment.
func (r DetailRow) HasDocument() bool {
	return r.DocURL != "" && r.DocToken != ""
}
