package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HealthClaim is the structured record extracted from a claim document
type HealthClaim struct {
	Condition               string `bson:"condition" json:"condition"`
	Date                    string `bson:"date" json:"date"`
	HealthInsuranceProvider string `bson:"health_insurance_provider" json:"health_insurance_provider"`
	RequestedTreatment      string `bson:"requested_treatment" json:"requested_treatment"`
	Explanation             string `bson:"explanation" json:"explanation"`
}

// AppealGuidance is returned by POST /get-appeal-guidance
type AppealGuidance struct {
	Guidelines []string `json:"guidelines"`
	Reasoning  string   `json:"reasoning"`
}

// DraftEmailRequest is the body of POST /draft-email
type DraftEmailRequest struct {
	Content string `json:"content" binding:"required"`
}

// DraftEmailResponse carries the drafted e-mail and the precedent it used
type DraftEmailResponse struct {
	Email     string     `json:"email"`
	Precedent *Precedent `json:"precedent"`
}

// Precedent is a prior coverage decision indexed for similarity search.
// Vector is excluded from JSON responses.
type Precedent struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Decision     string             `bson:"decision" json:"decision"`
	DecisionDate string             `bson:"decision_date,omitempty" json:"decision_date,omitempty"`
	CoverageType string             `bson:"coverage_type,omitempty" json:"coverage_type,omitempty"`
	Condition    string             `bson:"condition,omitempty" json:"condition,omitempty"`
	Treatment    string             `bson:"treatment,omitempty" json:"treatment,omitempty"`
	Rationale    string             `bson:"rationale" json:"rationale"`
	Source       string             `bson:"source,omitempty" json:"source,omitempty"`
	Vector       []float32          `bson:"vector,omitempty" json:"-"`
	Score        float64            `bson:"score,omitempty" json:"score,omitempty"`
	IndexedAt    time.Time          `bson:"indexed_at" json:"indexed_at"`
}
