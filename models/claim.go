package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimStatus is the review state of a claim
type ClaimStatus string

const (
	ClaimStatusPending       ClaimStatus = "pending"
	ClaimStatusApproved      ClaimStatus = "approved"
	ClaimStatusDenied        ClaimStatus = "denied"
	ClaimStatusAppealed      ClaimStatus = "appealed"
	ClaimStatusInfoRequested ClaimStatus = "info-requested"
)

// ClaimStatuses lists every accepted status value
var ClaimStatuses = []ClaimStatus{
	ClaimStatusPending,
	ClaimStatusApproved,
	ClaimStatusDenied,
	ClaimStatusAppealed,
	ClaimStatusInfoRequested,
}

// Valid reports whether s is one of the known statuses
func (s ClaimStatus) Valid() bool {
	for _, known := range ClaimStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Provider types
const (
	ProviderTypePsychologist = "psychologist"
	ProviderTypePsychiatrist = "psychiatrist"
	ProviderTypeTherapist    = "therapist"
	ProviderTypeOther        = "other"
)

// Service types
const (
	ServiceTypeIndividualTherapy    = "individual-therapy"
	ServiceTypeGroupTherapy         = "group-therapy"
	ServiceTypeMedicationManagement = "medication-management"
	ServiceTypeEvaluation           = "evaluation"
	ServiceTypeOther                = "other"
)

// Defaults applied on create
const (
	DefaultPlaceOfService        = "11" // office
	DefaultPaymentCollected      = "0"
	DefaultProviderNetworkStatus = "in-network"
)

// Document field paths used in claim predicates and updates
const (
	ClaimPrimaryKeyField = "_id"
	ClaimReferenceField  = "claimId"
	FileReferencesField  = "service.uploadedFiles"
)

// Claim is the aggregate stored in the claims collection.
// File references live under service.uploadedFiles and only grow by append.
type Claim struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ClaimID     string             `bson:"claimId" json:"claimId"`
	Provider    Provider           `bson:"provider" json:"provider"`
	Patient     Patient            `bson:"patient" json:"patient"`
	Service     Service            `bson:"service" json:"service"`
	Status      ClaimStatus        `bson:"status" json:"status"`
	SubmittedAt time.Time          `bson:"submittedAt" json:"submittedAt"`
	UpdatedAt   *time.Time         `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	Extraction  []FileExtraction   `bson:"extraction,omitempty" json:"extraction,omitempty"`

	// StringID is set instead of ID on records imported with string primary keys
	StringID string `bson:"-" json:"-"`
}

// FileReferences returns the blob ids attached to the claim in arrival order
func (c *Claim) FileReferences() []string {
	return c.Service.UploadedFiles
}

type Provider struct {
	ProviderType    string `bson:"providerType" json:"providerType" binding:"required,oneof=psychologist psychiatrist therapist other"`
	ProviderName    string `bson:"providerName" json:"providerName" binding:"required"`
	ProviderNPI     string `bson:"providerNPI,omitempty" json:"providerNPI,omitempty"`
	ProviderTaxID   string `bson:"providerTaxId,omitempty" json:"providerTaxId,omitempty"`
	ProviderLicense string `bson:"providerLicense,omitempty" json:"providerLicense,omitempty"`
	PracticeName    string `bson:"practiceName,omitempty" json:"practiceName,omitempty"`
	ProviderAddress string `bson:"providerAddress,omitempty" json:"providerAddress,omitempty"`
	ProviderPhone   string `bson:"providerPhone,omitempty" json:"providerPhone,omitempty"`
	ProviderEmail   string `bson:"providerEmail,omitempty" json:"providerEmail,omitempty"`
	NetworkStatus   string `bson:"networkStatus" json:"networkStatus"`
}

type Patient struct {
	PatientName              string `bson:"patientName" json:"patientName" binding:"required"`
	PatientDob               string `bson:"patientDob,omitempty" json:"patientDob,omitempty"`
	PatientInsuranceID       string `bson:"patientInsuranceId,omitempty" json:"patientInsuranceId,omitempty"`
	PatientInsuranceProvider string `bson:"patientInsuranceProvider" json:"patientInsuranceProvider" binding:"required"`
	InsuranceEmail           string `bson:"insuranceEmail,omitempty" json:"insuranceEmail,omitempty"`
}

type Service struct {
	ServiceType        string   `bson:"serviceType" json:"serviceType" binding:"required,oneof=individual-therapy group-therapy medication-management evaluation other"`
	ServiceDate        string   `bson:"serviceDate" json:"serviceDate" binding:"required"`
	TotalCharge        string   `bson:"totalCharge" json:"totalCharge" binding:"required"`
	CPTCode            string   `bson:"cptCode,omitempty" json:"cptCode,omitempty"`
	DiagnosisCode      string   `bson:"diagnosisCode,omitempty" json:"diagnosisCode,omitempty"`
	PlaceOfService     string   `bson:"placeOfService" json:"placeOfService"`
	PaymentCollected   string   `bson:"paymentCollected" json:"paymentCollected"`
	ServiceDescription string   `bson:"serviceDescription,omitempty" json:"serviceDescription,omitempty"`
	UploadedFiles      []string `bson:"uploadedFiles" json:"uploadedFiles"`
}

// ClaimInput is the request body for create and update
type ClaimInput struct {
	Provider Provider    `json:"provider" binding:"required"`
	Patient  Patient     `json:"patient" binding:"required"`
	Service  Service     `json:"service" binding:"required"`
	Status   ClaimStatus `json:"status,omitempty"`
	ClaimID  string      `json:"claimId,omitempty"`
}

// ClaimStatusUpdate is the request body for PATCH /claims/:claimId/status
type ClaimStatusUpdate struct {
	Status ClaimStatus `json:"status" binding:"required"`
}

// ClaimListQuery carries listing filters
type ClaimListQuery struct {
	Status ClaimStatus
	Limit  int64
	Offset int64
}

// ClaimResponse wraps a single claim
type ClaimResponse struct {
	Claim *Claim `json:"claim"`
}

// ClaimsResponse wraps a page of claims
type ClaimsResponse struct {
	Claims []Claim `json:"claims"`
	Total  int64   `json:"total"`
}

// FileExtraction is the structured output recorded by background processing
type FileExtraction struct {
	FileID      string       `bson:"file_id" json:"file_id"`
	Filename    string       `bson:"filename" json:"filename"`
	HealthClaim *HealthClaim `bson:"health_claim,omitempty" json:"health_claim,omitempty"`
	Error       string       `bson:"error,omitempty" json:"error,omitempty"`
	ProcessedAt time.Time    `bson:"processed_at" json:"processed_at"`
}
