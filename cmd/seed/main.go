package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"claims-intake-platform/internal/auth"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/internal/config"
	"claims-intake-platform/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sampleClaimID = "MH-2023-TEST1"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	repo := claims.NewMongoRepository(client.Database(cfg.DBName).Collection(config.ClaimsCollection), nil)
	svc := claims.NewService(repo, claims.NewLinkage(repo), claims.ServiceOptions{})

	// Check if the sample claim already exists
	existing, err := svc.Get(ctx, sampleClaimID)
	switch {
	case err == nil:
		fmt.Println("Sample claim already exists")
		fmt.Printf("   Claim ID: %s\n", existing.ClaimID)
		fmt.Printf("   Object ID: %s\n", existing.ID.Hex())
	case errors.Is(err, claims.ErrNotFound):
		claim, err := svc.Create(ctx, sampleClaim())
		if err != nil {
			log.Fatalf("Failed to insert sample claim: %v", err)
		}
		fmt.Println("Sample claim inserted successfully!")
		fmt.Printf("   Claim ID: %s\n", claim.ClaimID)
		fmt.Printf("   Object ID: %s\n", claim.ID.Hex())
	default:
		log.Fatalf("Failed to look up sample claim: %v", err)
	}

	// A development token is printed when signing is configured
	if cfg.AccessSecret == "" {
		return
	}
	userID := os.Getenv("SEED_USER_ID")
	if userID == "" {
		userID = "dev-uploader"
	}
	tokens, err := auth.NewTokens(cfg.AccessSecret, nil)
	if err != nil {
		log.Fatalf("Failed to initialize tokens: %v", err)
	}
	signed, _, err := tokens.Issue(userID, "uploader", 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Printf("\nDevelopment token for %s (valid 24h):\n%s\n", userID, signed)
}

func sampleClaim() models.ClaimInput {
	return models.ClaimInput{
		ClaimID: sampleClaimID,
		Status:  models.ClaimStatusPending,
		Provider: models.Provider{
			ProviderType:    models.ProviderTypePsychologist,
			ProviderName:    "Dr. Jane Smith",
			ProviderNPI:     "1234567890",
			ProviderLicense: "PSY12345",
			PracticeName:    "Mental Health Wellness Center",
			ProviderAddress: "123 Main St, Boston, MA 02115",
			ProviderPhone:   "617-555-1234",
			ProviderEmail:   "drsmith@mhwc.com",
			NetworkStatus:   models.DefaultProviderNetworkStatus,
		},
		Patient: models.Patient{
			PatientName:              "John Doe",
			PatientDob:               "1985-06-15",
			PatientInsuranceID:       "INS123456789",
			PatientInsuranceProvider: "Blue Cross Blue Shield",
			InsuranceEmail:           "claims@bcbs.com",
		},
		Service: models.Service{
			ServiceType:        models.ServiceTypeIndividualTherapy,
			ServiceDate:        "2023-10-15",
			TotalCharge:        "150.00",
			CPTCode:            "90834",
			DiagnosisCode:      "F41.1",
			PlaceOfService:     models.DefaultPlaceOfService,
			PaymentCollected:   "25.00",
			ServiceDescription: "Individual psychotherapy, 45 minutes",
		},
	}
}
