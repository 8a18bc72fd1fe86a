package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intakeFixture struct {
	intake *IntakeService
	claims *claims.Service
	blobs  *blobstore.ChunkStore
	index  *blobstore.Index
}

func newIntakeFixture(t *testing.T, maxFileSize int64) *intakeFixture {
	t.Helper()
	blobRepo := blobstore.NewMemoryRepository()
	store := blobstore.NewChunkStore(blobRepo, blobRepo, blobstore.Options{ChunkSize: 64})
	index := blobstore.NewIndex(blobRepo)

	claimRepo := claims.NewMemoryRepository()
	linkage := claims.NewLinkage(claimRepo)
	svc := claims.NewService(claimRepo, linkage, claims.ServiceOptions{})

	return &intakeFixture{
		intake: NewIntakeService(store, index, linkage, maxFileSize),
		claims: svc,
		blobs:  store,
		index:  index,
	}
}

func (f *intakeFixture) createClaim(t *testing.T) *models.Claim {
	t.Helper()
	claim, err := f.claims.Create(context.Background(), models.ClaimInput{
		Provider: models.Provider{ProviderType: models.ProviderTypeTherapist, ProviderName: "Dr. Rivera"},
		Patient:  models.Patient{PatientName: "Sam Lee", PatientInsuranceProvider: "Acme Health"},
		Service:  models.Service{ServiceType: models.ServiceTypeIndividualTherapy, ServiceDate: "2025-03-01", TotalCharge: "150.00"},
	})
	require.NoError(t, err)
	return claim
}

func upload(name, content string) FileUpload {
	return FileUpload{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

type closeHook struct {
	io.Reader
	onClose func()
}

func (c closeHook) Close() error {
	c.onClose()
	return nil
}

func TestUploadFilesAttachesInArrivalOrder(t *testing.T) {
	f := newIntakeFixture(t, 0)
	claim := f.createClaim(t)
	ctx := context.Background()

	big := strings.Repeat("x", 200)
	report, err := f.intake.UploadFiles(ctx, claim.ClaimID, "user-7", []FileUpload{
		upload("denial.pdf", big),
		upload("letter.pdf", "short"),
	})
	require.NoError(t, err)
	require.Len(t, report.FileIDs, 2)
	assert.Equal(t, claim.ClaimID, report.ClaimID)
	assert.Empty(t, report.Error)

	updated, err := f.claims.Get(ctx, claim.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, report.FileIDs, updated.FileReferences())

	blob, err := f.intake.GetFile(ctx, report.FileIDs[0])
	require.NoError(t, err)
	assert.Equal(t, []byte(big), blob.Content)
	assert.Equal(t, claim.ClaimID, blob.Info.ClaimID)
	assert.Equal(t, "user-7", blob.Info.UserID)

	files, err := f.intake.ListUserFiles(ctx, "user-7")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestUploadFilesUnknownClaimStoresNothing(t *testing.T) {
	f := newIntakeFixture(t, 0)

	report, err := f.intake.UploadFiles(context.Background(), "MH-2025-none", "user-7", []FileUpload{upload("a.pdf", "data")})
	assert.ErrorIs(t, err, claims.ErrNotFound)
	assert.Nil(t, report)

	files, err := f.intake.ListUserFiles(context.Background(), "user-7")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadFilesReportsPerFileFailures(t *testing.T) {
	f := newIntakeFixture(t, 10)
	claim := f.createClaim(t)

	report, err := f.intake.UploadFiles(context.Background(), claim.ClaimID, "", []FileUpload{
		upload("ok.pdf", "12345"),
		upload("huge.pdf", strings.Repeat("y", 11)),
		{Filename: "broken.pdf", Open: func() (io.ReadCloser, error) { return nil, errors.New("disk gone") }},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Len(t, report.FileIDs, 1)

	assert.Equal(t, report.FileIDs[0], report.Results[0].FileID)
	assert.Contains(t, report.Results[1].Error, ErrFileTooLarge.Error())
	assert.Contains(t, report.Results[2].Error, "disk gone")
}

func TestUploadFilesUnderreportedSizeIsStillLimited(t *testing.T) {
	f := newIntakeFixture(t, 4)
	claim := f.createClaim(t)

	file := upload("lying.pdf", "more than four")
	file.Size = 1

	report, err := f.intake.UploadFiles(context.Background(), claim.ClaimID, "", []FileUpload{file})
	require.NoError(t, err)
	assert.Empty(t, report.FileIDs)
	assert.Contains(t, report.Results[0].Error, ErrFileTooLarge.Error())
}

type failingLinker struct {
	claim *models.Claim
	err   error
}

func (l failingLinker) Resolve(context.Context, string) (*models.Claim, error) {
	return l.claim, nil
}

func (l failingLinker) AttachFiles(context.Context, string, []string) (*models.Claim, error) {
	return nil, l.err
}

func TestUploadFilesAttachFailureKeepsBlobs(t *testing.T) {
	repo := blobstore.NewMemoryRepository()
	store := blobstore.NewChunkStore(repo, repo, blobstore.Options{})
	linker := failingLinker{
		claim: &models.Claim{ClaimID: "MH-2025-gone"},
		err:   claims.ErrNotFound,
	}
	intake := NewIntakeService(store, blobstore.NewIndex(repo), linker, 0)

	report, err := intake.UploadFiles(context.Background(), "MH-2025-gone", "", []FileUpload{upload("a.pdf", "payload")})
	require.Error(t, err)
	assert.ErrorIs(t, err, claims.ErrNotFound)
	require.NotNil(t, report)
	require.Len(t, report.FileIDs, 1)
	assert.NotEmpty(t, report.Error)

	blob, err := intake.GetFile(context.Background(), report.FileIDs[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), blob.Content)
}

func TestUploadFilesCancellationStopsRemainingFiles(t *testing.T) {
	f := newIntakeFixture(t, 0)
	claim := f.createClaim(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := FileUpload{
		Filename: "first.pdf",
		Size:     5,
		Open: func() (io.ReadCloser, error) {
			return closeHook{Reader: bytes.NewReader([]byte("first")), onClose: cancel}, nil
		},
	}

	report, err := f.intake.UploadFiles(ctx, claim.ClaimID, "", []FileUpload{first, upload("second.pdf", "second")})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	require.Len(t, report.FileIDs, 1)
	assert.Equal(t, "upload cancelled", report.Results[1].Error)

	updated, err := f.claims.Get(context.Background(), claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, report.FileIDs, updated.FileReferences())
}

func TestListClaimFiles(t *testing.T) {
	f := newIntakeFixture(t, 0)
	claim := f.createClaim(t)
	ctx := context.Background()

	report, err := f.intake.UploadFiles(ctx, claim.ID.Hex(), "", []FileUpload{upload("a.pdf", "a")})
	require.NoError(t, err)

	byRef, err := f.intake.ListClaimFiles(ctx, claim.ClaimID)
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	assert.Equal(t, report.FileIDs[0], byRef[0].FileID)

	byID, err := f.intake.ListByObjectID(ctx, claim.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, byRef, byID)

	unknown, err := f.intake.ListClaimFiles(ctx, "no-such-claim")
	require.NoError(t, err)
	assert.Empty(t, unknown)

	byMetadata, err := f.intake.ListByObjectID(ctx, claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, byRef, byMetadata)

	none, err := f.intake.ListByObjectID(ctx, "not-hex")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	f := newIntakeFixture(t, 0)
	claim := f.createClaim(t)
	ctx := context.Background()

	report, err := f.intake.UploadFiles(ctx, claim.ClaimID, "", []FileUpload{upload("a.pdf", "a")})
	require.NoError(t, err)
	id := report.FileIDs[0]

	deleted, err := f.intake.DeleteFile(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.intake.DeleteFile(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = f.intake.GetFile(ctx, id)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
