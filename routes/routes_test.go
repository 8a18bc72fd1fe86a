package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/internal/precedent"
	"claims-intake-platform/models"
	"claims-intake-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type textExtractor struct{}

func (textExtractor) ExtractText(_ context.Context, content []byte) (*services.ExtractionResult, error) {
	return &services.ExtractionResult{Text: string(content), Pages: 1}, nil
}

type fixedGenerator struct {
	response string
	err      error
}

func (g fixedGenerator) Generate(context.Context, ai.Prompt) (string, error) {
	return g.response, g.err
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type recordingQueue struct {
	claimIDs   []string
	precedents []models.Precedent
}

func (q *recordingQueue) EnqueueClaimProcessing(_ context.Context, claimID string) (string, error) {
	q.claimIDs = append(q.claimIDs, claimID)
	return "task-claim", nil
}

func (q *recordingQueue) EnqueuePrecedentIndex(_ context.Context, precedents []models.Precedent) (string, error) {
	q.precedents = append(q.precedents, precedents...)
	return "task-precedent", nil
}

// failingStore fails every search the way an unauthorized Atlas cluster does
type failingStore struct{}

func (failingStore) Search(context.Context, []float32, int) ([]models.Precedent, error) {
	return nil, fmt.Errorf("precedent search: %w", errors.New("(Unauthorized) $vectorSearch not allowed"))
}

func (failingStore) Upsert(context.Context, []models.Precedent) (int64, error) {
	return 0, nil
}

type testServer struct {
	router *gin.Engine
	queue  *recordingQueue
}

func newTestServer(t *testing.T, generator ai.Generator, withQueue bool) *testServer {
	t.Helper()
	return newTestServerWithPrecedents(t, generator, withQueue, precedent.NewMemoryStore(models.Precedent{
		Decision:     "Overturned",
		CoverageType: "Behavioral health",
		Condition:    "depression",
		Treatment:    "TMS",
		Rationale:    "Two failed medication trials documented",
		Source:       "case-1",
		Vector:       []float32{1, 0},
	}))
}

func newTestServerWithPrecedents(t *testing.T, generator ai.Generator, withQueue bool, precedents precedent.Store) *testServer {
	t.Helper()
	blobRepo := blobstore.NewMemoryRepository()
	store := blobstore.NewChunkStore(blobRepo, blobRepo, blobstore.Options{ChunkSize: 16})

	claimRepo := claims.NewMemoryRepository()
	linkage := claims.NewLinkage(claimRepo)
	claimSvc := claims.NewService(claimRepo, linkage, claims.ServiceOptions{})

	deps := Dependencies{
		Claims:     claimSvc,
		Intake:     services.NewIntakeService(store, blobstore.NewIndex(blobRepo), linkage, 1024),
		Processing: services.NewProcessingService(textExtractor{}, generator, unitEmbedder{}, precedents, 3),
		Export:     services.NewExportService(claimSvc),
	}

	srv := &testServer{}
	if withQueue {
		srv.queue = &recordingQueue{}
		deps.Queue = srv.queue
	}

	srv.router = gin.New()
	SetupRoutes(srv.router, deps)
	return srv
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string]string, order ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sampleClaim() models.ClaimInput {
	return models.ClaimInput{
		Provider: models.Provider{ProviderType: models.ProviderTypePsychologist, ProviderName: "Dr. Chen"},
		Patient:  models.Patient{PatientName: "Alex Kim", PatientInsuranceProvider: "Acme Health"},
		Service:  models.Service{ServiceType: models.ServiceTypeEvaluation, ServiceDate: "2025-04-02", TotalCharge: "220.00"},
	}
}

func (s *testServer) createClaim(t *testing.T) *models.Claim {
	t.Helper()
	w := s.doJSON(http.MethodPost, "/claims", sampleClaim())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Claim
}

func TestClaimCRUD(t *testing.T) {
	s := newTestServer(t, nil, false)
	claim := s.createClaim(t)
	assert.NotEmpty(t, claim.ClaimID)
	assert.Equal(t, models.ClaimStatusPending, claim.Status)

	for _, id := range []string{claim.ClaimID, claim.ID.Hex()} {
		w := s.doJSON(http.MethodGet, "/claims/"+id, nil)
		assert.Equal(t, http.StatusOK, w.Code, id)
	}

	w := s.doJSON(http.MethodPatch, "/claims/"+claim.ClaimID+"/status", gin.H{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doJSON(http.MethodPatch, "/claims/"+claim.ClaimID+"/status", gin.H{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodGet, "/claims?status=approved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ClaimsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)

	w = s.doJSON(http.MethodGet, "/claims?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodDelete, "/claims/"+claim.ClaimID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.doJSON(http.MethodGet, "/claims/"+claim.ClaimID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"not_found"`)
}

func TestCreateClaimValidation(t *testing.T) {
	s := newTestServer(t, nil, false)
	w := s.doJSON(http.MethodPost, "/claims", gin.H{"provider": gin.H{"providerName": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadListDownloadDelete(t *testing.T) {
	s := newTestServer(t, nil, false)
	claim := s.createClaim(t)

	files := map[string]string{
		"a.pdf": "first document body that spans chunks",
		"b.txt": "second",
	}
	w := s.do(multipartRequest(t, "/claims/"+claim.ClaimID+"/files",
		map[string]string{"user_id": "user-7"}, files, "a.pdf", "b.txt"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var report models.FileUploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.FileIDs, 2)

	w = s.doJSON(http.MethodGet, "/claims/"+claim.ClaimID, nil)
	var got models.ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, report.FileIDs, got.Claim.FileReferences())

	for _, path := range []string{
		"/claims/" + claim.ClaimID + "/files",
		"/claims/by-object-id/" + claim.ID.Hex() + "/files",
		"/claims/user/user-7/files",
	} {
		w = s.doJSON(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		var listed models.FileListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
		assert.Equal(t, 2, listed.Total, path)
	}

	first := report.FileIDs[0]
	w = s.doJSON(http.MethodGet, "/claims/files/"+first+"?download=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, files["a.pdf"], w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename=a.pdf`)

	w = s.doJSON(http.MethodGet, "/claims/files/"+first, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.EqualValues(t, len(files["a.pdf"]), info.Length)
	assert.Equal(t, claim.ClaimID, info.ClaimID)

	w = s.doJSON(http.MethodDelete, "/claims/files/"+first, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.doJSON(http.MethodDelete, "/claims/files/"+first, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.doJSON(http.MethodGet, "/claims/files/"+first, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadPartialFailure(t *testing.T) {
	s := newTestServer(t, nil, false)
	claim := s.createClaim(t)

	files := map[string]string{
		"small.pdf": "ok",
		"large.pdf": strings.Repeat("x", 2048),
	}
	w := s.do(multipartRequest(t, "/claims/"+claim.ClaimID+"/files", nil, files, "small.pdf", "large.pdf"))
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	var report models.FileUploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Len(t, report.FileIDs, 1)
	require.Len(t, report.Results, 2)
	assert.NotEmpty(t, report.Results[1].Error)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, nil, false)

	w := s.do(multipartRequest(t, "/claims/MH-unknown/files", nil, map[string]string{"a.pdf": "x"}, "a.pdf"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	claim := s.createClaim(t)
	w = s.do(multipartRequest(t, "/claims/"+claim.ClaimID+"/files", map[string]string{"user_id": "u"}, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodGet, "/claims/by-object-id/not-hex/files", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestExportClaims(t *testing.T) {
	s := newTestServer(t, nil, false)
	s.createClaim(t)

	w := s.doJSON(http.MethodGet, "/claims/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Record-Count"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	w = s.doJSON(http.MethodGet, "/claims/export?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnqueueProcessing(t *testing.T) {
	s := newTestServer(t, nil, true)
	claim := s.createClaim(t)

	w := s.doJSON(http.MethodPost, "/claims/"+claim.ID.Hex()+"/process", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, []string{claim.ClaimID}, s.queue.claimIDs)

	w = s.doJSON(http.MethodPost, "/claims/MH-missing/process", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(http.MethodPost, "/precedents", []gin.H{{"decision": "Upheld", "rationale": "r", "source": "s-1"}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, s.queue.precedents, 1)
	assert.Equal(t, "s-1", s.queue.precedents[0].Source)

	w = s.doJSON(http.MethodPost, "/precedents", []gin.H{{"decision": "Upheld"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnqueueWithoutQueue(t *testing.T) {
	s := newTestServer(t, nil, false)
	claim := s.createClaim(t)

	w := s.doJSON(http.MethodPost, "/claims/"+claim.ClaimID+"/process", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "queue_unavailable")
}

func TestProcessPDFsEndpoint(t *testing.T) {
	s := newTestServer(t, fixedGenerator{response: `{"condition":"anxiety","date":"2025-01-09","health_insurance_provider":"Acme","requested_treatment":"CBT","explanation":"out of network"}`}, false)

	w := s.do(multipartRequest(t, "/process-pdfs", nil, map[string]string{"denial.PDF": "text"}, "denial.PDF"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var results []models.HealthClaim
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "CBT", results[0].RequestedTreatment)

	w = s.do(multipartRequest(t, "/process-pdfs", nil, map[string]string{"notes.docx": "text"}, "notes.docx"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessingErrorMapping(t *testing.T) {
	upstream := &ai.UpstreamError{Service: "deepseek", StatusCode: http.StatusTooManyRequests, Message: "rate limited"}
	s := newTestServer(t, fixedGenerator{err: upstream}, false)

	w := s.doJSON(http.MethodPost, "/draft-email", models.DraftEmailRequest{Content: "TMS denied"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"status_code":429`)

	s = newTestServer(t, nil, false)
	w = s.doJSON(http.MethodPost, "/get-appeal-guidance", models.HealthClaim{Condition: "depression"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_configured")

	w = s.doJSON(http.MethodPost, "/draft-email", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVectorSearchFailureIsUpstream(t *testing.T) {
	s := newTestServerWithPrecedents(t, fixedGenerator{response: "unused"}, false, failingStore{})

	for _, path := range []string{"/get-appeal-guidance", "/draft-email"} {
		var body interface{} = models.HealthClaim{Condition: "depression", RequestedTreatment: "TMS"}
		if path == "/draft-email" {
			body = models.DraftEmailRequest{Content: "TMS denied"}
		}
		w := s.doJSON(http.MethodPost, path, body)
		require.Equal(t, http.StatusBadGateway, w.Code, path)

		var resp struct {
			ErrorCode string `json:"error_code"`
			Details   struct {
				Service    string `json:"service"`
				StatusCode int    `json:"status_code"`
				Message    string `json:"message"`
			} `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "upstream_failure", resp.ErrorCode)
		assert.Equal(t, precedent.SearchService, resp.Details.Service)
		assert.Equal(t, http.StatusBadGateway, resp.Details.StatusCode)
		assert.Contains(t, resp.Details.Message, "$vectorSearch not allowed")
	}
}

func TestDraftEmailEndpoint(t *testing.T) {
	s := newTestServer(t, fixedGenerator{response: "Dear reviewer"}, false)

	for _, path := range []string{"/draft-email", "/draft_email"} {
		w := s.doJSON(http.MethodPost, path, models.DraftEmailRequest{Content: "TMS denied"})
		require.Equal(t, http.StatusOK, w.Code, path)

		var resp models.DraftEmailResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Dear reviewer", resp.Email)
		require.NotNil(t, resp.Precedent)
		assert.Equal(t, "case-1", resp.Precedent.Source)
	}
}

func TestHealthAndReady(t *testing.T) {
	router := gin.New()
	failing := false
	SetupHealthRoutes(router, map[string]ReadinessCheck{
		"mongo": func(context.Context) error {
			if failing {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	failing = true
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
