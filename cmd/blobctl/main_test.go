package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTools struct {
	tools  *toolset
	claims *claims.Service
}

func newMemoryTools() *memoryTools {
	blobRepo := blobstore.NewMemoryRepository()
	claimRepo := claims.NewMemoryRepository()
	return &memoryTools{
		tools:  newToolset(blobRepo, blobRepo, claimRepo, 8, 1<<20),
		claims: claims.NewService(claimRepo, claims.NewLinkage(claimRepo), claims.ServiceOptions{}),
	}
}

func (m *memoryTools) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out, func(context.Context) (*toolset, error) {
		return m.tools, nil
	})
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPutGetRemove(t *testing.T) {
	m := newMemoryTools()
	path := writeTemp(t, "denial.pdf", "denial letter contents")

	out, err := m.run(t, "put", "--user", "ops", path)
	require.NoError(t, err)
	id := strings.Split(strings.TrimSpace(out), "\t")[0]
	require.Len(t, id, 24)

	target := filepath.Join(t.TempDir(), "copy.pdf")
	_, err = m.run(t, "get", id, "-o", target)
	require.NoError(t, err)
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "denial letter contents", string(content))

	out, err = m.run(t, "ls", "--user", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = m.run(t, "rm", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	_, err = m.run(t, "rm", id)
	assert.Error(t, err)
}

func TestPutAttachesToClaim(t *testing.T) {
	m := newMemoryTools()
	claim, err := m.claims.Create(context.Background(), models.ClaimInput{
		Provider: models.Provider{ProviderType: models.ProviderTypeTherapist, ProviderName: "Dr. Ode"},
		Patient:  models.Patient{PatientName: "Lee", PatientInsuranceProvider: "Acme"},
		Service:  models.Service{ServiceType: models.ServiceTypeGroupTherapy, ServiceDate: "2025-06-01", TotalCharge: "80"},
	})
	require.NoError(t, err)

	a := writeTemp(t, "a.pdf", "first")
	b := writeTemp(t, "b.pdf", "second")
	_, err = m.run(t, "put", "--claim", claim.ClaimID, a, b)
	require.NoError(t, err)

	got, err := m.claims.Get(context.Background(), claim.ClaimID)
	require.NoError(t, err)
	assert.Len(t, got.FileReferences(), 2)

	out, err := m.run(t, "ls", "--claim", claim.ID.Hex(), "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 2`)

	_, err = m.run(t, "put", "--claim", "MH-none", a)
	assert.ErrorIs(t, err, claims.ErrNotFound)
}

func TestCheckAndUsage(t *testing.T) {
	m := newMemoryTools()

	out, err := m.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, `"checked_blobs": 0`)

	out, err = m.run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "usage: blobctl")

	_, err = m.run(t, "bogus")
	assert.Error(t, err)

	_, err = m.run(t, "ls")
	assert.Error(t, err)
}
