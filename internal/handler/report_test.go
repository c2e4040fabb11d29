package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/orchestrator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeReportRepo struct {
	reports map[string]*models.Report
	created []*models.Report
}

func newFakeReportRepo(reports ...*models.Report) *fakeReportRepo {
	m := make(map[string]*models.Report)
	for _, r := range reports {
		m[r.ID] = r
	}
	return &fakeReportRepo{reports: m}
}

func (f *fakeReportRepo) Create(report *models.Report) error {
	report.ID = "r-new"
	f.created = append(f.created, report)
	return nil
}
func (f *fakeReportRepo) GetByID(id string) (*models.Report, error) { return f.reports[id], nil }
func (f *fakeReportRepo) List() ([]*models.Report, error) {
	out := []*models.Report{}
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}
func (f *fakeReportRepo) ListByStatus(string) ([]*models.Report, error)      { return nil, nil }
func (f *fakeReportRepo) ListMachinePending(string) ([]*models.Report, error) { return nil, nil }
func (f *fakeReportRepo) UpdateStatus(string, string) error                  { return nil }
func (f *fakeReportRepo) Delete(id string) error {
	delete(f.reports, id)
	return nil
}

type fakeLauncher struct {
	err    error
	called bool
}

func (f *fakeLauncher) CreateOrRefreshDebate(ctx context.Context, reportID string, useDiscovery bool) (*orchestrator.RunHandle, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.RunHandle{DebateID: "d1", ReportID: reportID}, nil
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newReportRouter(repo *fakeReportRepo, launcher *fakeLauncher) *gin.Engine {
	h := NewReportHandler(repo, launcher, zap.NewNop())
	router := gin.New()
	router.POST("/api/reports", h.Submit)
	router.GET("/api/reports", h.List)
	router.DELETE("/api/reports/:id", h.Delete)
	router.POST("/api/reports/:id/process", h.Process)
	return router
}

func TestSubmitReport(t *testing.T) {
	repo := newFakeReportRepo()
	router := newReportRouter(repo, &fakeLauncher{})

	w := performJSON(t, router, http.MethodPost, "/api/reports", map[string]string{
		"title":   "Permit loop",
		"content": "A permit is needed to request permits.",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.ReportStatusPending, repo.created[0].Status)
}

func TestSubmitReportRejectsBlankFields(t *testing.T) {
	router := newReportRouter(newFakeReportRepo(), &fakeLauncher{})

	w := performJSON(t, router, http.MethodPost, "/api/reports", map[string]string{
		"title":   "   ",
		"content": "something",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessReturnsAccepted(t *testing.T) {
	repo := newFakeReportRepo(&models.Report{ID: "r1", Title: "t"})
	launcher := &fakeLauncher{}
	router := newReportRouter(repo, launcher)

	w := performJSON(t, router, http.MethodPost, "/api/reports/r1/process", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, launcher.called)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "initiated", resp["status"])
	assert.Equal(t, "d1", resp["debate_id"])
}

func TestProcessUnknownReport(t *testing.T) {
	launcher := &fakeLauncher{err: orchestrator.ErrReportNotFound}
	router := newReportRouter(newFakeReportRepo(), launcher)

	w := performJSON(t, router, http.MethodPost, "/api/reports/missing/process", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessConflictsWhileRunning(t *testing.T) {
	launcher := &fakeLauncher{err: orchestrator.ErrRunInProgress}
	router := newReportRouter(newFakeReportRepo(), launcher)

	w := performJSON(t, router, http.MethodPost, "/api/reports/r1/process", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteUnknownReport(t *testing.T) {
	router := newReportRouter(newFakeReportRepo(), &fakeLauncher{})

	w := performJSON(t, router, http.MethodDelete, "/api/reports/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
