package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/FabriCut/internal/engine"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─── Stubs ─────────────────────────────────────────────────

type stubPlans struct {
	created    *service.CreatePlanRequest
	createErr  error
	approver   string
	filter     repository.PlanFilter
	plan       *model.CuttingPlan
	getErr     error
	compareReq *service.CompareLayoutsRequest
}

func (s *stubPlans) CreatePlan(_ context.Context, req *service.CreatePlanRequest) (*service.CreatePlanResult, error) {
	s.created = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &service.CreatePlanResult{
		Plan:    &model.CuttingPlan{ID: "plan-1", WorkspaceID: req.WorkspaceID, Status: model.PlanApproved},
		Verdict: model.RiskVerdict{Risk: model.RiskGreen},
	}, nil
}

func (s *stubPlans) UpdatePlan(_ context.Context, req *service.UpdatePlanRequest) (*model.CuttingPlan, error) {
	return &model.CuttingPlan{ID: req.PlanID, Status: *req.Status}, nil
}

func (s *stubPlans) ApprovePlan(_ context.Context, _, planID, approver string) (*model.CuttingPlan, error) {
	s.approver = approver
	return &model.CuttingPlan{ID: planID, Status: model.PlanApproved, ApprovedBy: &approver}, nil
}

func (s *stubPlans) GetPlan(_ context.Context, _, _ string) (*model.CuttingPlan, error) {
	return s.plan, s.getErr
}

func (s *stubPlans) ListPlans(_ context.Context, f repository.PlanFilter) ([]*model.CuttingPlan, error) {
	s.filter = f
	return []*model.CuttingPlan{{ID: "plan-1"}}, nil
}

func (s *stubPlans) CompareLayouts(_ context.Context, req *service.CompareLayoutsRequest) ([]engine.ComparisonResult, error) {
	s.compareReq = req
	return []engine.ComparisonResult{{Scenario: engine.ComparisonScenario{Name: "Current Settings"}, SheetsUsed: 1}}, nil
}

type stubSheets struct {
	startReq *service.StartSheetRequest
	sheet    *model.CuttingSheet
}

func (s *stubSheets) StartSheet(_ context.Context, req *service.StartSheetRequest) (*service.StartSheetResult, error) {
	s.startReq = req
	return &service.StartSheetResult{Sheet: &model.CuttingSheet{ID: req.SheetID, Status: model.SheetCutting}}, nil
}

func (s *stubSheets) UpdateSheet(_ context.Context, req *service.UpdateSheetRequest) (*service.UpdateSheetResult, error) {
	return &service.UpdateSheetResult{Sheet: &model.CuttingSheet{ID: req.SheetID}}, nil
}

func (s *stubSheets) SheetProgress(_ context.Context, _, sheetID string) (model.SheetProgress, error) {
	return model.SheetProgress{SheetID: sheetID, TotalPieces: 10, CutPieces: 4}, nil
}

func (s *stubSheets) GetSheet(_ context.Context, _, id string) (*model.CuttingSheet, error) {
	if s.sheet == nil {
		return nil, errors.NotFound("cutting sheet", id)
	}
	return s.sheet, nil
}

func (s *stubSheets) ListSheets(_ context.Context, _ repository.SheetFilter) ([]*model.CuttingSheet, error) {
	return nil, nil
}

func (s *stubSheets) ListPieces(_ context.Context, _, _ string) ([]*model.CutPiece, error) {
	return nil, nil
}

type stubLayPlans struct {
	bundles   []*model.CuttingBundle
	statusReq *service.UpdateBundleStatusRequest
	approver  string
}

func (s *stubLayPlans) CreateLayPlan(_ context.Context, req *service.CreateLayPlanRequest) (*service.CreateLayPlanResult, error) {
	return &service.CreateLayPlanResult{LayPlan: &model.LayPlan{ID: "lay-1", OrderID: req.OrderID}}, nil
}

func (s *stubLayPlans) CreateBundles(_ context.Context, req *service.CreateBundlesRequest) (*service.CreateBundlesResult, error) {
	return &service.CreateBundlesResult{LayPlan: &model.LayPlan{ID: req.LayPlanID}}, nil
}

func (s *stubLayPlans) UpdateBundleStatus(_ context.Context, req *service.UpdateBundleStatusRequest) (*model.CuttingBundle, error) {
	s.statusReq = req
	return &model.CuttingBundle{ID: req.BundleID, Status: req.Status}, nil
}

func (s *stubLayPlans) GetLayPlan(_ context.Context, _, id string) (*model.LayPlan, error) {
	return &model.LayPlan{ID: id, OrderID: "order-1"}, nil
}

func (s *stubLayPlans) ApproveLayPlan(_ context.Context, _, id, approver string) (*model.LayPlan, error) {
	s.approver = approver
	return &model.LayPlan{ID: id, Status: model.LayPlanApproved}, nil
}

func (s *stubLayPlans) ListLayPlans(_ context.Context, _ repository.LayPlanFilter) ([]*model.LayPlan, error) {
	return nil, nil
}

func (s *stubLayPlans) ListBundles(_ context.Context, _, _ string) ([]*model.CuttingBundle, error) {
	return s.bundles, nil
}

func (s *stubLayPlans) GetBundle(_ context.Context, _, id string) (*model.CuttingBundle, error) {
	return &model.CuttingBundle{ID: id}, nil
}

func (s *stubLayPlans) Order(_ context.Context, _, orderID string) (*model.Order, error) {
	return &model.Order{ID: orderID, PONumber: "PO-4512"}, nil
}

type stubAudit struct {
	entityType, entityID string
}

func (s *stubAudit) ListAudit(_ context.Context, _, entityType, entityID string) ([]*model.AuditRecord, error) {
	s.entityType, s.entityID = entityType, entityID
	return []*model.AuditRecord{{ID: "a1", EntityType: entityType, EntityID: entityID, Action: "create"}}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// ─── Helpers ───────────────────────────────────────────────

type testEnv struct {
	router   *gin.Engine
	plans    *stubPlans
	sheets   *stubSheets
	layPlans *stubLayPlans
	audit    *stubAudit
}

func setupRouter(t *testing.T, db Pinger) *testEnv {
	t.Helper()
	env := &testEnv{
		plans:    &stubPlans{},
		sheets:   &stubSheets{},
		layPlans: &stubLayPlans{},
		audit:    &stubAudit{},
	}
	h := NewHandlers(env.plans, env.sheets, env.layPlans, env.audit, db, logger.Nop())
	env.router = NewRouter(h, logger.Nop(), RouterConfig{})
	return env
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Workspace-ID", "ws-1")
	req.Header.Set("X-Actor", "planner@factory")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func testPlan() *model.CuttingPlan {
	layout := model.SheetLayout{
		SheetNumber: 1, Width: 150, Length: 50, Shelves: 1,
		Placements: []model.Placement{
			{Piece: model.PieceSpec{Name: "Front", Width: 70, Height: 50, Quantity: 1}, Instance: 1, Shelf: 1},
		},
	}
	return &model.CuttingPlan{
		ID: "plan-1", Name: "Plan A", OrderID: "order-1",
		Fabric: model.FabricSpec{Width: 150, MaxSheetLength: 300},
		Sheets: []*model.CuttingSheet{{ID: "sheet-1", PlanID: "plan-1", SheetNumber: 1, Layout: layout}},
	}
}

// ─── Tests ─────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := setupRouter(t, stubPinger{})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	env = setupRouter(t, stubPinger{err: fmt.Errorf("connection refused")})
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unreachable", parseBody(t, w)["database"])
}

func TestWorkspaceRequired(t *testing.T) {
	env := setupRouter(t, nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cutting-plans", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", parseBody(t, w)["code"])
}

func TestCreatePlan(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPost, "/api/v1/cutting-plans", map[string]interface{}{
		"order_id":  "order-1",
		"plan_name": "Plan A",
		"fabric":    map[string]interface{}{"fabric_width_cm": 150, "max_sheet_length_cm": 300},
		"pieces":    []map[string]interface{}{{"name": "Front", "width_cm": 70, "height_cm": 50, "quantity": 4}},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := parseBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "APPROVED", data["plan"].(map[string]interface{})["status"])

	require.NotNil(t, env.plans.created)
	assert.Equal(t, "ws-1", env.plans.created.WorkspaceID)
	assert.Equal(t, "planner@factory", env.plans.created.Actor)
	assert.Equal(t, 4, env.plans.created.Pieces[0].Quantity)
}

func TestCreatePlan_MalformedBody(t *testing.T) {
	env := setupRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cutting-plans", bytes.NewBufferString("{not json"))
	req.Header.Set("X-Workspace-ID", "ws-1")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "body", parseBody(t, w)["field"])
	assert.Nil(t, env.plans.created)
}

func TestCreatePlan_RiskBlocked(t *testing.T) {
	env := setupRouter(t, nil)
	env.plans.createErr = errors.RiskBlocked(model.RiskVerdict{
		Context: model.ContextCuttingPlanCreation,
		Risk:    model.RiskRed,
		Issues:  []model.RiskIssue{{Code: "EXCESSIVE_WASTE", Severity: model.RiskRed, Message: "waste too high"}},
	})

	w := doRequest(env.router, http.MethodPost, "/api/v1/cutting-plans", map[string]interface{}{"order_id": "o"})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := parseBody(t, w)
	assert.Equal(t, "RISK_BLOCKED", body["code"])
	verdict := body["verdict"].(map[string]interface{})
	assert.Equal(t, "RED", verdict["risk"])
}

func TestCreatePlan_InternalErrorIsHidden(t *testing.T) {
	env := setupRouter(t, nil)
	env.plans.createErr = errors.Wrap(fmt.Errorf("pq: password authentication failed"), errors.ErrCodeInternal, "failed to create plan")

	w := doRequest(env.router, http.MethodPost, "/api/v1/cutting-plans", map[string]interface{}{"order_id": "o"})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Equal(t, "internal error", parseBody(t, w)["message"])
}

func TestListPlans_Filters(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodGet, "/api/v1/cutting-plans?order_id=order-1&status=DRAFT&limit=10&offset=20", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.PlanFilter{
		WorkspaceID: "ws-1", OrderID: "order-1", Status: model.PlanDraft, Limit: 10, Offset: 20,
	}, env.plans.filter)

	data := parseBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
}

func TestListPlans_BadLimit(t *testing.T) {
	env := setupRouter(t, nil)
	for _, q := range []string{"limit=abc", "limit=0", "limit=1000", "offset=-1"} {
		w := doRequest(env.router, http.MethodGet, "/api/v1/cutting-plans?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestApprovePlan_DefaultsToActor(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPost, "/api/v1/cutting-plans/plan-1/approve", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "planner@factory", env.plans.approver)

	w = doRequest(env.router, http.MethodPost, "/api/v1/cutting-plans/plan-1/approve", map[string]string{"approved_by": "supervisor"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "supervisor", env.plans.approver)
}

func TestUpdatePlan(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPatch, "/api/v1/cutting-plans/plan-1", map[string]string{"status": "CANCELLED"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := parseBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "CANCELLED", data["status"])
}

func TestCompareLayouts(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPost, "/api/v1/cutting-plans/compare", map[string]interface{}{
		"fabric": map[string]interface{}{"fabric_width_cm": 150, "max_sheet_length_cm": 300},
		"pieces": []map[string]interface{}{{"name": "Front", "width_cm": 70, "height_cm": 50, "quantity": 4}},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, env.plans.compareReq)
	assert.Equal(t, 150.0, env.plans.compareReq.Fabric.Width)
}

func TestExportPlan(t *testing.T) {
	env := setupRouter(t, nil)
	env.plans.plan = testPlan()

	w := doRequest(env.router, http.MethodGet, "/api/v1/cutting-plans/plan-1/export", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, contentTypePDF, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cutting-plan-plan-1.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = doRequest(env.router, http.MethodGet, "/api/v1/cutting-plans/plan-1/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeXLSX, w.Header().Get("Content-Type"))

	w = doRequest(env.router, http.MethodGet, "/api/v1/cutting-plans/plan-1/export?format=svg", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportPlan_NotFound(t *testing.T) {
	env := setupRouter(t, nil)
	env.plans.getErr = errors.NotFound("cutting plan", "plan-9")

	w := doRequest(env.router, http.MethodGet, "/api/v1/cutting-plans/plan-9/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSheet(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPost, "/api/v1/cutting-sheets/sheet-1/start", map[string]string{
		"operator_name": "Ana", "cutting_method": "straight_knife",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, env.sheets.startReq)
	assert.Equal(t, "sheet-1", env.sheets.startReq.SheetID)
	assert.Equal(t, "Ana", env.sheets.startReq.Operator)
	assert.Equal(t, "straight_knife", env.sheets.startReq.Method)
}

func TestSheetProgress(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodGet, "/api/v1/cutting-sheets/sheet-1/progress", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := parseBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["cut_pieces"])
}

func TestExportMarker(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodGet, "/api/v1/cutting-sheets/sheet-1/marker.dxf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.sheets.sheet = testPlan().Sheets[0]
	w = doRequest(env.router, http.MethodGet, "/api/v1/cutting-sheets/sheet-1/marker.dxf", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, contentTypeDXF, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "PIECES")
}

func TestBundleTickets(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodGet, "/api/v1/lay-plans/lay-1/bundles/tickets", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	env.layPlans.bundles = []*model.CuttingBundle{{
		ID: "b1", LayPlanID: "lay-1", BundleNumber: "ACM-PO-4512-001", Sequence: 1,
		SizeBreakdown: map[string]int{"S": 20}, TotalPieces: 20,
	}}
	w = doRequest(env.router, http.MethodGet, "/api/v1/lay-plans/lay-1/bundles/tickets", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, contentTypePDF, w.Header().Get("Content-Type"))
}

func TestCreateLayPlan(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPost, "/api/v1/lay-plans", map[string]interface{}{
		"fabric_issue_id": "issue-1", "fabric_batch_id": "batch-1", "order_id": "order-1",
		"size_breakdown": map[string]int{"M": 40},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := parseBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "lay-1", data["lay_plan"].(map[string]interface{})["id"])
}

func TestApproveLayPlan_DefaultsToActor(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPost, "/api/v1/lay-plans/lay-1/approve", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "planner@factory", env.layPlans.approver)
	data := parseBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "APPROVED", data["status"])

	w = doRequest(env.router, http.MethodPost, "/api/v1/lay-plans/lay-1/approve", map[string]string{"approved_by": "cutting-lead"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cutting-lead", env.layPlans.approver)
}

func TestUpdateBundleStatus(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodPatch, "/api/v1/bundles/b1/status", map[string]string{"status": "IN_PROGRESS"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, env.layPlans.statusReq)
	assert.Equal(t, "b1", env.layPlans.statusReq.BundleID)
	assert.Equal(t, model.BundleInProgress, env.layPlans.statusReq.Status)
	assert.Equal(t, "ws-1", env.layPlans.statusReq.WorkspaceID)
}

func TestListAudit(t *testing.T) {
	env := setupRouter(t, nil)
	w := doRequest(env.router, http.MethodGet, "/api/v1/audit/cutting_plan/plan-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cutting_plan", env.audit.entityType)
	assert.Equal(t, "plan-1", env.audit.entityID)
}

func uploadPieces(t *testing.T, router *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/pieces", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Workspace-ID", "ws-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportPieces_CSV(t *testing.T) {
	env := setupRouter(t, nil)
	w := uploadPieces(t, env.router, "pieces.csv", "Piece,Size,Width,Length,Qty\nFront,M,70,50,4\nSleeve,M,35,60,4\n")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := parseBody(t, w)["data"].(map[string]interface{})
	pieces := data["pieces"].([]interface{})
	require.Len(t, pieces, 2)
	assert.Equal(t, "Sleeve", pieces[1].(map[string]interface{})["name"])
}

func TestImportPieces_Rejected(t *testing.T) {
	env := setupRouter(t, nil)

	w := uploadPieces(t, env.router, "pieces.pdf", "%PDF-")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = uploadPieces(t, env.router, "pieces.csv", "Piece,Width,Length,Qty\nFront,abc,50,4\n")
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := parseBody(t, w)["fields"].(map[string]interface{})
	assert.Contains(t, fields["errors[0]"], "Invalid width")
}
