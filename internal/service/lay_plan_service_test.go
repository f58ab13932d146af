package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/FabriCut/internal/engine"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/risk"
)

func seedBatch(store *memStore, id string, meters float64, grade string) {
	store.batches[id] = &model.FabricBatch{
		ID:              id,
		WorkspaceID:     testWorkspace,
		FabricIssueID:   "issue-1",
		FabricType:      "denim",
		MetersRequested: meters,
		WidthCM:         150,
		GSM:             320,
		QualityGrade:    grade,
		Status:          model.BatchAvailable,
	}
}

func newLayPlanService(store *memStore, audit *recordingAudit) *LayPlanService {
	return NewLayPlanService(
		layPlanStore{store},
		bundleStore{store},
		batchStore{store},
		testOrders(),
		engine.NewMarkerEstimator(model.DefaultPlanningSettings().LayPlan),
		risk.NewGate(nil),
		audit,
		logger.Nop(),
	)
}

func layReq(batchID string, breakdown map[string]int) *CreateLayPlanRequest {
	return &CreateLayPlanRequest{
		WorkspaceID:   testWorkspace,
		FabricIssueID: "issue-1",
		FabricBatchID: batchID,
		OrderID:       "order-1",
		Configuration: model.LayConfiguration{
			TableWidthCM:           160,
			MaxLayHeight:           60,
			FabricDirection:        "lengthwise",
			MarkerEfficiencyTarget: 0.85,
		},
		SizeBreakdown: breakdown,
		Actor:         "planner",
	}
}

func TestCreateLayPlan_ClaimsBatch(t *testing.T) {
	store := newMemStore()
	seedBatch(store, "batch-1", 200, "A")
	audit := &recordingAudit{}
	svc := newLayPlanService(store, audit)

	res, err := svc.CreateLayPlan(context.Background(), layReq("batch-1", map[string]int{"S": 30, "M": 40, "L": 30}))
	require.NoError(t, err)
	assert.Equal(t, model.RiskGreen, res.Verdict.Risk)
	assert.Equal(t, model.LayPlanPlanned, res.LayPlan.Status)
	assert.InDelta(t, 75.0, res.LayPlan.Estimate.FabricMetersRequired, 0.01)

	batch, err := batchStore{store}.Get(context.Background(), testWorkspace, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchLayPlanned, batch.Status)
	require.NotNil(t, batch.LayPlanID)
	assert.Equal(t, res.LayPlan.ID, *batch.LayPlanID)
	assert.Equal(t, []string{"lay_plan:create", "fabric_batch:lay_planned"}, audit.actions())
}

func TestCreateLayPlan_InsufficientFabricIsBlocked(t *testing.T) {
	store := newMemStore()
	seedBatch(store, "batch-1", 10, "A")
	audit := &recordingAudit{}
	svc := newLayPlanService(store, audit)

	_, err := svc.CreateLayPlan(context.Background(), layReq("batch-1", map[string]int{"S": 40, "M": 40, "L": 40}))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRiskBlocked, errors.CodeOf(err))
	e, _ := errors.As(err)
	require.NotNil(t, e.Verdict)
	assert.True(t, e.Verdict.HasIssue(risk.IssueInsufficient))
	assert.NotEmpty(t, e.Verdict.Recommendations)

	assert.Zero(t, store.writeCount())
	assert.Equal(t, model.BatchAvailable, store.batches["batch-1"].Status)
	assert.Nil(t, store.batches["batch-1"].LayPlanID)
	assert.Empty(t, audit.actions())
}

func TestCreateLayPlan_RejectedFabricIsBlocked(t *testing.T) {
	store := newMemStore()
	seedBatch(store, "batch-1", 200, "REJECTED")
	svc := newLayPlanService(store, &recordingAudit{})

	_, err := svc.CreateLayPlan(context.Background(), layReq("batch-1", map[string]int{"M": 12}))
	require.Error(t, err)
	e, _ := errors.As(err)
	require.NotNil(t, e.Verdict)
	assert.True(t, e.Verdict.HasIssue(risk.IssueRejectedFabric))
	assert.Equal(t, model.BatchAvailable, store.batches["batch-1"].Status)
}

func TestCreateLayPlan_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	store := newMemStore()
	seedBatch(store, "batch-1", 200, "A")
	svc := newLayPlanService(store, &recordingAudit{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateLayPlan(context.Background(), layReq("batch-1", map[string]int{"M": 60}))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errors.ErrCodeConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Len(t, store.layPlans, 1)
}

func TestCreateLayPlan_BatchMustBelongToIssue(t *testing.T) {
	store := newMemStore()
	seedBatch(store, "batch-1", 200, "A")
	svc := newLayPlanService(store, &recordingAudit{})

	req := layReq("batch-1", map[string]int{"M": 60})
	req.FabricIssueID = "issue-2"
	_, err := svc.CreateLayPlan(context.Background(), req)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestCreateLayPlan_Validation(t *testing.T) {
	svc := newLayPlanService(newMemStore(), &recordingAudit{})

	_, err := svc.CreateLayPlan(context.Background(), layReq("batch-1", nil))
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func plannedLay(t *testing.T, store *memStore, breakdown map[string]int) *model.LayPlan {
	t.Helper()
	seedBatch(store, "batch-1", 200, "A")
	res, err := newLayPlanService(store, &recordingAudit{}).CreateLayPlan(context.Background(), layReq("batch-1", breakdown))
	require.NoError(t, err)
	return res.LayPlan
}

func TestCreateBundles_FiveBundlesOfTwenty(t *testing.T) {
	store := newMemStore()
	lay := plannedLay(t, store, map[string]int{"S": 30, "M": 40, "L": 30})
	audit := &recordingAudit{}
	svc := newLayPlanService(store, audit)
	ctx := context.Background()

	res, err := svc.CreateBundles(ctx, &CreateBundlesRequest{
		WorkspaceID: testWorkspace,
		LayPlanID:   lay.ID,
		BundleSize:  20,
		BundleConfiguration: []model.BundleLine{
			{Size: "S", Quantity: 30},
			{Size: "M", Quantity: 40},
			{Size: "L", Quantity: 30},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Bundles, 5)
	assert.Equal(t, model.LayPlanBundlesCreated, res.LayPlan.Status)
	assert.Equal(t, 5, res.LayPlan.BundleCount)
	assert.NotNil(t, res.LayPlan.BundlesCreatedAt)

	for i, b := range res.Bundles {
		assert.Equal(t, i+1, b.Sequence)
		assert.Equal(t, 20, b.TotalPieces)
		assert.Equal(t, model.BundleReady, b.Status)
	}
	assert.Equal(t, "ACM-PO-4512-001", res.Bundles[0].BundleNumber)
	assert.Equal(t, map[string]int{"S": 20}, res.Bundles[0].SizeBreakdown)
	assert.Equal(t, map[string]int{"S": 10, "M": 10}, res.Bundles[1].SizeBreakdown)

	listed, err := svc.ListBundles(ctx, testWorkspace, lay.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 5)

	_, err = svc.CreateBundles(ctx, &CreateBundlesRequest{WorkspaceID: testWorkspace, LayPlanID: lay.ID, BundleSize: 20})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
	assert.Contains(t, audit.actions(), "lay_plan:bundles_created")
}

func TestApproveLayPlan(t *testing.T) {
	store := newMemStore()
	lay := plannedLay(t, store, map[string]int{"M": 40})
	audit := &recordingAudit{}
	svc := newLayPlanService(store, audit)
	ctx := context.Background()

	approved, err := svc.ApproveLayPlan(ctx, testWorkspace, lay.ID, "cutting-lead")
	require.NoError(t, err)
	assert.Equal(t, model.LayPlanApproved, approved.Status)
	assert.Equal(t, []string{"lay_plan:approve"}, audit.actions())

	_, err = svc.ApproveLayPlan(ctx, testWorkspace, lay.ID, "cutting-lead")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))

	res, err := svc.CreateBundles(ctx, &CreateBundlesRequest{WorkspaceID: testWorkspace, LayPlanID: lay.ID, BundleSize: 20})
	require.NoError(t, err)
	assert.Equal(t, model.LayPlanBundlesCreated, res.LayPlan.Status)
	assert.Len(t, res.Bundles, 2)
}

func TestApproveLayPlan_Validation(t *testing.T) {
	store := newMemStore()
	lay := plannedLay(t, store, map[string]int{"M": 40})
	svc := newLayPlanService(store, &recordingAudit{})
	ctx := context.Background()

	_, err := svc.ApproveLayPlan(ctx, testWorkspace, lay.ID, "")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = svc.ApproveLayPlan(ctx, "other-ws", lay.ID, "cutting-lead")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
	assert.Equal(t, model.LayPlanPlanned, store.layPlans[lay.ID].Status)
}

func TestCreateBundles_DefaultsToSizeBreakdown(t *testing.T) {
	store := newMemStore()
	lay := plannedLay(t, store, map[string]int{"M": 25, "L": 10})
	svc := newLayPlanService(store, &recordingAudit{})

	res, err := svc.CreateBundles(context.Background(), &CreateBundlesRequest{
		WorkspaceID: testWorkspace,
		LayPlanID:   lay.ID,
		BundleSize:  12,
	})
	require.NoError(t, err)
	require.Len(t, res.Bundles, 3)

	var total int
	for _, b := range res.Bundles {
		total += b.TotalPieces
	}
	assert.Equal(t, 35, total)
	assert.Equal(t, 11, res.Bundles[2].TotalPieces)
}

func TestCreateBundles_ConfigurationMustMatchLay(t *testing.T) {
	store := newMemStore()
	lay := plannedLay(t, store, map[string]int{"M": 40})
	svc := newLayPlanService(store, &recordingAudit{})

	_, err := svc.CreateBundles(context.Background(), &CreateBundlesRequest{
		WorkspaceID:         testWorkspace,
		LayPlanID:           lay.ID,
		BundleSize:          10,
		BundleConfiguration: []model.BundleLine{{Size: "M", Quantity: 50}},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
	assert.Equal(t, model.LayPlanPlanned, store.layPlans[lay.ID].Status)
}

func TestUpdateBundleStatus_SingleSteps(t *testing.T) {
	store := newMemStore()
	lay := plannedLay(t, store, map[string]int{"M": 20})
	svc := newLayPlanService(store, &recordingAudit{})
	ctx := context.Background()

	res, err := svc.CreateBundles(ctx, &CreateBundlesRequest{WorkspaceID: testWorkspace, LayPlanID: lay.ID, BundleSize: 20})
	require.NoError(t, err)
	id := res.Bundles[0].ID

	_, err = svc.UpdateBundleStatus(ctx, &UpdateBundleStatusRequest{WorkspaceID: testWorkspace, BundleID: id, Status: model.BundleDone})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))

	b, err := svc.UpdateBundleStatus(ctx, &UpdateBundleStatusRequest{WorkspaceID: testWorkspace, BundleID: id, Status: model.BundleInProgress})
	require.NoError(t, err)
	assert.Equal(t, model.BundleInProgress, b.Status)

	b, err = svc.UpdateBundleStatus(ctx, &UpdateBundleStatusRequest{WorkspaceID: testWorkspace, BundleID: id, Status: model.BundleDone})
	require.NoError(t, err)
	assert.Equal(t, model.BundleDone, b.Status)

	_, err = svc.UpdateBundleStatus(ctx, &UpdateBundleStatusRequest{WorkspaceID: testWorkspace, BundleID: id, Status: "LOST"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestListLayPlans_ScopedToWorkspace(t *testing.T) {
	store := newMemStore()
	lay := plannedLay(t, store, map[string]int{"M": 20})
	svc := newLayPlanService(store, &recordingAudit{})
	ctx := context.Background()

	plans, err := svc.ListLayPlans(ctx, repository.LayPlanFilter{WorkspaceID: testWorkspace})
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	_, err = svc.GetLayPlan(ctx, "ws-2", lay.ID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	_, err = svc.ListBundles(ctx, "ws-2", lay.ID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
