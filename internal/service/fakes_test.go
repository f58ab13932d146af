package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
)

const testWorkspace = "ws-1"

type memStore struct {
	mu       sync.Mutex
	seq      int
	plans    map[string]*model.CuttingPlan
	sheets   map[string]*model.CuttingSheet
	pieces   map[string][]*model.CutPiece
	batches  map[string]*model.FabricBatch
	layPlans map[string]*model.LayPlan
	bundles  map[string]*model.CuttingBundle
	writes   int
}

func newMemStore() *memStore {
	return &memStore{
		plans:    map[string]*model.CuttingPlan{},
		sheets:   map[string]*model.CuttingSheet{},
		pieces:   map[string][]*model.CutPiece{},
		batches:  map[string]*model.FabricBatch{},
		layPlans: map[string]*model.LayPlan{},
		bundles:  map[string]*model.CuttingBundle{},
	}
}

func (m *memStore) id(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// planStore adapts memStore to PlanStore.
type planStore struct{ *memStore }

func (s planStore) Create(_ context.Context, plan *model.CuttingPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	plan.ID = s.id("plan")
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = plan.CreatedAt
	for _, sh := range plan.Sheets {
		sh.ID = s.id("sheet")
		sh.WorkspaceID = plan.WorkspaceID
		sh.PlanID = plan.ID
		sh.OrderID = plan.OrderID
		cp := *sh
		s.sheets[sh.ID] = &cp
	}
	cp := *plan
	cp.Sheets = nil
	s.plans[plan.ID] = &cp
	return nil
}

func (s planStore) Get(_ context.Context, workspaceID, id string) (*model.CuttingPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, errors.NotFound("cutting plan", id)
	}
	cp := *p
	for _, sh := range s.sheets {
		if sh.PlanID == id {
			c := *sh
			cp.Sheets = append(cp.Sheets, &c)
		}
	}
	sort.Slice(cp.Sheets, func(i, j int) bool { return cp.Sheets[i].SheetNumber < cp.Sheets[j].SheetNumber })
	return &cp, nil
}

func (s planStore) List(_ context.Context, f repository.PlanFilter) ([]*model.CuttingPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.CuttingPlan{}
	for _, p := range s.plans {
		if p.WorkspaceID != f.WorkspaceID || (f.Status != "" && p.Status != f.Status) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s planStore) Update(_ context.Context, workspaceID, id string, u repository.PlanUpdate) (*model.CuttingPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, errors.NotFound("cutting plan", id)
	}
	if u.ExpectStatus != nil && p.Status != *u.ExpectStatus {
		return nil, errors.Conflict("cutting plan %s changed concurrently", id)
	}
	s.writes++
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.ApprovedBy != nil {
		p.ApprovedBy = u.ApprovedBy
	}
	if u.ApprovedAt != nil {
		p.ApprovedAt = u.ApprovedAt
	}
	if u.Notes != nil {
		p.Notes = u.Notes
	}
	cp := *p
	return &cp, nil
}

// sheetStore adapts memStore to SheetStore.
type sheetStore struct{ *memStore }

func (s sheetStore) Get(_ context.Context, workspaceID, id string) (*model.CuttingSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[id]
	if !ok || sh.WorkspaceID != workspaceID {
		return nil, errors.NotFound("cutting sheet", id)
	}
	cp := *sh
	return &cp, nil
}

func (s sheetStore) List(_ context.Context, f repository.SheetFilter) ([]*model.CuttingSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.CuttingSheet{}
	for _, sh := range s.sheets {
		if sh.WorkspaceID == f.WorkspaceID && (f.PlanID == "" || sh.PlanID == f.PlanID) {
			cp := *sh
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s sheetStore) Start(_ context.Context, workspaceID, id string, st repository.StartSheet) (*model.CuttingSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[id]
	if !ok || sh.WorkspaceID != workspaceID {
		return nil, errors.NotFound("cutting sheet", id)
	}
	if sh.Status != model.SheetOpen {
		return nil, errors.Conflict("cutting sheet %s is no longer OPEN", id)
	}
	s.writes++
	sh.Status = model.SheetCutting
	sh.CutBy = &st.Operator
	sh.CuttingMethod = &st.Method
	sh.Instructions = st.Instructions
	sh.StartRisk = st.Risk
	sh.StartedAt = &st.StartedAt
	cp := *sh
	return &cp, nil
}

func (s sheetStore) Update(_ context.Context, workspaceID, id string, u repository.SheetUpdate) (*model.CuttingSheet, []*model.CutPiece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[id]
	if !ok || sh.WorkspaceID != workspaceID {
		return nil, nil, errors.NotFound("cutting sheet", id)
	}
	if sh.Status != u.From {
		return nil, nil, errors.Conflict("cutting sheet %s is no longer %s", id, u.From)
	}
	s.writes++
	if u.To != nil {
		sh.Status = *u.To
	}
	if u.Notes != nil {
		sh.Notes = u.Notes
	}
	if u.CompletedAt != nil {
		sh.CompletedAt = u.CompletedAt
	}
	var recorded []*model.CutPiece
	for _, in := range u.Pieces {
		qc := in.QualityCheck
		if qc == "" {
			qc = model.QCOpen
		}
		p := &model.CutPiece{
			ID:           s.id("piece"),
			WorkspaceID:  workspaceID,
			SheetID:      id,
			OrderItemID:  "item-" + in.Size + "-" + in.Color,
			PieceName:    in.PieceName,
			Size:         in.Size,
			Color:        in.Color,
			Quantity:     in.Quantity,
			QualityCheck: qc,
		}
		s.pieces[id] = append(s.pieces[id], p)
		recorded = append(recorded, p)
	}
	cp := *sh
	return &cp, recorded, nil
}

func (s sheetStore) Pieces(_ context.Context, _ string, sheetID string) ([]*model.CutPiece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.CutPiece{}, s.pieces[sheetID]...), nil
}

func (s sheetStore) Progress(_ context.Context, workspaceID, sheetID string) (model.SheetProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[sheetID]
	if !ok || sh.WorkspaceID != workspaceID {
		return model.SheetProgress{}, errors.NotFound("cutting sheet", sheetID)
	}
	pr := model.SheetProgress{SheetID: sheetID, TotalPieces: sh.PiecesCount}
	for _, p := range s.pieces[sheetID] {
		pr.CutPieces += p.Quantity
		switch p.QualityCheck {
		case model.QCPass:
			pr.PassedQC += p.Quantity
		case model.QCFail:
			pr.FailedQC += p.Quantity
		}
	}
	return pr, nil
}

// batchStore adapts memStore to BatchStore.
type batchStore struct{ *memStore }

func (s batchStore) Get(_ context.Context, workspaceID, id string) (*model.FabricBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok || b.WorkspaceID != workspaceID {
		return nil, errors.NotFound("fabric batch", id)
	}
	cp := *b
	return &cp, nil
}

// layPlanStore adapts memStore to LayPlanStore. Create claims the batch the
// same way the SQL compare-and-set does.
type layPlanStore struct{ *memStore }

func (s layPlanStore) Create(_ context.Context, plan *model.LayPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[plan.FabricBatchID]
	if !ok || b.WorkspaceID != plan.WorkspaceID || b.Status != model.BatchAvailable || b.LayPlanID != nil {
		return errors.Conflict("fabric batch %s is no longer available for cutting", plan.FabricBatchID)
	}
	s.writes++
	plan.ID = s.id("lay")
	b.Status = model.BatchLayPlanned
	b.LayPlanID = &plan.ID
	cp := *plan
	s.layPlans[plan.ID] = &cp
	return nil
}

func (s layPlanStore) Get(_ context.Context, workspaceID, id string) (*model.LayPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.layPlans[id]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, errors.NotFound("lay plan", id)
	}
	cp := *p
	return &cp, nil
}

func (s layPlanStore) List(_ context.Context, f repository.LayPlanFilter) ([]*model.LayPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.LayPlan{}
	for _, p := range s.layPlans {
		if p.WorkspaceID == f.WorkspaceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s layPlanStore) CreateBundles(_ context.Context, workspaceID, layPlanID string, bundles []*model.CuttingBundle, at time.Time) (*model.LayPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.layPlans[layPlanID]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, errors.NotFound("lay plan", layPlanID)
	}
	if !p.Status.AcceptsBundles() {
		return nil, errors.Conflict("lay plan %s already has bundles", layPlanID)
	}
	s.writes++
	p.Status = model.LayPlanBundlesCreated
	p.BundleCount = len(bundles)
	p.BundlesCreatedAt = &at
	for _, b := range bundles {
		b.ID = s.id("bundle")
		cp := *b
		s.bundles[b.ID] = &cp
	}
	cp := *p
	return &cp, nil
}

func (s layPlanStore) Approve(_ context.Context, workspaceID, id string) (*model.LayPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.layPlans[id]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, errors.NotFound("lay plan", id)
	}
	if p.Status != model.LayPlanPlanned {
		return nil, errors.Conflict("lay plan %s is no longer PLANNED", id)
	}
	s.writes++
	p.Status = model.LayPlanApproved
	cp := *p
	return &cp, nil
}

// bundleStore adapts memStore to BundleStore.
type bundleStore struct{ *memStore }

func (s bundleStore) Get(_ context.Context, workspaceID, id string) (*model.CuttingBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[id]
	if !ok || b.WorkspaceID != workspaceID {
		return nil, errors.NotFound("cutting bundle", id)
	}
	cp := *b
	return &cp, nil
}

func (s bundleStore) ListByLayPlan(_ context.Context, workspaceID, layPlanID string) ([]*model.CuttingBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.CuttingBundle{}
	for _, b := range s.bundles {
		if b.WorkspaceID == workspaceID && b.LayPlanID == layPlanID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s bundleStore) UpdateStatus(_ context.Context, workspaceID, id string, from, to model.BundleStatus) (*model.CuttingBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[id]
	if !ok || b.WorkspaceID != workspaceID {
		return nil, errors.NotFound("cutting bundle", id)
	}
	if b.Status != from {
		return nil, errors.Conflict("cutting bundle %s is no longer %s", id, from)
	}
	s.writes++
	b.Status = to
	cp := *b
	return &cp, nil
}

type stubOrders map[string]*model.Order

func (o stubOrders) GetOrder(_ context.Context, workspaceID, orderID string) (*model.Order, error) {
	ord, ok := o[orderID]
	if !ok || ord.WorkspaceID != workspaceID {
		return nil, errors.NotFound("order", orderID)
	}
	cp := *ord
	return &cp, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (r *recordingAudit) Dispatch(_ context.Context, e model.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EntityType+":"+e.Action)
	}
	return out
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate(context.Context, model.RiskContext, model.Signals) (model.RiskVerdict, error) {
	return model.RiskVerdict{}, fmt.Errorf("risk service unavailable")
}

func testOrders() stubOrders {
	return stubOrders{
		"order-1": {
			ID:          "order-1",
			WorkspaceID: testWorkspace,
			PONumber:    "PO-4512",
			ProductType: "shirt",
			TotalQty:    100,
			Brand:       "Acme Apparel",
			Client:      "Acme",
		},
	}
}
