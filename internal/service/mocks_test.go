package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lendflow/internal/apperr"
	"lendflow/internal/model"
	"lendflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory fakes for the repository ports. They serialize every call on one
// mutex, which stands in for the row locks the real store takes.

type fakeTxManager struct {
	mu sync.Mutex
}

func (f *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

// --- applications ---

type memAppRepo struct {
	mu          sync.Mutex
	apps        map[uuid.UUID]*model.LoanApplication
	history     []model.StatusHistoryEntry
	assignments []model.NbfcAssignment
	seq         int64
}

func newMemAppRepo() *memAppRepo {
	return &memAppRepo{apps: make(map[uuid.UUID]*model.LoanApplication)}
}

func (r *memAppRepo) Create(_ context.Context, app *model.LoanApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.CreatedAt = time.Now()
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *memAppRepo) GetByID(_ context.Context, id uuid.UUID) (*model.LoanApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "application not found")
	}
	cp := *app
	for _, a := range r.assignments {
		if a.ApplicationID == id {
			cp.Nbfcs = append(cp.Nbfcs, a)
		}
	}
	return &cp, nil
}

func (r *memAppRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.LoanApplication, error) {
	return r.GetByID(ctx, id)
}

func (r *memAppRepo) Save(_ context.Context, app *model.LoanApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "application not found")
	}
	cp := *app
	cp.Nbfcs = nil
	r.apps[app.ID] = &cp
	return nil
}

func (r *memAppRepo) List(_ context.Context, filter repository.ApplicationFilter) ([]model.LoanApplication, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LoanApplication
	for _, app := range r.apps {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.ClientID != nil && app.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, *app)
	}
	return out, int64(len(out)), nil
}

func (r *memAppRepo) AppendHistory(_ context.Context, entry *model.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.Seq = r.seq
	entry.CreatedAt = time.Now()
	r.history = append(r.history, *entry)
	return nil
}

func (r *memAppRepo) ListHistory(_ context.Context, applicationID uuid.UUID) ([]model.StatusHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StatusHistoryEntry
	for _, h := range r.history {
		if h.ApplicationID == applicationID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memAppRepo) AssignNbfc(_ context.Context, assignment *model.NbfcAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	assignment.Seq = r.seq
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	r.assignments = append(r.assignments, *assignment)
	return nil
}

func (r *memAppRepo) ListNbfcs(_ context.Context, applicationID uuid.UUID) ([]model.NbfcAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.NbfcAssignment
	for _, a := range r.assignments {
		if a.ApplicationID == applicationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAppRepo) CountNbfcs(ctx context.Context, applicationID uuid.UUID) (int64, error) {
	list, _ := r.ListNbfcs(ctx, applicationID)
	return int64(len(list)), nil
}

func (r *memAppRepo) NextFileNumber(_ context.Context, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, app := range r.apps {
		if len(app.FileNumber) >= len(prefix) && app.FileNumber[:len(prefix)] == prefix {
			count++
		}
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

// --- queries ---

type memQueryRepo struct {
	mu      sync.Mutex
	queries map[uuid.UUID]*model.Query
	seq     int64
}

func newMemQueryRepo() *memQueryRepo {
	return &memQueryRepo{queries: make(map[uuid.UUID]*model.Query)}
}

func (r *memQueryRepo) Create(_ context.Context, q *model.Query) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.CreatedAt = time.Now()
	cp := *q
	r.queries[q.ID] = &cp
	return nil
}

func (r *memQueryRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queries[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "query not found")
	}
	cp := *q
	return &cp, nil
}

func (r *memQueryRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Query, error) {
	return r.GetByID(ctx, id)
}

func (r *memQueryRepo) Save(_ context.Context, q *model.Query) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queries[q.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "query not found")
	}
	cp := *q
	r.queries[q.ID] = &cp
	return nil
}

func (r *memQueryRepo) AddReply(_ context.Context, reply *model.QueryReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queries[reply.QueryID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "query not found")
	}
	r.seq++
	reply.Seq = r.seq
	if reply.ID == uuid.Nil {
		reply.ID = uuid.New()
	}
	reply.CreatedAt = time.Now()
	q.Replies = append(q.Replies, *reply)
	return nil
}

func (r *memQueryRepo) ListByTarget(_ context.Context, targetID uuid.UUID) ([]model.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Query
	for _, q := range r.queries {
		if q.TargetID == targetID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *memQueryRepo) HasOpenByInitiator(_ context.Context, targetID, raisedByID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.queries {
		if q.TargetID == targetID && q.RaisedByID == raisedByID && !q.Resolved {
			return true, nil
		}
	}
	return false, nil
}

func (r *memQueryRepo) CountOpen(_ context.Context, targetID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, q := range r.queries {
		if q.TargetID == targetID && !q.Resolved {
			count++
		}
	}
	return count, nil
}

func (r *memQueryRepo) CountOpenRaisedByRole(_ context.Context, targetID uuid.UUID, role model.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, q := range r.queries {
		if q.TargetID == targetID && q.RaisedByRole == role && !q.Resolved {
			count++
		}
	}
	return count, nil
}

func (r *memQueryRepo) CountOpenRaisedToRole(_ context.Context, targetID uuid.UUID, role model.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, q := range r.queries {
		if q.TargetID == targetID && q.RaisedToRole == role && !q.Resolved {
			count++
		}
	}
	return count, nil
}

// --- ledger ---

type memLedgerRepo struct {
	mu      sync.Mutex
	entries []model.LedgerEntry
	seq     int64
}

func newMemLedgerRepo() *memLedgerRepo { return &memLedgerRepo{} }

func (r *memLedgerRepo) Append(_ context.Context, entry *model.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.Seq = r.seq
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memLedgerRepo) GetByID(_ context.Context, id uuid.UUID) (*model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			cp := r.entries[i]
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "ledger entry not found")
}

func (r *memLedgerRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range r.entries {
		if e.ClientID == clientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) SumPayoutAmount(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.ClientID == clientID {
			sum = sum.Add(e.PayoutAmount)
		}
	}
	return sum, nil
}

func (r *memLedgerRepo) CountBySourceApplication(_ context.Context, applicationID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, e := range r.entries {
		if e.SourceApplicationID != nil && *e.SourceApplicationID == applicationID {
			count++
		}
	}
	return count, nil
}

func (r *memLedgerRepo) SetDisputeStatus(_ context.Context, entryID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == entryID {
			r.entries[i].DisputeStatus = status
			return nil
		}
	}
	return apperr.New(apperr.KindNotFound, "ledger entry not found")
}

func (r *memLedgerRepo) SetPayoutRequestFlag(_ context.Context, entryID uuid.UUID, flagged bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == entryID {
			r.entries[i].PayoutRequestFlag = flagged
			return nil
		}
	}
	return apperr.New(apperr.KindNotFound, "ledger entry not found")
}

// --- payouts ---

type memPayoutRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.PayoutRequest
}

func newMemPayoutRepo() *memPayoutRepo {
	return &memPayoutRepo{requests: make(map[uuid.UUID]*model.PayoutRequest)}
}

func (r *memPayoutRepo) Create(_ context.Context, req *model.PayoutRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *memPayoutRepo) GetByID(_ context.Context, id uuid.UUID) (*model.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "payout request not found")
	}
	cp := *req
	return &cp, nil
}

func (r *memPayoutRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PayoutRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *memPayoutRepo) Save(_ context.Context, req *model.PayoutRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return apperr.New(apperr.KindNotFound, "payout request not found")
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *memPayoutRepo) HasOutstanding(_ context.Context, clientID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.ClientID == clientID && req.Status == model.PayoutRequested {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPayoutRepo) SumApprovedUnpaid(_ context.Context, clientID uuid.UUID, exclude uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, req := range r.requests {
		if req.ClientID == clientID && req.Status == model.PayoutApproved && req.ID != exclude {
			sum = sum.Add(req.Amount)
		}
	}
	return sum, nil
}

func (r *memPayoutRepo) ListByClient(_ context.Context, clientID uuid.UUID, _, _ int) ([]model.PayoutRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PayoutRequest
	for _, req := range r.requests {
		if req.ClientID == clientID {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memPayoutRepo) ListByStatus(_ context.Context, status string, _, _ int) ([]model.PayoutRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PayoutRequest
	for _, req := range r.requests {
		if status == "" || req.Status == status {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

// --- clients / nbfcs / products / audit ---

type memClientRepo struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*model.Client
}

func newMemClientRepo() *memClientRepo {
	return &memClientRepo{clients: make(map[uuid.UUID]*model.Client)}
}

func (r *memClientRepo) Create(_ context.Context, client *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	cp := *client
	r.clients[client.ID] = &cp
	return nil
}

func (r *memClientRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "client not found")
	}
	cp := *client
	return &cp, nil
}

func (r *memClientRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	return r.GetByID(ctx, id)
}

func (r *memClientRepo) List(_ context.Context, _, _ int) ([]model.Client, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Client
	for _, c := range r.clients {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *memClientRepo) Update(_ context.Context, client *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *client
	r.clients[client.ID] = &cp
	return nil
}

type memNbfcRepo struct {
	mu    sync.Mutex
	nbfcs map[uuid.UUID]*model.NbfcPartner
}

func newMemNbfcRepo() *memNbfcRepo {
	return &memNbfcRepo{nbfcs: make(map[uuid.UUID]*model.NbfcPartner)}
}

func (r *memNbfcRepo) Create(_ context.Context, nbfc *model.NbfcPartner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nbfc.ID == uuid.Nil {
		nbfc.ID = uuid.New()
	}
	cp := *nbfc
	r.nbfcs[nbfc.ID] = &cp
	return nil
}

func (r *memNbfcRepo) GetByID(_ context.Context, id uuid.UUID) (*model.NbfcPartner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nbfc, ok := r.nbfcs[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "nbfc not found")
	}
	cp := *nbfc
	return &cp, nil
}

func (r *memNbfcRepo) List(_ context.Context, _, _ int) ([]model.NbfcPartner, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.NbfcPartner
	for _, n := range r.nbfcs {
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]*model.LoanProduct
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[string]*model.LoanProduct)}
}

func (r *memProductRepo) Create(_ context.Context, product *model.LoanProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	cp := *product
	r.products[product.Code] = &cp
	return nil
}

func (r *memProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.LoanProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "loan product not found")
}

func (r *memProductRepo) GetByCode(_ context.Context, code string) (*model.LoanProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[code]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "loan product not found")
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) ListActive(_ context.Context) ([]model.LoanProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LoanProduct
	for _, p := range r.products {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

type memAuditRepo struct {
	mu   sync.Mutex
	logs []model.AuditLog
}

func newMemAuditRepo() *memAuditRepo { return &memAuditRepo{} }

func (r *memAuditRepo) Append(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, action string, _, _ int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for _, l := range r.logs {
		if action == "" || l.Action == action {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memAuditRepo) countAction(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, l := range r.logs {
		if l.Action == action {
			count++
		}
	}
	return count
}

// recordingNotifier captures sent emails.
type recordingNotifier struct {
	mu    sync.Mutex
	sends []string
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, to+": "+subject)
	return nil
}
