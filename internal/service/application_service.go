package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"lendflow/internal/apperr"
	"lendflow/internal/model"
	"lendflow/internal/notifier"
	"lendflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateApplicationRequest struct {
	ApplicantName   string `json:"applicant_name" binding:"required"`
	LoanProductCode string `json:"loan_product_code" binding:"required"`
	RequestedAmount string `json:"requested_amount" binding:"required"`
	FormData        string `json:"form_data"` // Opaque JSON, stored verbatim
}

type TransitionRequest struct {
	To    string `json:"to" binding:"required"`
	Notes string `json:"notes"`

	// Decision payload, read only on the SENT_TO_NBFC → APPROVED/REJECTED move.
	ApprovedAmount string `json:"approved_amount"`
	Remarks        string `json:"remarks"`
}

type AssignNbfcRequest struct {
	NbfcID string `json:"nbfc_id" binding:"required"`
}

type ApplicationResponse struct {
	ID              string   `json:"id"`
	FileNumber      string   `json:"file_number"`
	ClientID        string   `json:"client_id"`
	ClientName      string   `json:"client_name,omitempty"`
	ApplicantName   string   `json:"applicant_name"`
	LoanProductCode string   `json:"loan_product_code,omitempty"`
	RequestedAmount string   `json:"requested_amount"`
	ApprovedAmount  *string  `json:"approved_amount"`
	Status          string   `json:"status"`
	NextStatuses    []string `json:"next_statuses"`
	DecisionStatus  *string  `json:"decision_status"`
	DecisionRemarks string   `json:"decision_remarks,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

type StatusHistoryResponse struct {
	FromStatus *string `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	ActorID    string  `json:"actor_id"`
	ActorRole  string  `json:"actor_role"`
	Notes      string  `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type NbfcAssignmentResponse struct {
	NbfcID   string `json:"nbfc_id"`
	NbfcName string `json:"nbfc_name,omitempty"`
}

// ApplicationDetailResponse is the full read model: the aggregate, its ordered
// status trail, its assigned lenders, and every query thread with the derived
// awaiting-response flag.
type ApplicationDetailResponse struct {
	Application ApplicationResponse      `json:"application"`
	History     []StatusHistoryResponse  `json:"history"`
	Nbfcs       []NbfcAssignmentResponse `json:"nbfcs"`
	Queries     []QueryThreadResponse    `json:"queries"`
	FormData    string                   `json:"form_data"`
}

// --- Interface ---

// ApplicationService owns the loan application lifecycle. Every status move
// goes through Transition, which enforces the transition table, role and
// entity-scope authorization, and the per-status guards in one transaction.
type ApplicationService interface {
	Create(ctx context.Context, actor model.Actor, req CreateApplicationRequest) (*ApplicationResponse, error)
	Transition(ctx context.Context, actor model.Actor, applicationID string, req TransitionRequest) (*ApplicationResponse, error)
	AssignNbfc(ctx context.Context, actor model.Actor, applicationID string, req AssignNbfcRequest) error
	Get(ctx context.Context, actor model.Actor, applicationID string) (*ApplicationDetailResponse, error)
	List(ctx context.Context, actor model.Actor, status string, page, limit int) ([]ApplicationResponse, int64, error)
}

type applicationService struct {
	apps     repository.ApplicationRepository
	clients  repository.ClientRepository
	nbfcs    repository.NbfcRepository
	products ProductService
	queries  repository.QueryRepository
	qsvc     QueryService
	ledger   LedgerService
	audit    repository.AuditRepository
	txm      repository.TransactionManager
	mailer   notifier.Notifier
	now      func() time.Time
}

func NewApplicationService(
	apps repository.ApplicationRepository,
	clients repository.ClientRepository,
	nbfcs repository.NbfcRepository,
	products ProductService,
	queries repository.QueryRepository,
	qsvc QueryService,
	ledger LedgerService,
	audit repository.AuditRepository,
	txm repository.TransactionManager,
	mailer notifier.Notifier,
) ApplicationService {
	return &applicationService{
		apps:     apps,
		clients:  clients,
		nbfcs:    nbfcs,
		products: products,
		queries:  queries,
		qsvc:     qsvc,
		ledger:   ledger,
		audit:    audit,
		txm:      txm,
		mailer:   mailer,
		now:      time.Now,
	}
}

// --- Create ---

func (s *applicationService) Create(ctx context.Context, actor model.Actor, req CreateApplicationRequest) (*ApplicationResponse, error) {
	if actor.Role != model.RoleClient || actor.ClientID == nil {
		return nil, apperr.New(apperr.KindUnauthorized, "only a client may create an application")
	}

	amount, err := decimal.NewFromString(req.RequestedAmount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.New(apperr.KindValidation, "invalid requested amount %q", req.RequestedAmount)
	}

	product, err := s.products.GetActiveByCode(ctx, req.LoanProductCode)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(product.MinAmount) || amount.GreaterThan(product.MaxAmount) {
		return nil, apperr.New(apperr.KindValidation,
			"requested amount %s is outside product %s range [%s, %s]",
			amount.StringFixed(2), product.Code, product.MinAmount.StringFixed(2), product.MaxAmount.StringFixed(2))
	}
	if req.FormData != "" && !json.Valid([]byte(req.FormData)) {
		return nil, apperr.New(apperr.KindValidation, "form_data must be valid JSON")
	}

	var app *model.LoanApplication
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		prefix := "LF-" + s.now().Format("20060102") + "-"
		fileNumber, err := s.apps.NextFileNumber(txCtx, prefix)
		if err != nil {
			return err
		}

		app = &model.LoanApplication{
			FileNumber:      fileNumber,
			ClientID:        *actor.ClientID,
			ApplicantName:   req.ApplicantName,
			LoanProductID:   product.ID,
			RequestedAmount: amount,
			Status:          model.StatusDraft,
			FormData:        req.FormData,
		}
		if err := s.apps.Create(txCtx, app); err != nil {
			return err
		}

		// Creation entry anchors the status trail; FromStatus stays nil.
		if err := s.apps.AppendHistory(txCtx, &model.StatusHistoryEntry{
			ApplicationID: app.ID,
			ToStatus:      model.StatusDraft,
			ActorID:       actor.UserID,
			ActorRole:     actor.Role,
		}); err != nil {
			return err
		}

		return s.appendAudit(txCtx, actor, model.ActionCreateApplication, app.ID.String(), fileNumber, map[string]interface{}{
			"client_id":        app.ClientID.String(),
			"requested_amount": amount.StringFixed(2),
			"product":          product.Code,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toApplicationResponse(*app)
	return &resp, nil
}

// --- Transition ---

func (s *applicationService) Transition(ctx context.Context, actor model.Actor, applicationID string, req TransitionRequest) (*ApplicationResponse, error) {
	id, err := uuid.Parse(applicationID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid application id")
	}
	to := model.Status(req.To)
	if !model.ValidStatus(to) {
		return nil, apperr.New(apperr.KindValidation, "unknown status %q", req.To)
	}

	var app *model.LoanApplication
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		// Per-application serialization point: concurrent moves queue here and
		// the loser re-evaluates against the winner's committed status.
		a, err := s.apps.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if !model.TransitionDefined(a.Status, to) {
			return apperr.New(apperr.KindInvalidTransition,
				"cannot move %s from %s to %s", a.FileNumber, a.Status, to)
		}
		if !model.TransitionAllowed(a.Status, to, actor.Role) {
			return apperr.New(apperr.KindUnauthorized,
				"role %s may not move %s from %s to %s", actor.Role, a.FileNumber, a.Status, to)
		}
		if err := s.authorizeApplicationActor(txCtx, actor, a); err != nil {
			return err
		}

		from := a.Status
		if err := s.applyTransitionEffects(txCtx, actor, a, to, req); err != nil {
			return err
		}

		a.Status = to
		if err := s.apps.Save(txCtx, a); err != nil {
			return err
		}

		if err := s.apps.AppendHistory(txCtx, &model.StatusHistoryEntry{
			ApplicationID: a.ID,
			FromStatus:    &from,
			ToStatus:      to,
			ActorID:       actor.UserID,
			ActorRole:     actor.Role,
			Notes:         req.Notes,
		}); err != nil {
			return err
		}

		app = a
		return s.appendAudit(txCtx, actor, model.ActionTransitionStatus, a.ID.String(), a.FileNumber, map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, app)
	resp := toApplicationResponse(*app)
	return &resp, nil
}

// authorizeApplicationActor enforces entity scope on top of the role gate:
// clients act on their own files, KAMs on their portfolio, NBFCs on files
// assigned to them. Elevated roles see everything.
func (s *applicationService) authorizeApplicationActor(ctx context.Context, actor model.Actor, app *model.LoanApplication) error {
	switch actor.Role {
	case model.RoleClient:
		if !actor.ActsForClient(app.ClientID) {
			return apperr.New(apperr.KindUnauthorized, "application %s belongs to another client", app.FileNumber)
		}
	case model.RoleKam:
		client, err := s.clients.GetByID(ctx, app.ClientID)
		if err != nil {
			return err
		}
		if client.KamID == nil || *client.KamID != actor.UserID {
			return apperr.New(apperr.KindUnauthorized, "application %s is outside your portfolio", app.FileNumber)
		}
	case model.RoleNbfc:
		if actor.NbfcID == nil {
			return apperr.New(apperr.KindUnauthorized, "nbfc actor has no partner account")
		}
		assignments, err := s.apps.ListNbfcs(ctx, app.ID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.NbfcID == *actor.NbfcID {
				return nil
			}
		}
		return apperr.New(apperr.KindUnauthorized, "application %s is not assigned to your institution", app.FileNumber)
	}
	return nil
}

// applyTransitionEffects runs the per-status guards and side effects inside
// the caller's transaction, with the application row locked.
func (s *applicationService) applyTransitionEffects(ctx context.Context, actor model.Actor, app *model.LoanApplication, to model.Status, req TransitionRequest) error {
	switch to {
	case model.StatusWithdrawn:
		// A file under an open KAM query cannot be silently withdrawn.
		open, err := s.queries.CountOpenRaisedByRole(ctx, app.ID, model.RoleKam)
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.New(apperr.KindInvalidTransition,
				"%s has unresolved KAM queries; resolve them before withdrawing", app.FileNumber)
		}

	case model.StatusKamQueryRaised:
		return s.raiseSideEffectQuery(ctx, actor, app, model.RoleClient, req.Notes)

	case model.StatusCreditQueryRaised:
		return s.raiseSideEffectQuery(ctx, actor, app, model.RoleKam, req.Notes)

	case model.StatusPendingKamReview:
		// Returning from KAM_QUERY_RAISED requires the client to have nothing
		// left to answer. The initial DRAFT submission has no such guard.
		if app.Status == model.StatusKamQueryRaised {
			open, err := s.queries.CountOpenRaisedToRole(ctx, app.ID, model.RoleClient)
			if err != nil {
				return err
			}
			if open > 0 {
				return apperr.New(apperr.KindInvalidTransition,
					"%s still has open queries awaiting the client", app.FileNumber)
			}
		}

	case model.StatusForwardedToCredit:
		if app.Status == model.StatusCreditQueryRaised {
			open, err := s.queries.CountOpenRaisedToRole(ctx, app.ID, model.RoleKam)
			if err != nil {
				return err
			}
			if open > 0 {
				return apperr.New(apperr.KindInvalidTransition,
					"%s still has open credit queries awaiting the KAM", app.FileNumber)
			}
		} else {
			open, err := s.queries.CountOpen(ctx, app.ID)
			if err != nil {
				return err
			}
			if open > 0 {
				return apperr.New(apperr.KindInvalidTransition,
					"%s has unresolved queries and cannot be forwarded", app.FileNumber)
			}
		}

	case model.StatusSentToNbfc:
		count, err := s.apps.CountNbfcs(ctx, app.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return apperr.New(apperr.KindInvalidTransition,
				"%s has no NBFC assigned; assign at least one lender first", app.FileNumber)
		}

	case model.StatusApproved:
		amount, err := decimal.NewFromString(req.ApprovedAmount)
		if err != nil || amount.LessThanOrEqual(decimal.Zero) {
			return apperr.New(apperr.KindValidation, "an approved amount greater than zero is required")
		}
		now := s.now()
		decision := model.DecisionApproved
		app.ApprovedAmount = decimal.NewNullDecimal(amount)
		app.DecisionStatus = &decision
		app.DecisionRemarks = req.Remarks
		app.DecisionAt = &now
		app.DecisionNbfcID = actor.NbfcID

	case model.StatusRejected:
		if req.Remarks == "" {
			return apperr.New(apperr.KindValidation, "rejection remarks are required")
		}
		now := s.now()
		decision := model.DecisionRejected
		app.DecisionStatus = &decision
		app.DecisionRemarks = req.Remarks
		app.DecisionAt = &now
		app.DecisionNbfcID = actor.NbfcID

	case model.StatusDisbursed:
		if !app.ApprovedAmount.Valid {
			return apperr.New(apperr.KindInvalidTransition,
				"%s has no approved amount and cannot be disbursed", app.FileNumber)
		}
		// Commission posts atomically with the status move.
		if _, err := s.ledger.PostDisbursement(ctx, actor, app); err != nil {
			return err
		}
	}
	return nil
}

// raiseSideEffectQuery creates the query thread that a *_QUERY_RAISED status
// implies. It writes through the query repository directly so the thread
// commits or rolls back with the status move.
func (s *applicationService) raiseSideEffectQuery(ctx context.Context, actor model.Actor, app *model.LoanApplication, toRole model.Role, message string) error {
	if message == "" {
		return apperr.New(apperr.KindValidation, "a query message is required to raise a query status")
	}

	open, err := s.queries.HasOpenByInitiator(ctx, app.ID, actor.UserID)
	if err != nil {
		return err
	}
	if open {
		return apperr.New(apperr.KindDuplicateOpenQuery,
			"you already have an unresolved query on %s", app.FileNumber)
	}

	query := &model.Query{
		TargetID:     app.ID,
		TargetKind:   model.TargetApplication,
		RaisedByID:   actor.UserID,
		RaisedByRole: actor.Role,
		RaisedToRole: toRole,
		Message:      message,
	}
	if err := s.queries.Create(ctx, query); err != nil {
		return err
	}
	return s.appendAudit(ctx, actor, model.ActionRaiseQuery, query.ID.String(), app.FileNumber, map[string]interface{}{
		"target_id":      app.ID.String(),
		"raised_to_role": string(toRole),
	})
}

// --- AssignNbfc ---

func (s *applicationService) AssignNbfc(ctx context.Context, actor model.Actor, applicationID string, req AssignNbfcRequest) error {
	if !actor.Role.Elevated() {
		return apperr.New(apperr.KindUnauthorized, "role %s may not assign lenders", actor.Role)
	}
	appID, err := uuid.Parse(applicationID)
	if err != nil {
		return apperr.New(apperr.KindValidation, "invalid application id")
	}
	nbfcID, err := uuid.Parse(req.NbfcID)
	if err != nil {
		return apperr.New(apperr.KindValidation, "invalid nbfc id")
	}

	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		app, err := s.apps.GetByIDForUpdate(txCtx, appID)
		if err != nil {
			return err
		}
		switch app.Status {
		case model.StatusForwardedToCredit, model.StatusCreditQueryRaised, model.StatusInNegotiation, model.StatusSentToNbfc:
			// assignable
		default:
			return apperr.New(apperr.KindInvalidTransition,
				"%s is %s; lenders can only be assigned during credit review", app.FileNumber, app.Status)
		}

		nbfc, err := s.nbfcs.GetByID(txCtx, nbfcID)
		if err != nil {
			return err
		}
		if !nbfc.IsActive {
			return apperr.New(apperr.KindValidation, "nbfc %s is inactive", nbfc.Name)
		}

		assignments, err := s.apps.ListNbfcs(txCtx, appID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.NbfcID == nbfcID {
				return apperr.New(apperr.KindValidation, "nbfc %s is already assigned to %s", nbfc.Name, app.FileNumber)
			}
		}

		if err := s.apps.AssignNbfc(txCtx, &model.NbfcAssignment{
			ApplicationID: appID,
			NbfcID:        nbfcID,
			AssignedByID:  actor.UserID,
		}); err != nil {
			return err
		}

		return s.appendAudit(txCtx, actor, model.ActionAssignNbfc, app.ID.String(), app.FileNumber, map[string]interface{}{
			"nbfc_id": nbfcID.String(),
		})
	})
}

// --- Reads ---

func (s *applicationService) Get(ctx context.Context, actor model.Actor, applicationID string) (*ApplicationDetailResponse, error) {
	id, err := uuid.Parse(applicationID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid application id")
	}

	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeApplicationActor(ctx, actor, app); err != nil {
		return nil, err
	}

	history, err := s.apps.ListHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	threads, err := s.qsvc.ListThreads(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	detail := &ApplicationDetailResponse{
		Application: toApplicationResponse(*app),
		History:     make([]StatusHistoryResponse, 0, len(history)),
		Nbfcs:       make([]NbfcAssignmentResponse, 0, len(app.Nbfcs)),
		Queries:     threads,
		FormData:    app.FormData,
	}
	for _, h := range history {
		entry := StatusHistoryResponse{
			ToStatus:  string(h.ToStatus),
			ActorID:   h.ActorID.String(),
			ActorRole: string(h.ActorRole),
			Notes:     h.Notes,
			CreatedAt: h.CreatedAt.Format(time.RFC3339),
		}
		if h.FromStatus != nil {
			from := string(*h.FromStatus)
			entry.FromStatus = &from
		}
		detail.History = append(detail.History, entry)
	}
	for _, a := range app.Nbfcs {
		na := NbfcAssignmentResponse{NbfcID: a.NbfcID.String()}
		if a.Nbfc != nil {
			na.NbfcName = a.Nbfc.Name
		}
		detail.Nbfcs = append(detail.Nbfcs, na)
	}
	return detail, nil
}

func (s *applicationService) List(ctx context.Context, actor model.Actor, status string, page, limit int) ([]ApplicationResponse, int64, error) {
	filter := repository.ApplicationFilter{
		Status: model.Status(status),
		Page:   page,
		Limit:  limit,
	}
	switch actor.Role {
	case model.RoleClient:
		if actor.ClientID == nil {
			return nil, 0, apperr.New(apperr.KindUnauthorized, "client actor has no client account")
		}
		filter.ClientID = actor.ClientID
	case model.RoleKam:
		kamID := actor.UserID
		filter.KamID = &kamID
	case model.RoleNbfc:
		if actor.NbfcID == nil {
			return nil, 0, apperr.New(apperr.KindUnauthorized, "nbfc actor has no partner account")
		}
		filter.NbfcID = actor.NbfcID
	}

	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	return out, total, nil
}

// --- Helpers ---

// notifyDecision emails the client after a commit that lands on a decision
// status. Failures are logged, never surfaced.
func (s *applicationService) notifyDecision(ctx context.Context, app *model.LoanApplication) {
	var subject, body string
	switch app.Status {
	case model.StatusApproved:
		subject = fmt.Sprintf("Application %s approved", app.FileNumber)
		body = fmt.Sprintf("Your application %s was approved for %s.", app.FileNumber, app.ApprovedAmount.Decimal.StringFixed(2))
	case model.StatusRejected:
		subject = fmt.Sprintf("Application %s rejected", app.FileNumber)
		body = fmt.Sprintf("Your application %s was rejected. Remarks: %s", app.FileNumber, app.DecisionRemarks)
	case model.StatusDisbursed:
		subject = fmt.Sprintf("Application %s disbursed", app.FileNumber)
		body = fmt.Sprintf("Funds for application %s have been disbursed.", app.FileNumber)
	default:
		return
	}

	client, err := s.clients.GetByID(ctx, app.ClientID)
	if err != nil {
		log.Printf("decision notification lookup failed for %s: %v", app.FileNumber, err)
		return
	}
	if err := s.mailer.Send(ctx, client.Email, subject, body); err != nil {
		log.Printf("decision notification failed for %s: %v", app.FileNumber, err)
	}
}

func (s *applicationService) appendAudit(ctx context.Context, actor model.Actor, action, entityID, entityName string, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	userID := actor.UserID
	return s.audit.Append(ctx, &model.AuditLog{
		UserID:     &userID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	})
}

func toApplicationResponse(app model.LoanApplication) ApplicationResponse {
	resp := ApplicationResponse{
		ID:              app.ID.String(),
		FileNumber:      app.FileNumber,
		ClientID:        app.ClientID.String(),
		ApplicantName:   app.ApplicantName,
		RequestedAmount: app.RequestedAmount.StringFixed(2),
		Status:          string(app.Status),
		DecisionStatus:  app.DecisionStatus,
		DecisionRemarks: app.DecisionRemarks,
		CreatedAt:       app.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       app.UpdatedAt.Format(time.RFC3339),
	}
	if app.Client != nil {
		resp.ClientName = app.Client.Name
	}
	if app.LoanProduct != nil {
		resp.LoanProductCode = app.LoanProduct.Code
	}
	if app.ApprovedAmount.Valid {
		amount := app.ApprovedAmount.Decimal.StringFixed(2)
		resp.ApprovedAmount = &amount
	}
	for _, next := range model.NextStatuses(app.Status) {
		resp.NextStatuses = append(resp.NextStatuses, string(next))
	}
	return resp
}
