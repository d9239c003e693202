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

type RequestPayoutRequest struct {
	ClientID string `json:"client_id"` // Optional; defaults to the caller's own client account
	Amount   string `json:"amount"`    // Ignored when full=true
	Full     bool   `json:"full"`
}

type LedgerEntryResponse struct {
	ID                  string  `json:"id"`
	ClientID            string  `json:"client_id"`
	SourceApplicationID *string `json:"source_application_id"`
	EntryDate           string  `json:"entry_date"`
	DisbursedAmount     string  `json:"disbursed_amount"`
	CommissionRate      string  `json:"commission_rate"`
	PayoutAmount        string  `json:"payout_amount"`
	Description         string  `json:"description"`
	DisputeStatus       string  `json:"dispute_status"`
	PayoutRequestFlag   bool    `json:"payout_request_flag"`
	RunningBalance      string  `json:"running_balance"` // Balance after this entry, in insertion order
}

type StatementResponse struct {
	ClientID       string                `json:"client_id"`
	Entries        []LedgerEntryResponse `json:"entries"`
	CurrentBalance string                `json:"current_balance"`
}

type PayoutResponse struct {
	ID              string  `json:"id"`
	ClientID        string  `json:"client_id"`
	Amount          string  `json:"amount"`
	Full            bool    `json:"full"`
	Status          string  `json:"status"`
	RequestedAt     string  `json:"requested_at"`
	DecidedByID     *string `json:"decided_by_id"`
	DecidedAt       *string `json:"decided_at"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
}

// --- Interface ---

// LedgerService owns the append-only commission ledger and the payout-request
// lifecycle. All balance-changing operations serialize on the client row.
type LedgerService interface {
	// PostDisbursement appends the commission entry for a just-disbursed
	// application. It joins the caller's transaction and must run while the
	// application row is locked.
	PostDisbursement(txCtx context.Context, actor model.Actor, app *model.LoanApplication) (*model.LedgerEntry, error)

	RunningBalance(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
	Statement(ctx context.Context, actor model.Actor, clientID string) (*StatementResponse, error)
	FlagForPayout(ctx context.Context, actor model.Actor, entryID string) error
	RaiseDispute(ctx context.Context, actor model.Actor, entryID string, message string) (*QueryResponse, error)

	RequestPayout(ctx context.Context, actor model.Actor, req RequestPayoutRequest) (*PayoutResponse, error)
	ApprovePayout(ctx context.Context, actor model.Actor, requestID string) (*PayoutResponse, error)
	RejectPayout(ctx context.Context, actor model.Actor, requestID string, reason string) (*PayoutResponse, error)
	ListPayouts(ctx context.Context, actor model.Actor, status string, page, limit int) ([]PayoutResponse, int64, error)
}

type ledgerService struct {
	ledger  repository.LedgerRepository
	payouts repository.PayoutRepository
	clients repository.ClientRepository
	queries QueryService
	audit   repository.AuditRepository
	txm     repository.TransactionManager
	mailer  notifier.Notifier
	now     func() time.Time
}

func NewLedgerService(
	ledger repository.LedgerRepository,
	payouts repository.PayoutRepository,
	clients repository.ClientRepository,
	queries QueryService,
	audit repository.AuditRepository,
	txm repository.TransactionManager,
	mailer notifier.Notifier,
) LedgerService {
	return &ledgerService{
		ledger:  ledger,
		payouts: payouts,
		clients: clients,
		queries: queries,
		audit:   audit,
		txm:     txm,
		mailer:  mailer,
		now:     time.Now,
	}
}

// --- Implementation ---

func (s *ledgerService) PostDisbursement(txCtx context.Context, actor model.Actor, app *model.LoanApplication) (*model.LedgerEntry, error) {
	if !app.ApprovedAmount.Valid {
		return nil, apperr.New(apperr.KindInvalidTransition,
			"application %s has no approved amount to disburse", app.FileNumber)
	}

	// One commission entry per application, ever.
	existing, err := s.ledger.CountBySourceApplication(txCtx, app.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperr.New(apperr.KindInvalidTransition,
			"application %s already has a ledger entry", app.FileNumber)
	}

	// Lock the client row: the rate snapshot and the balance both hang off it.
	client, err := s.clients.GetByIDForUpdate(txCtx, app.ClientID)
	if err != nil {
		return nil, err
	}

	disbursed := app.ApprovedAmount.Decimal
	appID := app.ID
	entry := &model.LedgerEntry{
		ClientID:            client.ID,
		SourceApplicationID: &appID,
		EntryDate:           s.now(),
		DisbursedAmount:     disbursed,
		CommissionRate:      client.CommissionRate,
		PayoutAmount:        disbursed.Mul(client.CommissionRate),
		Description:         fmt.Sprintf("Commission for %s", app.FileNumber),
		DisputeStatus:       model.DisputeNone,
	}
	if err := s.ledger.Append(txCtx, entry); err != nil {
		return nil, err
	}

	if err := s.appendAudit(txCtx, actor, model.ActionPostLedgerEntry, entry.ID.String(), app.FileNumber, map[string]interface{}{
		"client_id":     client.ID.String(),
		"payout_amount": entry.PayoutAmount.StringFixed(4),
	}); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ledgerService) RunningBalance(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	return s.ledger.SumPayoutAmount(ctx, clientID)
}

func (s *ledgerService) Statement(ctx context.Context, actor model.Actor, clientID string) (*StatementResponse, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid client id")
	}
	if err := s.authorizeClientRead(ctx, actor, id); err != nil {
		return nil, err
	}

	entries, err := s.ledger.ListByClient(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &StatementResponse{ClientID: clientID, Entries: make([]LedgerEntryResponse, 0, len(entries))}
	balance := decimal.Zero
	for _, entry := range entries {
		balance = balance.Add(entry.PayoutAmount)
		row := toLedgerEntryResponse(entry)
		row.RunningBalance = balance.StringFixed(4)
		resp.Entries = append(resp.Entries, row)
	}
	resp.CurrentBalance = balance.StringFixed(4)
	return resp, nil
}

func (s *ledgerService) FlagForPayout(ctx context.Context, actor model.Actor, entryID string) error {
	id, err := uuid.Parse(entryID)
	if err != nil {
		return apperr.New(apperr.KindValidation, "invalid ledger entry id")
	}

	entry, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeClientRead(ctx, actor, entry.ClientID); err != nil {
		return err
	}
	return s.ledger.SetPayoutRequestFlag(ctx, id, true)
}

func (s *ledgerService) RaiseDispute(ctx context.Context, actor model.Actor, entryID string, message string) (*QueryResponse, error) {
	return s.queries.Raise(ctx, actor, RaiseQueryRequest{
		TargetID:     entryID,
		TargetKind:   model.TargetLedgerEntry,
		RaisedToRole: string(model.RoleCreditTeam),
		Message:      message,
	})
}

func (s *ledgerService) RequestPayout(ctx context.Context, actor model.Actor, req RequestPayoutRequest) (*PayoutResponse, error) {
	clientID, err := s.resolveClientID(actor, req.ClientID)
	if err != nil {
		return nil, err
	}

	var requested decimal.Decimal
	if !req.Full {
		requested, err = decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "invalid payout amount %q", req.Amount)
		}
	}

	var payout *model.PayoutRequest
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		// Per-client serialization point.
		if _, err := s.clients.GetByIDForUpdate(txCtx, clientID); err != nil {
			return err
		}

		outstanding, err := s.payouts.HasOutstanding(txCtx, clientID)
		if err != nil {
			return err
		}
		if outstanding {
			return apperr.New(apperr.KindOutstandingRequestExists,
				"client %s already has a pending payout request", clientID)
		}

		balance, err := s.ledger.SumPayoutAmount(txCtx, clientID)
		if err != nil {
			return err
		}

		amount := requested
		if req.Full {
			amount = balance
		}
		if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(balance) {
			return apperr.New(apperr.KindInsufficientBalance,
				"requested %s exceeds available balance %s", amount.StringFixed(4), balance.StringFixed(4))
		}

		payout = &model.PayoutRequest{
			ClientID:      clientID,
			Amount:        amount,
			Full:          req.Full,
			Status:        model.PayoutRequested,
			RequestedByID: actor.UserID,
			RequestedAt:   s.now(),
		}
		if err := s.payouts.Create(txCtx, payout); err != nil {
			return err
		}

		return s.appendAudit(txCtx, actor, model.ActionRequestPayout, payout.ID.String(), "", map[string]interface{}{
			"client_id": clientID.String(),
			"amount":    amount.StringFixed(4),
			"full":      req.Full,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toPayoutResponse(*payout)
	return &resp, nil
}

func (s *ledgerService) ApprovePayout(ctx context.Context, actor model.Actor, requestID string) (*PayoutResponse, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid payout request id")
	}
	if !actor.Role.Elevated() {
		return nil, apperr.New(apperr.KindUnauthorized, "role %s may not approve payouts", actor.Role)
	}

	var payout *model.PayoutRequest
	var client *model.Client
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		// Peek for the client id, then lock client before request to keep
		// lock order identical to RequestPayout.
		peek, err := s.payouts.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		client, err = s.clients.GetByIDForUpdate(txCtx, peek.ClientID)
		if err != nil {
			return err
		}
		req, err := s.payouts.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if req.Status != model.PayoutRequested {
			return apperr.New(apperr.KindInvalidTransition,
				"payout request %s is already %s", requestID, req.Status)
		}

		// Re-validate against the balance as of now, net of any other
		// approved-but-unpaid requests. The balance may have moved since the
		// request was filed.
		balance, err := s.ledger.SumPayoutAmount(txCtx, req.ClientID)
		if err != nil {
			return err
		}
		reserved, err := s.payouts.SumApprovedUnpaid(txCtx, req.ClientID, req.ID)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(balance.Sub(reserved)) {
			return apperr.New(apperr.KindInsufficientBalance,
				"payout %s exceeds available balance %s", req.Amount.StringFixed(4), balance.Sub(reserved).StringFixed(4))
		}

		// The offsetting entry carries the payment on the ledger itself.
		offset := &model.LedgerEntry{
			ClientID:      req.ClientID,
			EntryDate:     s.now(),
			PayoutAmount:  req.Amount.Neg(),
			Description:   fmt.Sprintf("Payout of %s", req.Amount.StringFixed(4)),
			DisputeStatus: model.DisputeNone,
		}
		if err := s.ledger.Append(txCtx, offset); err != nil {
			return err
		}

		now := s.now()
		decidedBy := actor.UserID
		req.Status = model.PayoutPaid
		req.DecidedByID = &decidedBy
		req.DecidedAt = &now
		if err := s.payouts.Save(txCtx, req); err != nil {
			return err
		}

		payout = req
		return s.appendAudit(txCtx, actor, model.ActionApprovePayout, req.ID.String(), "", map[string]interface{}{
			"client_id": req.ClientID.String(),
			"amount":    req.Amount.StringFixed(4),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyPayoutDecision(ctx, client, payout)
	resp := toPayoutResponse(*payout)
	return &resp, nil
}

func (s *ledgerService) RejectPayout(ctx context.Context, actor model.Actor, requestID string, reason string) (*PayoutResponse, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid payout request id")
	}
	if !actor.Role.Elevated() {
		return nil, apperr.New(apperr.KindUnauthorized, "role %s may not reject payouts", actor.Role)
	}
	// Validated before any state is touched.
	if reason == "" {
		return nil, apperr.New(apperr.KindValidation, "a rejection reason is required")
	}

	var payout *model.PayoutRequest
	var client *model.Client
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.payouts.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if req.Status != model.PayoutRequested {
			return apperr.New(apperr.KindInvalidTransition,
				"payout request %s is already %s", requestID, req.Status)
		}
		client, err = s.clients.GetByID(txCtx, req.ClientID)
		if err != nil {
			return err
		}

		now := s.now()
		decidedBy := actor.UserID
		req.Status = model.PayoutRejected
		req.DecidedByID = &decidedBy
		req.DecidedAt = &now
		req.RejectionReason = reason
		if err := s.payouts.Save(txCtx, req); err != nil {
			return err
		}

		payout = req
		return s.appendAudit(txCtx, actor, model.ActionRejectPayout, req.ID.String(), "", map[string]interface{}{
			"client_id": req.ClientID.String(),
			"reason":    reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyPayoutDecision(ctx, client, payout)
	resp := toPayoutResponse(*payout)
	return &resp, nil
}

func (s *ledgerService) ListPayouts(ctx context.Context, actor model.Actor, status string, page, limit int) ([]PayoutResponse, int64, error) {
	var (
		reqs  []model.PayoutRequest
		total int64
		err   error
	)
	if actor.Role == model.RoleClient {
		if actor.ClientID == nil {
			return nil, 0, apperr.New(apperr.KindUnauthorized, "client actor has no client account")
		}
		reqs, total, err = s.payouts.ListByClient(ctx, *actor.ClientID, page, limit)
	} else if actor.Role.Elevated() {
		reqs, total, err = s.payouts.ListByStatus(ctx, status, page, limit)
	} else {
		return nil, 0, apperr.New(apperr.KindUnauthorized, "role %s may not list payout requests", actor.Role)
	}
	if err != nil {
		return nil, 0, err
	}

	out := make([]PayoutResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toPayoutResponse(req))
	}
	return out, total, nil
}

// --- Helpers ---

func (s *ledgerService) resolveClientID(actor model.Actor, override string) (uuid.UUID, error) {
	if actor.Role == model.RoleClient {
		if actor.ClientID == nil {
			return uuid.Nil, apperr.New(apperr.KindUnauthorized, "client actor has no client account")
		}
		return *actor.ClientID, nil
	}
	if !actor.Role.Elevated() {
		return uuid.Nil, apperr.New(apperr.KindUnauthorized, "role %s may not act on the ledger", actor.Role)
	}
	id, err := uuid.Parse(override)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindValidation, "a valid client_id is required")
	}
	return id, nil
}

// authorizeClientRead gates ledger reads to the client itself, the client's
// KAM, and the elevated roles.
func (s *ledgerService) authorizeClientRead(ctx context.Context, actor model.Actor, clientID uuid.UUID) error {
	if actor.Role.Elevated() {
		return nil
	}
	if actor.ActsForClient(clientID) {
		return nil
	}
	if actor.Role == model.RoleKam {
		client, err := s.clients.GetByID(ctx, clientID)
		if err != nil {
			return err
		}
		if client.KamID != nil && *client.KamID == actor.UserID {
			return nil
		}
	}
	return apperr.New(apperr.KindUnauthorized, "role %s may not read this client's ledger", actor.Role)
}

func (s *ledgerService) notifyPayoutDecision(ctx context.Context, client *model.Client, payout *model.PayoutRequest) {
	if client == nil || payout == nil {
		return
	}
	subject := fmt.Sprintf("Payout request %s", payout.Status)
	body := fmt.Sprintf("Your payout request for %s is now %s.", payout.Amount.StringFixed(2), payout.Status)
	if payout.Status == model.PayoutRejected {
		body += " Reason: " + payout.RejectionReason
	}
	if err := s.mailer.Send(ctx, client.Email, subject, body); err != nil {
		log.Printf("payout notification failed for client %s: %v", client.ID, err)
	}
}

func (s *ledgerService) appendAudit(ctx context.Context, actor model.Actor, action, entityID, entityName string, details map[string]interface{}) error {
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

func toLedgerEntryResponse(entry model.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:                entry.ID.String(),
		ClientID:          entry.ClientID.String(),
		EntryDate:         entry.EntryDate.Format(time.RFC3339),
		DisbursedAmount:   entry.DisbursedAmount.StringFixed(4),
		CommissionRate:    entry.CommissionRate.StringFixed(4),
		PayoutAmount:      entry.PayoutAmount.StringFixed(4),
		Description:       entry.Description,
		DisputeStatus:     entry.DisputeStatus,
		PayoutRequestFlag: entry.PayoutRequestFlag,
	}
	if entry.SourceApplicationID != nil {
		id := entry.SourceApplicationID.String()
		resp.SourceApplicationID = &id
	}
	return resp
}

func toPayoutResponse(req model.PayoutRequest) PayoutResponse {
	resp := PayoutResponse{
		ID:              req.ID.String(),
		ClientID:        req.ClientID.String(),
		Amount:          req.Amount.StringFixed(4),
		Full:            req.Full,
		Status:          req.Status,
		RequestedAt:     req.RequestedAt.Format(time.RFC3339),
		RejectionReason: req.RejectionReason,
	}
	if req.DecidedByID != nil {
		id := req.DecidedByID.String()
		resp.DecidedByID = &id
	}
	if req.DecidedAt != nil {
		at := req.DecidedAt.Format(time.RFC3339)
		resp.DecidedAt = &at
	}
	return resp
}
