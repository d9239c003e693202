package service

import (
	"context"
	"encoding/json"
	"time"

	"lendflow/internal/apperr"
	"lendflow/internal/model"
	"lendflow/internal/repository"

	"github.com/google/uuid"
)

// editWindow bounds how long the author may rewrite a thread's root message.
const editWindow = 15 * time.Minute

// --- DTOs ---

type RaiseQueryRequest struct {
	TargetID     string `json:"target_id" binding:"required"`
	TargetKind   string `json:"target_kind" binding:"required,oneof=APPLICATION LEDGER_ENTRY"`
	RaisedToRole string `json:"raised_to_role" binding:"required"`
	Message      string `json:"message" binding:"required"`
}

type QueryResponse struct {
	ID             string  `json:"id"`
	TargetID       string  `json:"target_id"`
	TargetKind     string  `json:"target_kind"`
	RaisedByID     string  `json:"raised_by_id"`
	RaisedByRole   string  `json:"raised_by_role"`
	RaisedToRole   string  `json:"raised_to_role"`
	Message        string  `json:"message"`
	Resolved       bool    `json:"resolved"`
	ResolvedByID   *string `json:"resolved_by_id"`
	ResolvedAt     *string `json:"resolved_at"`
	ResolutionNote string  `json:"resolution_note,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type QueryReplyResponse struct {
	ID        string `json:"id"`
	QueryID   string `json:"query_id"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// QueryThreadResponse bundles a root query with its ordered replies and the
// derived awaiting-response flag. AwaitingResponseFrom is recomputed on every
// read, never stored.
type QueryThreadResponse struct {
	Query                QueryResponse        `json:"query"`
	Replies              []QueryReplyResponse `json:"replies"`
	AwaitingResponseFrom *string              `json:"awaiting_response_from"` // Role, nil once resolved
}

// --- Interface ---

type QueryService interface {
	Raise(ctx context.Context, actor model.Actor, req RaiseQueryRequest) (*QueryResponse, error)
	Reply(ctx context.Context, actor model.Actor, queryID string, message string) (*QueryReplyResponse, error)
	Resolve(ctx context.Context, actor model.Actor, queryID string, resolutionNote string) (*QueryResponse, error)
	Edit(ctx context.Context, actor model.Actor, queryID string, newMessage string) (*QueryResponse, error)
	ListThreads(ctx context.Context, targetID string) ([]QueryThreadResponse, error)
	AwaitingResponseFrom(ctx context.Context, targetID uuid.UUID, role model.Role) (bool, error)
}

type queryService struct {
	queries repository.QueryRepository
	apps    repository.ApplicationRepository
	ledger  repository.LedgerRepository
	audit   repository.AuditRepository
	txm     repository.TransactionManager
	now     func() time.Time
}

func NewQueryService(
	queries repository.QueryRepository,
	apps repository.ApplicationRepository,
	ledger repository.LedgerRepository,
	audit repository.AuditRepository,
	txm repository.TransactionManager,
) QueryService {
	return &queryService{
		queries: queries,
		apps:    apps,
		ledger:  ledger,
		audit:   audit,
		txm:     txm,
		now:     time.Now,
	}
}

// --- Implementation ---

func (s *queryService) Raise(ctx context.Context, actor model.Actor, req RaiseQueryRequest) (*QueryResponse, error) {
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid target id")
	}
	toRole := model.Role(req.RaisedToRole)
	if !model.ValidRole(toRole) {
		return nil, apperr.New(apperr.KindValidation, "unknown role %q", req.RaisedToRole)
	}
	if req.Message == "" {
		return nil, apperr.New(apperr.KindValidation, "query message must not be empty")
	}

	var query *model.Query
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		switch req.TargetKind {
		case model.TargetApplication:
			app, err := s.apps.GetByID(txCtx, targetID)
			if err != nil {
				return err
			}
			if actor.Role == model.RoleClient && !actor.ActsForClient(app.ClientID) {
				return apperr.New(apperr.KindUnauthorized, "client may only raise queries on their own applications")
			}
		case model.TargetLedgerEntry:
			entry, err := s.ledger.GetByID(txCtx, targetID)
			if err != nil {
				return err
			}
			if actor.Role == model.RoleClient && !actor.ActsForClient(entry.ClientID) {
				return apperr.New(apperr.KindUnauthorized, "client may only dispute their own ledger entries")
			}
		default:
			return apperr.New(apperr.KindValidation, "unknown target kind %q", req.TargetKind)
		}

		open, err := s.queries.HasOpenByInitiator(txCtx, targetID, actor.UserID)
		if err != nil {
			return err
		}
		if open {
			return apperr.New(apperr.KindDuplicateOpenQuery,
				"an unresolved query by this initiator already exists on target %s", targetID)
		}

		query = &model.Query{
			TargetID:     targetID,
			TargetKind:   req.TargetKind,
			RaisedByID:   actor.UserID,
			RaisedByRole: actor.Role,
			RaisedToRole: toRole,
			Message:      req.Message,
		}
		if err := s.queries.Create(txCtx, query); err != nil {
			return err
		}

		// Denormalized projection on the disputed entry.
		if req.TargetKind == model.TargetLedgerEntry {
			if err := s.ledger.SetDisputeStatus(txCtx, targetID, model.DisputeUnderQuery); err != nil {
				return err
			}
		}

		return s.appendAudit(txCtx, actor, model.ActionRaiseQuery, query.ID.String(), req.TargetKind, map[string]interface{}{
			"target_id":      req.TargetID,
			"raised_to_role": req.RaisedToRole,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toQueryResponse(*query)
	return &resp, nil
}

func (s *queryService) Reply(ctx context.Context, actor model.Actor, queryID string, message string) (*QueryReplyResponse, error) {
	id, err := uuid.Parse(queryID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid query id")
	}
	if message == "" {
		return nil, apperr.New(apperr.KindValidation, "reply message must not be empty")
	}

	var reply *model.QueryReply
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.queries.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if q.Resolved {
			return apperr.New(apperr.KindThreadResolved, "query %s is resolved; start a new query instead", queryID)
		}

		reply = &model.QueryReply{
			QueryID:   q.ID,
			ActorID:   actor.UserID,
			ActorRole: actor.Role,
			Message:   message,
		}
		return s.queries.AddReply(txCtx, reply)
	})
	if err != nil {
		return nil, err
	}

	resp := toReplyResponse(*reply)
	return &resp, nil
}

func (s *queryService) Resolve(ctx context.Context, actor model.Actor, queryID string, resolutionNote string) (*QueryResponse, error) {
	id, err := uuid.Parse(queryID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid query id")
	}

	var query *model.Query
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.queries.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if q.Resolved {
			return apperr.New(apperr.KindAlreadyResolved, "query %s is already resolved", queryID)
		}
		// Only the author, or an elevated resolver role, may close a thread.
		if q.RaisedByID != actor.UserID && !actor.Role.CanResolveAnyQuery() {
			return apperr.New(apperr.KindUnauthorized,
				"role %s may not resolve a query raised by someone else", actor.Role)
		}

		now := s.now()
		resolvedBy := actor.UserID
		q.Resolved = true
		q.ResolvedByID = &resolvedBy
		q.ResolvedAt = &now
		q.ResolutionNote = resolutionNote
		if err := s.queries.Save(txCtx, q); err != nil {
			return err
		}

		// Clear the dispute projection once the entry has no open threads left.
		if q.TargetKind == model.TargetLedgerEntry {
			open, err := s.queries.CountOpen(txCtx, q.TargetID)
			if err != nil {
				return err
			}
			if open == 0 {
				if err := s.ledger.SetDisputeStatus(txCtx, q.TargetID, model.DisputeResolved); err != nil {
					return err
				}
			}
		}

		query = q
		return s.appendAudit(txCtx, actor, model.ActionResolveQuery, q.ID.String(), q.TargetKind, map[string]interface{}{
			"target_id": q.TargetID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toQueryResponse(*query)
	return &resp, nil
}

func (s *queryService) Edit(ctx context.Context, actor model.Actor, queryID string, newMessage string) (*QueryResponse, error) {
	id, err := uuid.Parse(queryID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid query id")
	}
	if newMessage == "" {
		return nil, apperr.New(apperr.KindValidation, "query message must not be empty")
	}

	var query *model.Query
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.queries.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if q.RaisedByID != actor.UserID {
			return apperr.New(apperr.KindUnauthorized, "only the author may edit a query")
		}
		if q.Resolved {
			return apperr.New(apperr.KindThreadResolved, "query %s is resolved and immutable", queryID)
		}
		if s.now().Sub(q.CreatedAt) > editWindow {
			return apperr.New(apperr.KindEditWindowExpired,
				"query %s can no longer be edited (window is %s)", queryID, editWindow)
		}

		q.Message = newMessage
		query = q
		return s.queries.Save(txCtx, q)
	})
	if err != nil {
		return nil, err
	}

	resp := toQueryResponse(*query)
	return &resp, nil
}

func (s *queryService) ListThreads(ctx context.Context, targetID string) ([]QueryThreadResponse, error) {
	id, err := uuid.Parse(targetID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid target id")
	}

	queries, err := s.queries.ListByTarget(ctx, id)
	if err != nil {
		return nil, err
	}

	threads := make([]QueryThreadResponse, 0, len(queries))
	for _, q := range queries {
		thread := QueryThreadResponse{
			Query:   toQueryResponse(q),
			Replies: make([]QueryReplyResponse, 0, len(q.Replies)),
		}
		for _, reply := range q.Replies {
			thread.Replies = append(thread.Replies, toReplyResponse(reply))
		}
		if !q.Resolved {
			role := string(q.RaisedToRole)
			thread.AwaitingResponseFrom = &role
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

func (s *queryService) AwaitingResponseFrom(ctx context.Context, targetID uuid.UUID, role model.Role) (bool, error) {
	count, err := s.queries.CountOpenRaisedToRole(ctx, targetID, role)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *queryService) appendAudit(ctx context.Context, actor model.Actor, action, entityID, entityName string, details map[string]interface{}) error {
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

// --- Helpers ---

func toQueryResponse(q model.Query) QueryResponse {
	resp := QueryResponse{
		ID:             q.ID.String(),
		TargetID:       q.TargetID.String(),
		TargetKind:     q.TargetKind,
		RaisedByID:     q.RaisedByID.String(),
		RaisedByRole:   string(q.RaisedByRole),
		RaisedToRole:   string(q.RaisedToRole),
		Message:        q.Message,
		Resolved:       q.Resolved,
		ResolutionNote: q.ResolutionNote,
		CreatedAt:      q.CreatedAt.Format(time.RFC3339),
	}
	if q.ResolvedByID != nil {
		id := q.ResolvedByID.String()
		resp.ResolvedByID = &id
	}
	if q.ResolvedAt != nil {
		at := q.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &at
	}
	return resp
}

func toReplyResponse(r model.QueryReply) QueryReplyResponse {
	return QueryReplyResponse{
		ID:        r.ID.String(),
		QueryID:   r.QueryID.String(),
		ActorID:   r.ActorID.String(),
		ActorRole: string(r.ActorRole),
		Message:   r.Message,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}
