package service

import (
	"context"
	"time"

	"lendflow/internal/apperr"
	"lendflow/internal/model"
	"lendflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateClientRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone"`
	KamID          string `json:"kam_id"`
	CommissionRate string `json:"commission_rate" binding:"required"`
}

type UpdateCommissionRateRequest struct {
	CommissionRate string `json:"commission_rate" binding:"required"`
}

type ClientResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	KamID          *string `json:"kam_id"`
	CommissionRate string  `json:"commission_rate"`
	IsActive       bool    `json:"is_active"`
	CreatedAt      string  `json:"created_at"`
}

type CreateNbfcRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
}

type NbfcResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	IsActive      bool   `json:"is_active"`
}

// ClientService manages the client registry and the NBFC partner registry.
// Changing a commission rate only affects ledger entries posted afterwards;
// existing entries keep their snapshot.
type ClientService interface {
	CreateClient(ctx context.Context, actor model.Actor, req CreateClientRequest) (*ClientResponse, error)
	GetClient(ctx context.Context, actor model.Actor, id string) (*ClientResponse, error)
	ListClients(ctx context.Context, actor model.Actor, page, limit int) ([]ClientResponse, int64, error)
	UpdateCommissionRate(ctx context.Context, actor model.Actor, id string, req UpdateCommissionRateRequest) (*ClientResponse, error)

	CreateNbfc(ctx context.Context, actor model.Actor, req CreateNbfcRequest) (*NbfcResponse, error)
	ListNbfcs(ctx context.Context, page, limit int) ([]NbfcResponse, int64, error)
}

type clientService struct {
	clients repository.ClientRepository
	nbfcs   repository.NbfcRepository
	users   repository.UserRepository
	txm     repository.TransactionManager
}

func NewClientService(
	clients repository.ClientRepository,
	nbfcs repository.NbfcRepository,
	users repository.UserRepository,
	txm repository.TransactionManager,
) ClientService {
	return &clientService{clients: clients, nbfcs: nbfcs, users: users, txm: txm}
}

func (s *clientService) CreateClient(ctx context.Context, actor model.Actor, req CreateClientRequest) (*ClientResponse, error) {
	if !actor.Role.Elevated() {
		return nil, apperr.New(apperr.KindUnauthorized, "role %s may not manage clients", actor.Role)
	}

	rate, err := parseCommissionRate(req.CommissionRate)
	if err != nil {
		return nil, err
	}

	client := &model.Client{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		CommissionRate: rate,
		IsActive:       true,
	}
	if req.KamID != "" {
		kamID, err := uuid.Parse(req.KamID)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "invalid kam id")
		}
		kam, err := s.users.GetByID(ctx, kamID.String())
		if err != nil {
			return nil, err
		}
		if kam.Role != model.RoleKam {
			return nil, apperr.New(apperr.KindValidation, "user %s is not a KAM", req.KamID)
		}
		client.KamID = &kamID
	}

	if err := s.clients.Create(ctx, client); err != nil {
		return nil, err
	}
	resp := toClientResponse(*client)
	return &resp, nil
}

func (s *clientService) GetClient(ctx context.Context, actor model.Actor, id string) (*ClientResponse, error) {
	clientID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid client id")
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Elevated() && !actor.ActsForClient(client.ID) {
		if actor.Role != model.RoleKam || client.KamID == nil || *client.KamID != actor.UserID {
			return nil, apperr.New(apperr.KindUnauthorized, "role %s may not view this client", actor.Role)
		}
	}
	resp := toClientResponse(*client)
	return &resp, nil
}

func (s *clientService) ListClients(ctx context.Context, actor model.Actor, page, limit int) ([]ClientResponse, int64, error) {
	if !actor.Role.Elevated() && actor.Role != model.RoleKam {
		return nil, 0, apperr.New(apperr.KindUnauthorized, "role %s may not list clients", actor.Role)
	}

	clients, total, err := s.clients.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		// KAMs only see their own portfolio.
		if actor.Role == model.RoleKam && (c.KamID == nil || *c.KamID != actor.UserID) {
			continue
		}
		out = append(out, toClientResponse(c))
	}
	return out, total, nil
}

func (s *clientService) UpdateCommissionRate(ctx context.Context, actor model.Actor, id string, req UpdateCommissionRateRequest) (*ClientResponse, error) {
	if !actor.Role.Elevated() {
		return nil, apperr.New(apperr.KindUnauthorized, "role %s may not change commission rates", actor.Role)
	}
	clientID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid client id")
	}
	rate, err := parseCommissionRate(req.CommissionRate)
	if err != nil {
		return nil, err
	}

	var client *model.Client
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		// Lock so a concurrent disbursement snapshots either the old rate or
		// the new one, never a torn read.
		c, err := s.clients.GetByIDForUpdate(txCtx, clientID)
		if err != nil {
			return err
		}
		c.CommissionRate = rate
		client = c
		return s.clients.Update(txCtx, c)
	})
	if err != nil {
		return nil, err
	}

	resp := toClientResponse(*client)
	return &resp, nil
}

func (s *clientService) CreateNbfc(ctx context.Context, actor model.Actor, req CreateNbfcRequest) (*NbfcResponse, error) {
	if !actor.Role.Elevated() {
		return nil, apperr.New(apperr.KindUnauthorized, "role %s may not manage lending partners", actor.Role)
	}

	nbfc := &model.NbfcPartner{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		IsActive:      true,
	}
	if err := s.nbfcs.Create(ctx, nbfc); err != nil {
		return nil, err
	}
	resp := toNbfcResponse(*nbfc)
	return &resp, nil
}

func (s *clientService) ListNbfcs(ctx context.Context, page, limit int) ([]NbfcResponse, int64, error) {
	nbfcs, total, err := s.nbfcs.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]NbfcResponse, 0, len(nbfcs))
	for _, n := range nbfcs {
		out = append(out, toNbfcResponse(n))
	}
	return out, total, nil
}

// parseCommissionRate accepts a fraction in (0, 1], e.g. "0.0150" for 1.5%.
func parseCommissionRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, apperr.New(apperr.KindValidation, "commission rate must be a fraction in (0, 1]")
	}
	return rate, nil
}

func toClientResponse(c model.Client) ClientResponse {
	resp := ClientResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		CommissionRate: c.CommissionRate.StringFixed(4),
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
	if c.KamID != nil {
		id := c.KamID.String()
		resp.KamID = &id
	}
	return resp
}

func toNbfcResponse(n model.NbfcPartner) NbfcResponse {
	return NbfcResponse{
		ID:            n.ID.String(),
		Name:          n.Name,
		ContactPerson: n.ContactPerson,
		Phone:         n.Phone,
		Email:         n.Email,
		IsActive:      n.IsActive,
	}
}
