package service

import (
	"context"
	"testing"
	"time"

	"lendflow/internal/apperr"
	"lendflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryFixture struct {
	svc    *queryService
	apps   *memAppRepo
	ledger *memLedgerRepo
	audit  *memAuditRepo
	appID  uuid.UUID
	client model.Actor
	kam    model.Actor
	credit model.Actor
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()

	apps := newMemAppRepo()
	queries := newMemQueryRepo()
	ledger := newMemLedgerRepo()
	audit := newMemAuditRepo()

	clientID := uuid.New()
	app := &model.LoanApplication{
		FileNumber:      "LF-20260801-00001",
		ClientID:        clientID,
		ApplicantName:   "Acme Traders",
		LoanProductID:   uuid.New(),
		RequestedAmount: decimal.NewFromInt(500000),
		Status:          model.StatusPendingKamReview,
	}
	require.NoError(t, apps.Create(context.Background(), app))

	svc := &queryService{
		queries: queries,
		apps:    apps,
		ledger:  ledger,
		audit:   audit,
		txm:     &fakeTxManager{},
		now:     time.Now,
	}
	return &queryFixture{
		svc:    svc,
		apps:   apps,
		ledger: ledger,
		audit:  audit,
		appID:  app.ID,
		client: model.Actor{UserID: uuid.New(), Role: model.RoleClient, ClientID: &clientID},
		kam:    model.Actor{UserID: uuid.New(), Role: model.RoleKam},
		credit: model.Actor{UserID: uuid.New(), Role: model.RoleCreditTeam},
	}
}

func (f *queryFixture) raise(t *testing.T, actor model.Actor) *QueryResponse {
	t.Helper()
	q, err := f.svc.Raise(context.Background(), actor, RaiseQueryRequest{
		TargetID:     f.appID.String(),
		TargetKind:   model.TargetApplication,
		RaisedToRole: string(model.RoleClient),
		Message:      "please share bank statements",
	})
	require.NoError(t, err)
	return q
}

func TestRaiseQuery(t *testing.T) {
	f := newQueryFixture(t)

	q := f.raise(t, f.kam)
	assert.Equal(t, string(model.RoleKam), q.RaisedByRole)
	assert.False(t, q.Resolved)
	assert.Equal(t, 1, f.audit.countAction(model.ActionRaiseQuery))
}

func TestRaiseQuery_DuplicateOpenByInitiator(t *testing.T) {
	f := newQueryFixture(t)

	f.raise(t, f.kam)
	_, err := f.svc.Raise(context.Background(), f.kam, RaiseQueryRequest{
		TargetID:     f.appID.String(),
		TargetKind:   model.TargetApplication,
		RaisedToRole: string(model.RoleClient),
		Message:      "second question",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicateOpenQuery))

	// A different initiator may still open a thread on the same target.
	_, err = f.svc.Raise(context.Background(), f.credit, RaiseQueryRequest{
		TargetID:     f.appID.String(),
		TargetKind:   model.TargetApplication,
		RaisedToRole: string(model.RoleKam),
		Message:      "credit question",
	})
	assert.NoError(t, err)
}

func TestRaiseQuery_ClientCannotTargetOthers(t *testing.T) {
	f := newQueryFixture(t)

	otherClient := uuid.New()
	stranger := model.Actor{UserID: uuid.New(), Role: model.RoleClient, ClientID: &otherClient}
	_, err := f.svc.Raise(context.Background(), stranger, RaiseQueryRequest{
		TargetID:     f.appID.String(),
		TargetKind:   model.TargetApplication,
		RaisedToRole: string(model.RoleKam),
		Message:      "why was this rejected",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestReply_OnResolvedThread(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	q := f.raise(t, f.kam)
	_, err := f.svc.Reply(ctx, f.client, q.ID, "statements attached")
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, f.kam, q.ID, "received")
	require.NoError(t, err)

	_, err = f.svc.Reply(ctx, f.client, q.ID, "one more thing")
	assert.True(t, apperr.IsKind(err, apperr.KindThreadResolved))
}

func TestResolve_AuthorOrElevatedOnly(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	q := f.raise(t, f.kam)

	// The addressee is not the author and holds no resolver role.
	_, err := f.svc.Resolve(ctx, f.client, q.ID, "")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	// credit_team may resolve threads it did not author.
	resolved, err := f.svc.Resolve(ctx, f.credit, q.ID, "answered offline")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedByID)
	assert.Equal(t, f.credit.UserID.String(), *resolved.ResolvedByID)
}

func TestResolve_AlreadyResolved(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	q := f.raise(t, f.kam)
	_, err := f.svc.Resolve(ctx, f.kam, q.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, f.kam, q.ID, "")
	assert.True(t, apperr.IsKind(err, apperr.KindAlreadyResolved))
}

func TestEdit_WindowAndAuthorship(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	q := f.raise(t, f.kam)

	// Someone else may not edit, even inside the window.
	_, err := f.svc.Edit(ctx, f.credit, q.ID, "rewritten")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	edited, err := f.svc.Edit(ctx, f.kam, q.ID, "please share the LAST SIX bank statements")
	require.NoError(t, err)
	assert.Contains(t, edited.Message, "LAST SIX")

	// Push the clock past the window.
	f.svc.now = func() time.Time { return time.Now().Add(editWindow + time.Minute) }
	_, err = f.svc.Edit(ctx, f.kam, q.ID, "too late")
	assert.True(t, apperr.IsKind(err, apperr.KindEditWindowExpired))
}

func TestLedgerDispute_ProjectionLifecycle(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	clientID := *f.client.ClientID
	entry := &model.LedgerEntry{
		ClientID:     clientID,
		EntryDate:    time.Now(),
		PayoutAmount: decimal.NewFromInt(1500),
	}
	require.NoError(t, f.ledger.Append(ctx, entry))

	q, err := f.svc.Raise(ctx, f.client, RaiseQueryRequest{
		TargetID:     entry.ID.String(),
		TargetKind:   model.TargetLedgerEntry,
		RaisedToRole: string(model.RoleCreditTeam),
		Message:      "commission looks short",
	})
	require.NoError(t, err)

	got, err := f.ledger.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeUnderQuery, got.DisputeStatus)

	_, err = f.svc.Resolve(ctx, f.credit, q.ID, "rate was snapshotted before the revision")
	require.NoError(t, err)

	got, err = f.ledger.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeResolved, got.DisputeStatus)
}

func TestListThreads_AwaitingResponseFrom(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	q := f.raise(t, f.kam)

	threads, err := f.svc.ListThreads(ctx, f.appID.String())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.NotNil(t, threads[0].AwaitingResponseFrom)
	assert.Equal(t, string(model.RoleClient), *threads[0].AwaitingResponseFrom)

	// Replies do not clear the flag; only resolution does.
	_, err = f.svc.Reply(ctx, f.client, q.ID, "attached")
	require.NoError(t, err)
	threads, err = f.svc.ListThreads(ctx, f.appID.String())
	require.NoError(t, err)
	require.NotNil(t, threads[0].AwaitingResponseFrom)

	_, err = f.svc.Resolve(ctx, f.kam, q.ID, "")
	require.NoError(t, err)
	threads, err = f.svc.ListThreads(ctx, f.appID.String())
	require.NoError(t, err)
	assert.Nil(t, threads[0].AwaitingResponseFrom)
}
