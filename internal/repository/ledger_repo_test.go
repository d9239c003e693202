package repository

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

func newLedgerEntry(clientID uuid.UUID, seq int64, payout string) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:           uuid.New(),
		Seq:          seq,
		ClientID:     clientID,
		EntryDate:    time.Now(),
		PayoutAmount: decimal.RequireFromString(payout),
		Description:  "test entry",
	}
}

func TestLedgerAppendAndListByClient(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	clientID := uuid.New()
	other := uuid.New()

	require.NoError(t, repo.Append(ctx, newLedgerEntry(clientID, 1, "15000")))
	require.NoError(t, repo.Append(ctx, newLedgerEntry(other, 2, "99999")))
	require.NoError(t, repo.Append(ctx, newLedgerEntry(clientID, 3, "-6000")))
	require.NoError(t, repo.Append(ctx, newLedgerEntry(clientID, 4, "3000")))

	entries, err := repo.ListByClient(ctx, clientID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Insertion order, not amount order.
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(3), entries[1].Seq)
	assert.Equal(t, int64(4), entries[2].Seq)

	got, err := repo.GetByID(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.True(t, got.PayoutAmount.Equal(decimal.NewFromInt(15000)))

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLedgerSumPayoutAmount(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	clientID := uuid.New()

	sum, err := repo.SumPayoutAmount(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())

	require.NoError(t, repo.Append(ctx, newLedgerEntry(clientID, 1, "15000")))
	require.NoError(t, repo.Append(ctx, newLedgerEntry(clientID, 2, "3000")))
	require.NoError(t, repo.Append(ctx, newLedgerEntry(clientID, 3, "-6000")))

	sum, err = repo.SumPayoutAmount(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(12000)), "got %s", sum)
}

func TestLedgerCountBySourceApplication(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()
	appID := uuid.New()

	entry := newLedgerEntry(uuid.New(), 1, "500")
	entry.SourceApplicationID = &appID
	require.NoError(t, repo.Append(ctx, entry))
	// Payout offsets carry no source application.
	require.NoError(t, repo.Append(ctx, newLedgerEntry(entry.ClientID, 2, "-500")))

	count, err := repo.CountBySourceApplication(ctx, appID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = repo.CountBySourceApplication(ctx, uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestLedgerProjectionUpdates(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	entry := newLedgerEntry(uuid.New(), 1, "500")
	require.NoError(t, repo.Append(ctx, entry))

	require.NoError(t, repo.SetDisputeStatus(ctx, entry.ID, model.DisputeUnderQuery))
	require.NoError(t, repo.SetPayoutRequestFlag(ctx, entry.ID, true))

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeUnderQuery, got.DisputeStatus)
	assert.True(t, got.PayoutRequestFlag)

	assert.True(t, apperr.IsKind(repo.SetDisputeStatus(ctx, uuid.New(), model.DisputeResolved), apperr.KindNotFound))
	assert.True(t, apperr.IsKind(repo.SetPayoutRequestFlag(ctx, uuid.New(), true), apperr.KindNotFound))
}

func newPayoutRequest(clientID uuid.UUID, status, amount string) *model.PayoutRequest {
	return &model.PayoutRequest{
		ID:            uuid.New(),
		ClientID:      clientID,
		Amount:        decimal.RequireFromString(amount),
		Status:        status,
		RequestedByID: uuid.New(),
		RequestedAt:   time.Now(),
	}
}

func TestPayoutHasOutstanding(t *testing.T) {
	db := openTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()
	clientID := uuid.New()

	outstanding, err := repo.HasOutstanding(ctx, clientID)
	require.NoError(t, err)
	assert.False(t, outstanding)

	// Decided requests do not block a new one.
	require.NoError(t, repo.Create(ctx, newPayoutRequest(clientID, model.PayoutRejected, "1000")))
	require.NoError(t, repo.Create(ctx, newPayoutRequest(clientID, model.PayoutPaid, "2000")))
	outstanding, err = repo.HasOutstanding(ctx, clientID)
	require.NoError(t, err)
	assert.False(t, outstanding)

	require.NoError(t, repo.Create(ctx, newPayoutRequest(clientID, model.PayoutRequested, "3000")))
	outstanding, err = repo.HasOutstanding(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, outstanding)
}

func TestPayoutSumApprovedUnpaid(t *testing.T) {
	db := openTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()
	clientID := uuid.New()

	approved := newPayoutRequest(clientID, model.PayoutApproved, "4000")
	require.NoError(t, repo.Create(ctx, approved))
	require.NoError(t, repo.Create(ctx, newPayoutRequest(clientID, model.PayoutApproved, "1500")))
	require.NoError(t, repo.Create(ctx, newPayoutRequest(clientID, model.PayoutPaid, "9000")))
	require.NoError(t, repo.Create(ctx, newPayoutRequest(uuid.New(), model.PayoutApproved, "7777")))

	// The request under decision excludes itself from the reservation.
	sum, err := repo.SumApprovedUnpaid(ctx, clientID, approved.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(1500)), "got %s", sum)

	sum, err = repo.SumApprovedUnpaid(ctx, clientID, uuid.New())
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(5500)), "got %s", sum)
}

func TestPayoutListByStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()
	clientID := uuid.New()

	require.NoError(t, repo.Create(ctx, newPayoutRequest(clientID, model.PayoutRequested, "100")))
	require.NoError(t, repo.Create(ctx, newPayoutRequest(clientID, model.PayoutPaid, "200")))
	require.NoError(t, repo.Create(ctx, newPayoutRequest(uuid.New(), model.PayoutRequested, "300")))

	reqs, total, err := repo.ListByStatus(ctx, model.PayoutRequested, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, reqs, 2)

	all, total, err := repo.ListByStatus(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	mine, total, err := repo.ListByClient(ctx, clientID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, mine, 2)
}
