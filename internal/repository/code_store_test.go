package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubridge-api/internal/models"
)

func TestMemoryCodeStorePutReplaces(t *testing.T) {
	store := NewMemoryCodeStore(0)
	ctx := context.Background()

	first := &models.AttendanceCode{Code: "AAAAAA", IssuerID: "t1", Section: "A", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute), Duration: time.Minute}
	require.NoError(t, store.Put(ctx, first))

	second := &models.AttendanceCode{Code: "BBBBBB", IssuerID: "t1", Section: "A", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute), Duration: time.Minute}
	require.NoError(t, store.Put(ctx, second))

	got, err := store.Get(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BBBBBB", got.Code)
}

func TestMemoryCodeStoreMissingIssuer(t *testing.T) {
	store := NewMemoryCodeStore(0)
	got, err := store.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCodeStoreIsolatesIssuers(t *testing.T) {
	store := NewMemoryCodeStore(0)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &models.AttendanceCode{Code: "AAAAAA", IssuerID: "t1", Section: "A", Duration: time.Minute}))
	require.NoError(t, store.Put(ctx, &models.AttendanceCode{Code: "BBBBBB", IssuerID: "t2", Section: "B", Duration: time.Minute}))

	got, err := store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", got.Code)
}

func TestMemoryCodeStoreEvictsLongExpiredCodes(t *testing.T) {
	store := NewMemoryCodeStore(time.Minute)
	ctx := context.Background()
	issued := time.Now()

	require.NoError(t, store.Put(ctx, &models.AttendanceCode{
		Code: "AAAAAA", IssuerID: "t1", Section: "A",
		IssuedAt: issued, ExpiresAt: issued.Add(time.Minute), Duration: time.Minute,
	}))

	// Just expired, still inside the margin: the code stays visible so a
	// late submission is answered as expired rather than absent.
	store.now = func() time.Time { return issued.Add(90 * time.Second) }
	got, err := store.Get(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAAAAA", got.Code)

	// Past expiry plus margin: evicted on read.
	store.now = func() time.Time { return issued.Add(3 * time.Minute) }
	got, err = store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The eviction is permanent, not a transient clock artifact.
	store.now = func() time.Time { return issued }
	got, err = store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, got)
}
