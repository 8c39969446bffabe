package clientstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.SetMany(ctx, map[string]string{KeyPendingBooking: "{}"}, time.Minute))
	assert.Equal(t, 1, m.Len())

	now = now.Add(59 * time.Second)
	_, err := m.Get(ctx, KeyPendingBooking)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Get(ctx, KeyPendingBooking)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestFile_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	f := NewFile(filepath.Join(t.TempDir(), "s.json"))
	f.now = func() time.Time { return now }

	require.NoError(t, f.SetMany(ctx, map[string]string{KeyPaymentSuccess: "true"}, time.Minute))
	require.NoError(t, f.SetMany(ctx, map[string]string{KeyAuthToken: "tok"}, 0))

	now = now.Add(2 * time.Minute)
	_, err := f.Get(ctx, KeyPaymentSuccess)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := f.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}
