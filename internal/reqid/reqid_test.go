package reqid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	_, ok = FromContext(context.Background())
	require.False(t, ok, "unexpected id in empty context")
}

func TestWithID(t *testing.T) {
	want := uuid.NewString()
	ctx, id := WithID(context.Background(), want)
	require.Equal(t, want, id)
	got, _ := FromContext(ctx)
	require.Equal(t, want, got)

	_, id = WithID(context.Background(), "not-a-uuid")
	require.NotEqual(t, "not-a-uuid", id)
}
