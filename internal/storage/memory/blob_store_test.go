package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "runs/portal/run-1.json", "application/json", bytes.NewBufferString(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "memory://runs/portal/run-1.json", uri)

	got, ok := store.Object("runs/portal/run-1.json")
	require.True(t, ok)
	assert.Equal(t, `[]`, string(got))

	got[0] = '{'
	again, _ := store.Object("runs/portal/run-1.json")
	assert.Equal(t, `[]`, string(again))
	assert.Equal(t, []string{"runs/portal/run-1.json"}, store.Paths())

	_, ok = store.Object("missing")
	assert.False(t, ok)
}
