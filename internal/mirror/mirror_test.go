package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/garderoba/internal/localstate"
	"github.com/erazemk/garderoba/internal/model"
)

func TestKeyIsLowercased(t *testing.T) {
	assert.Equal(t, "pending_scan_ana@example.com", Key(" Ana@Example.COM "))
}

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	local := localstate.NewMemory()
	s := New(local)

	g := model.Garment{ID: 3, Name: "Silk Scarf", Brand: "AXSER", SecurityCode: "482913"}
	require.NoError(t, s.Save(ctx, "Ana@example.com", State{Garment: g, RequestSent: true}))

	raw, ok, _ := local.Get(ctx, "pending_scan_ana@example.com")
	require.True(t, ok)
	assert.NotContains(t, raw, "482913")
	assert.Contains(t, raw, `"requestSent":true`)
	assert.Contains(t, raw, `"showCodeInput":true`)

	st, err := s.Load(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(3), st.Garment.ID)
	assert.True(t, st.ShowCodeInput)

	require.NoError(t, s.Clear(ctx, "ana@example.com"))
	st, err = s.Load(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestLoadDiscardsCorruptMirror(t *testing.T) {
	ctx := context.Background()
	local := localstate.NewMemory()
	require.NoError(t, local.Set(ctx, Key("ana@example.com"), "{not json"))

	st, err := New(local).Load(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Nil(t, st)

	_, ok, _ := local.Get(ctx, Key("ana@example.com"))
	assert.False(t, ok, "corrupt mirror should be deleted")
}

func TestLoadReadsBrowserShapedMirror(t *testing.T) {
	ctx := context.Background()
	local := localstate.NewMemory()
	require.NoError(t, local.Set(ctx, Key("ana@example.com"),
		`{"garment":{"id":9,"name":"Boots","brand":"AXSER"},"requestSent":true}`))

	st, err := New(local).Load(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.RequestSent)
	assert.True(t, st.ShowCodeInput, "requestSent implies showCodeInput")
}
