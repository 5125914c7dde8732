package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/store/storetest"
)

func TestMemoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) shift.TxStore { return New() })
}

func TestReturnedShiftsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := storetest.NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	require.NoError(t, m.CreateShift(ctx, s))

	// WHEN: A caller mutates what it read
	got, err := m.GetShift(ctx, s.ID)
	require.NoError(t, err)
	got.Sheet.Deposits[0] = generic.Money("1")
	got.DocumentURLs[0] = "tampered"

	// THEN: The stored shift is untouched
	again, err := m.GetShift(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "800", again.Sheet.Deposits[0].String())
	assert.Equal(t, "https://docs.example/1.pdf", again.DocumentURLs[0])
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	m := New()
	s := storetest.NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	require.NoError(t, m.CreateShift(ctx, s))

	require.NoError(t, m.Reset(ctx))

	all, err := m.ListShifts(ctx, shift.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	// AND: The natural key is free again
	assert.NoError(t, m.CreateShift(ctx, s))
}
