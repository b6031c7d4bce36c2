package rail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

func TestStubRailSubmitIdempotent(t *testing.T) {
	r := NewStubRail("test")

	ref1, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.NoError(t, err)
	ref2, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.NoError(t, err)

	require.Equal(t, ref1, ref2)
	require.Equal(t, 1, r.Movements())

	ref3, err := r.Submit(context.Background(), legRequest(), "key-2")
	require.NoError(t, err)
	require.NotEqual(t, ref1, ref3)
	require.Equal(t, 2, r.Movements())
}

func TestStubRailScriptedSubmitErrors(t *testing.T) {
	r := NewStubRail("test")
	r.ScriptSubmitErrors("key-1", errors.New("boom"), errors.New("boom again"))

	_, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.EqualError(t, err, "boom")
	_, err = r.Submit(context.Background(), legRequest(), "key-1")
	require.EqualError(t, err, "boom again")

	// Errors consumed; the same key now succeeds with a single movement.
	ref, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.NoError(t, err)
	require.NotEmpty(t, ref)
	require.Equal(t, 1, r.Movements())
}

func TestStubRailPollAdvancesToOutcome(t *testing.T) {
	r := NewStubRail("test")
	r.ScriptOutcome("key-1", domain.LegStatusRejected, 2)

	ref, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.NoError(t, err)

	status, err := r.Poll(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, domain.LegStatusPending, status)

	status, err = r.Poll(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, domain.LegStatusRejected, status)

	// Terminal status is sticky.
	status, err = r.Poll(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, domain.LegStatusRejected, status)
}

func TestStubRailUnscriptedConfirmsOnFirstPoll(t *testing.T) {
	r := NewStubRail("test")

	ref, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.NoError(t, err)

	status, err := r.Poll(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, domain.LegStatusConfirmed, status)
}

func TestStubRailNeverSettles(t *testing.T) {
	r := NewStubRail("test")
	r.ScriptNeverSettles("key-1")

	ref, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		status, err := r.Poll(context.Background(), ref)
		require.NoError(t, err)
		require.Equal(t, domain.LegStatusPending, status)
	}
}

func TestStubRailPollUnknownRef(t *testing.T) {
	r := NewStubRail("test")

	_, err := r.Poll(context.Background(), "no-such-ref")
	require.Error(t, err)
	require.True(t, domain.IsTerminalRailError(err))
}

func TestStubRailReverseIdempotent(t *testing.T) {
	r := NewStubRail("test")

	ref, err := r.Submit(context.Background(), legRequest(), "key-1")
	require.NoError(t, err)

	rev1, err := r.Reverse(context.Background(), ref, "key-1:rev")
	require.NoError(t, err)
	rev2, err := r.Reverse(context.Background(), ref, "key-1:rev")
	require.NoError(t, err)

	require.Equal(t, rev1, rev2)
	require.Equal(t, 1, r.Reversals())
}
