package note_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

func TestDiscoverSpendCondition_SimpleNote(t *testing.T) {
	t.Parallel()
	p := pkh(1)
	n := note.Note{Name: note.Name{First: note.SimpleFirstName(p)}}

	sc, err := note.DiscoverSpendCondition(n, p)
	require.NoError(t, err)
	assert.Equal(t, note.SimpleSpendCondition(p).Hash(), sc.Hash())
}

func TestDiscoverSpendCondition_CoinbaseViaHelper(t *testing.T) {
	t.Parallel()
	p := pkh(2)
	n := note.Note{Name: note.Name{First: note.CoinbaseFirstName(p)}}

	sc, err := note.DiscoverSpendCondition(n, p)
	require.NoError(t, err)
	assert.Equal(t, note.CoinbaseSpendCondition(p).Hash(), sc.Hash())
}

func TestDiscoverSpendCondition_RelativeRangeVariant(t *testing.T) {
	t.Parallel()
	p := pkh(3)
	min := uint32(100)
	sc := note.NewSpendCondition(note.Single(p), note.TIMLock(note.Range{Min: &min}, note.Range{}))
	n := note.Note{Name: note.Name{First: note.FirstName(sc.Hash())}}

	discovered, err := note.DiscoverSpendCondition(n, p)
	require.NoError(t, err)
	assert.Equal(t, sc.Hash(), discovered.Hash())
}

func TestDiscoverSpendCondition_AbsoluteHeightVariant(t *testing.T) {
	t.Parallel()
	p := pkh(4)
	originPage := uint32(2000)
	absMin := originPage + 100
	sc := note.NewSpendCondition(note.Single(p), note.TIMLock(note.Range{}, note.Range{Min: &absMin}))
	n := note.Note{OriginPage: originPage, Name: note.Name{First: note.FirstName(sc.Hash())}}

	discovered, err := note.DiscoverSpendCondition(n, p)
	require.NoError(t, err)
	assert.Equal(t, sc.Hash(), discovered.Hash())
}

func TestDiscoverSpendCondition_NoMatchFails(t *testing.T) {
	t.Parallel()
	p := pkh(5)
	n := note.Note{Name: note.Name{First: pkh(99)}}

	_, err := note.DiscoverSpendCondition(n, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, werrors.ErrSpendConditionMismatch)
}
