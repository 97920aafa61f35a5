package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-git/go-pack-indexer/objid"
	"github.com/go-git/go-pack-indexer/packfile"
)

func TestTableAddRejectsDuplicatePosition(t *testing.T) {
	tb := newTable(4)

	id, _ := objid.FromHex("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, tb.add(&entry{kind: objectEntry, position: 10, typ: packfile.BlobObject, id: id}))

	err := tb.add(&entry{kind: objectEntry, position: 10, typ: packfile.BlobObject, id: id})
	require.Error(t, err)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindParse, ie.Kind)
}

func TestTableIndexesNonDeltaByID(t *testing.T) {
	tb := newTable(1)
	id, _ := objid.FromHex("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	e := &entry{kind: objectEntry, position: 0, typ: packfile.BlobObject, id: id}
	require.NoError(t, tb.add(e))

	assert.Same(t, e, tb.byID[id])
	assert.Same(t, e, tb.byPosition[0])
}

func TestTableGroupsOFSDeltasByBaseOffset(t *testing.T) {
	tb := newTable(3)
	base := &entry{kind: objectEntry, position: 0, typ: packfile.BlobObject}
	require.NoError(t, tb.add(base))

	d1 := &entry{kind: deltaEntry, position: 50, typ: packfile.OFSDeltaObject, baseOffset: 0}
	d2 := &entry{kind: deltaEntry, position: 90, typ: packfile.OFSDeltaObject, baseOffset: 0}
	require.NoError(t, tb.add(d1))
	require.NoError(t, tb.add(d2))

	children := tb.childrenAt(0)
	assert.ElementsMatch(t, []*entry{d1, d2}, children)
}

func TestTableCollectsRefDeltasSeparately(t *testing.T) {
	tb := newTable(1)
	refID, _ := objid.FromHex("cccccccccccccccccccccccccccccccccccccccc")
	d := &entry{kind: deltaEntry, position: 5, typ: packfile.REFDeltaObject, refDelta: refID}
	require.NoError(t, tb.add(d))

	require.Len(t, tb.refDeltas, 1)
	assert.Same(t, d, tb.refDeltas[0])
	assert.Empty(t, tb.childrenAt(5))
}

func TestEntryIsDelta(t *testing.T) {
	assert.False(t, (&entry{kind: objectEntry}).isDelta())
	assert.True(t, (&entry{kind: deltaEntry}).isDelta())
}
