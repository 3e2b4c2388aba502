package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CatalogLens/internal/records"
)

func TestJoin_AttachesUserByKey(t *testing.T) {
	ix := BuildJoinIndex([]records.User{{ID: 1, FirstName: "Ann", LastName: "Lee"}})
	products := []records.Product{{ID: 1, Title: "Red Shirt"}, {ID: 2, Title: "Mouse"}}

	got := Join(products, ix, ByProductID)

	require.Len(t, got, 2)
	require.NotNil(t, got[0].User)
	assert.Equal(t, "Ann", got[0].User.FirstName)
	assert.Nil(t, got[1].User, "lookup miss is absence")
}

func TestJoin_NoJoinKeyNeverAttaches(t *testing.T) {
	ix := BuildJoinIndex([]records.User{{ID: 1, FirstName: "Ann"}})
	got := Join([]records.Product{{ID: 1}}, ix, NoJoin)
	assert.Nil(t, got[0].User)
}

func TestParseJoinKey(t *testing.T) {
	k, err := ParseJoinKey("")
	require.NoError(t, err)
	id, ok := k(records.Product{ID: 7})
	assert.True(t, ok)
	assert.Equal(t, 7, id)

	k, err = ParseJoinKey(" NONE ")
	require.NoError(t, err)
	_, ok = k(records.Product{ID: 7})
	assert.False(t, ok)

	_, err = ParseJoinKey("owner")
	assert.Error(t, err)
}

func TestJoinIndex_LastDuplicateWins(t *testing.T) {
	ix := BuildJoinIndex([]records.User{{ID: 1, FirstName: "A"}, {ID: 1, FirstName: "B"}})
	u, ok := ix.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "B", u.FirstName)
	assert.Equal(t, 1, ix.Len())

	_, ok = ix.Lookup(2)
	assert.False(t, ok)
}
