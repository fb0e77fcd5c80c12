package market

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestDeriveOutcomeTokenIDs_YesNoDistinctAndDeterministic(t *testing.T) {
	collateral := common.HexToAddress("0x2791bca1f2de4661ed88a30c99a7a9449aa84174")
	conditionID := [32]byte{1, 2, 3}

	yes1, no1 := DeriveOutcomeTokenIDs(collateral, conditionID)
	yes2, no2 := DeriveOutcomeTokenIDs(collateral, conditionID)

	assert.Equal(t, yes1.String(), yes2.String(), "token-id derivation must be deterministic")
	assert.Equal(t, no1.String(), no2.String())
	assert.NotEqual(t, yes1.String(), no1.String(), "YES and NO token-ids must differ")
}

func TestDeriveCollectionID_DiffersByIndexSet(t *testing.T) {
	conditionID := [32]byte{9, 9, 9}
	yes := DeriveCollectionID(conditionID, YesIndexSet)
	no := DeriveCollectionID(conditionID, NoIndexSet)
	assert.NotEqual(t, yes, no)
}

func TestDeriveTokenID_DiffersByCollateral(t *testing.T) {
	collectionID := [32]byte{5, 5, 5}
	a := DeriveTokenID(common.HexToAddress("0x1"), collectionID)
	b := DeriveTokenID(common.HexToAddress("0x2"), collectionID)
	assert.NotEqual(t, a.String(), b.String())
}
