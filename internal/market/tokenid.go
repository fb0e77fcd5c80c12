/**
 * @description
 * Deterministic collection-id / token-id derivation for the conditional
 * token framework: collectionId = H(0, conditionId, indexSet),
 * tokenId = H(collateral, collectionId).
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/crypto (Keccak256)
 * - github.com/ethereum/go-ethereum/common
 */

package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var zeroParentCollection = [32]byte{}

// DeriveCollectionID computes H(parentCollectionId, conditionId, indexSet)
// for the root-level split (parentCollectionId is the zero collection).
func DeriveCollectionID(conditionID [32]byte, indexSet uint64) [32]byte {
	indexSetBytes := make([]byte, 32)
	big.NewInt(0).SetUint64(indexSet).FillBytes(indexSetBytes)

	buf := make([]byte, 0, 96)
	buf = append(buf, zeroParentCollection[:]...)
	buf = append(buf, conditionID[:]...)
	buf = append(buf, indexSetBytes...)

	return crypto.Keccak256Hash(buf)
}

// DeriveTokenID computes H(collateral, collectionId) and returns it as the
// venue's uint256 token-id.
func DeriveTokenID(collateral common.Address, collectionID [32]byte) *big.Int {
	buf := make([]byte, 0, 52)
	buf = append(buf, common.LeftPadBytes(collateral.Bytes(), 32)...)
	buf = append(buf, collectionID[:]...)

	hash := crypto.Keccak256Hash(buf)
	return new(big.Int).SetBytes(hash[:])
}

// YesIndexSet / NoIndexSet are the two partitions of a binary condition.
const (
	YesIndexSet uint64 = 1
	NoIndexSet  uint64 = 2
)

// DeriveOutcomeTokenIDs returns the (yes, no) token-ids for a condition given
// its collateral asset.
func DeriveOutcomeTokenIDs(collateral common.Address, conditionID [32]byte) (yes, no *big.Int) {
	yesCollection := DeriveCollectionID(conditionID, YesIndexSet)
	noCollection := DeriveCollectionID(conditionID, NoIndexSet)
	return DeriveTokenID(collateral, yesCollection), DeriveTokenID(collateral, noCollection)
}
