/**
 * @description
 * Event signatures for the three (four, including the neg-risk adapter)
 * on-chain events the log decoder understands, and the ABI argument sets
 * used to unpack their data payloads.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/accounts/abi
 * - github.com/ethereum/go-ethereum/crypto
 */

package decode

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	orderFilledSig        = "OrderFilled(bytes32,bytes32,address,address,uint256,uint256,uint256,uint256,uint256)"
	positionSplitSig      = "PositionSplit(address,address,bytes32,bytes32,uint256[],uint256)"
	positionsMergeSig     = "PositionsMerge(address,address,bytes32,bytes32,uint256[],uint256)"
	positionsConvertedSig = "PositionsConverted(address,bytes32,uint256,uint256[],uint256)"
)

// Topic0 hashes identifying each event kind in raw logs.
var (
	OrderFilledTopic0        = crypto.Keccak256Hash([]byte(orderFilledSig))
	PositionSplitTopic0      = crypto.Keccak256Hash([]byte(positionSplitSig))
	PositionsMergeTopic0     = crypto.Keccak256Hash([]byte(positionsMergeSig))
	PositionsConvertedTopic0 = crypto.Keccak256Hash([]byte(positionsConvertedSig))
)

// Topics0 lists every event signature the Stream Controller subscribes to.
func Topics0() []common.Hash {
	return []common.Hash{OrderFilledTopic0, PositionSplitTopic0, PositionsMergeTopic0, PositionsConvertedTopic0}
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var orderFilledArgs = abi.Arguments{
	{Name: "makerOrderHash", Type: mustType("bytes32")},
	{Name: "takerOrderHash", Type: mustType("bytes32")},
	{Name: "maker", Type: mustType("address")},
	{Name: "taker", Type: mustType("address")},
	{Name: "makerAssetId", Type: mustType("uint256")},
	{Name: "takerAssetId", Type: mustType("uint256")},
	{Name: "makerAmountFilled", Type: mustType("uint256")},
	{Name: "takerAmountFilled", Type: mustType("uint256")},
	{Name: "fee", Type: mustType("uint256")},
}

var splitMergeArgs = abi.Arguments{
	{Name: "stakeholder", Type: mustType("address")},
	{Name: "collateral", Type: mustType("address")},
	{Name: "parentCollectionId", Type: mustType("bytes32")},
	{Name: "conditionId", Type: mustType("bytes32")},
	{Name: "partition", Type: mustType("uint256[]")},
	{Name: "amount", Type: mustType("uint256")},
}

var convertedArgs = abi.Arguments{
	{Name: "stakeholder", Type: mustType("address")},
	{Name: "conditionId", Type: mustType("bytes32")},
	{Name: "amount", Type: mustType("uint256")},
	{Name: "indexSets", Type: mustType("uint256[]")},
	{Name: "outAmount", Type: mustType("uint256")},
}
