/**
 * @description
 * Circular Trade: builds a directed multigraph over the scan window (node
 * = address, edge = taker -> maker weighted by trade volume) and reports
 * simple cycles of length 2-4. Per the design notes, nodes live in an
 * arena addressed by integer index rather than owning pointers, and cycle
 * detection walks those indices.
 */

package detect

import (
	"sort"
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

const (
	circularMinLen  = 2
	circularMaxLen  = 4
	circularMaxCount = 10_000
)

type edgeAgg struct {
	volume   float64
	txs      []string
	latestTs time.Time
	trigger  models.Trade
}

// ScanCircularTrade implements detector 4.4.5.
func ScanCircularTrade(window, full []models.Trade) []models.Evidence {
	nodes, index := buildArena(window)
	edges := buildEdgeAggregates(window, index)
	adjacency := buildAdjacency(edges, len(nodes))

	var items []evidenceTrigger
	count := 0

	for s := 0; s < len(nodes) && count < circularMaxCount; s++ {
		path := []int{s}
		items = append(items, walkCycles(s, s, path, adjacency, edges, nodes, &count)...)
	}

	return sortEvidenceByTrigger(items)
}

func buildArena(trades []models.Trade) ([]string, map[string]int) {
	index := make(map[string]int)
	var nodes []string
	for _, t := range trades {
		for _, addr := range []string{t.Maker, t.Taker} {
			if _, ok := index[addr]; !ok {
				index[addr] = len(nodes)
				nodes = append(nodes, addr)
			}
		}
	}
	return nodes, index
}

func buildEdgeAggregates(trades []models.Trade, index map[string]int) map[[2]int]*edgeAgg {
	edges := make(map[[2]int]*edgeAgg)
	for _, t := range trades {
		if t.Maker == t.Taker {
			continue
		}
		key := [2]int{index[t.Taker], index[t.Maker]}
		agg, ok := edges[key]
		if !ok {
			agg = &edgeAgg{trigger: t}
			edges[key] = agg
		}
		agg.volume += t.Volume
		agg.txs = append(agg.txs, t.TxHash)
		if t.Timestamp.After(agg.latestTs) {
			agg.latestTs = t.Timestamp
		}
	}
	return edges
}

// buildAdjacency also sorts each node's neighbor list so walkCycles
// traverses in a fixed order regardless of the map iteration order edges
// came from.
func buildAdjacency(edges map[[2]int]*edgeAgg, n int) [][]int {
	adj := make([][]int, n)
	for key := range edges {
		adj[key[0]] = append(adj[key[0]], key[1])
	}
	for i := range adj {
		sort.Ints(adj[i])
	}
	return adj
}

func walkCycles(start, cur int, path []int, adjacency [][]int, edges map[[2]int]*edgeAgg, nodes []string, count *int) []evidenceTrigger {
	var out []evidenceTrigger
	if *count >= circularMaxCount {
		return out
	}

	for _, next := range adjacency[cur] {
		if *count >= circularMaxCount {
			break
		}

		if next == start {
			if len(path) >= circularMinLen {
				if item, ok := buildCycleEvidence(path, edges, nodes); ok {
					out = append(out, item)
					*count++
				}
			}
			continue
		}

		if next <= start || contains(path, next) {
			continue
		}
		if len(path) >= circularMaxLen {
			continue
		}

		out = append(out, walkCycles(start, next, append(path, next), adjacency, edges, nodes, count)...)
	}

	return out
}

func contains(path []int, v int) bool {
	for _, p := range path {
		if p == v {
			return true
		}
	}
	return false
}

func buildCycleEvidence(path []int, edges map[[2]int]*edgeAgg, nodes []string) (evidenceTrigger, bool) {
	minVol, maxVol := -1.0, -1.0
	var addrs, txs []string
	var totalVolume float64
	var latest time.Time
	var trigger models.Trade
	haveTrigger := false

	for i := range path {
		u := path[i]
		v := path[(i+1)%len(path)]
		agg, ok := edges[[2]int{u, v}]
		if !ok {
			return evidenceTrigger{}, false
		}
		if minVol < 0 || agg.volume < minVol {
			minVol = agg.volume
		}
		if agg.volume > maxVol {
			maxVol = agg.volume
		}
		totalVolume += agg.volume
		txs = append(txs, agg.txs...)
		if agg.latestTs.After(latest) {
			latest = agg.latestTs
		}
		if !haveTrigger || precedes(agg.trigger, trigger) {
			trigger = agg.trigger
			haveTrigger = true
		}
		addrs = append(addrs, nodes[u])
	}

	if maxVol <= 0 {
		return evidenceTrigger{}, false
	}

	confidence := 0.6 + 0.1*(minVol/maxVol)
	if confidence > 0.9 {
		confidence = 0.9
	}
	if confidence < 0.6 {
		confidence = 0.6
	}

	return evidenceTrigger{
		evidence: newEvidence(
			models.EvidenceCircularTrade,
			confidence,
			latest,
			addrs,
			txs,
			"",
			totalVolume,
			models.JSONMap{"cycle_length": len(path), "min_edge_volume": minVol, "max_edge_volume": maxVol},
		),
		trigger: trigger,
	}, true
}
