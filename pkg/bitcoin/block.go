package bitcoin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Block is the subset of a blockchain.info rawblock payload the engine
// cares about: the block hash, the claimed merkle root, and the ordered
// transaction hashes.
type Block struct {
	Hash     Hash          `json:"hash"`
	MrklRoot Hash          `json:"mrkl_root"`
	Nonce    uint32        `json:"nonce"`
	Txs      []Transaction `json:"tx"`
}

// Transaction carries a transaction hash; the leaf of the block's tree.
type Transaction struct {
	Hash Hash `json:"hash"`
}

// TxHashes returns the transaction hashes in block order.
func (b *Block) TxHashes() []Hash {
	hashes := make([]Hash, len(b.Txs))
	for i, tx := range b.Txs {
		hashes[i] = tx.Hash
	}
	return hashes
}

// Tree builds the block's merkle tree from its transaction hashes. The
// tree's root should equal MrklRoot for a well-formed block.
func (b *Block) Tree() *Tree {
	return NewTreeFromLeaves(b.TxHashes())
}

// rawBlockURL is the endpoint the test harness fetches block JSON from.
const rawBlockURL = "https://blockchain.info/rawblock/%s"

// FetchBlock loads the block with the given hash, preferring the cache file
// block_<hash>.json under cacheDir and falling back to a blockchain.info
// fetch whose response is written back to the cache. This is a test and
// tooling harness, not part of the engine.
func FetchBlock(blockHash Hash, cacheDir string) (*Block, error) {
	cachePath := filepath.Join(cacheDir, fmt.Sprintf("block_%s.json", blockHash))

	if data, err := os.ReadFile(cachePath); err == nil {
		var block Block
		if err := json.Unmarshal(data, &block); err != nil {
			return nil, fmt.Errorf("failed to decode cached block %s: %w", cachePath, err)
		}
		return &block, nil
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(fmt.Sprintf(rawBlockURL, blockHash))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %s: %w", blockHash, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s fetching block %s", resp.Status, blockHash)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read block %s response: %w", blockHash, err)
	}

	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("failed to decode block %s: %w", blockHash, err)
	}

	// Cache write failures are not fatal; the block was fetched fine.
	_ = os.WriteFile(cachePath, data, 0o644)

	return &block, nil
}
