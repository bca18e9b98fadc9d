package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/merklekit/merkle-engine-go/pkg/bitcoin"
	"github.com/merklekit/merkle-engine-go/pkg/logger"
	"github.com/merklekit/merkle-engine-go/pkg/merkletree"
)

func main() {
	app := &cli.App{
		Name:  "merklectl",
		Usage: "Bitcoin-style merkle tree toolbox",
		Description: `Builds binary double-SHA256 merkle trees over transaction hashes and
generates and verifies inclusion proofs.

Leaf files are newline-separated 64-character little-endian hex hashes,
the form block explorers print. Empty lines and lines starting with '#'
are skipped.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{"MERKLE_VERBOSE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "root",
				Usage:     "Compute the merkle root of a leaf file",
				ArgsUsage: "<leaf-file>",
				Action:    rootAction,
			},
			{
				Name:      "proof",
				Usage:     "Print the JSON inclusion proof for one leaf",
				ArgsUsage: "<leaf-file>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "leaf",
						Usage:    "0-based leaf index to prove",
						EnvVars:  []string{"MERKLE_LEAF"},
						Required: true,
					},
				},
				Action: proofAction,
			},
			{
				Name:      "verify",
				Usage:     "Verify a JSON proof file against a leaf hash",
				ArgsUsage: "<proof-file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "leaf-hash",
						Usage:    "Claimed leaf hash (little-endian hex)",
						EnvVars:  []string{"MERKLE_LEAF_HASH"},
						Required: true,
					},
				},
				Action: verifyAction,
			},
			{
				Name:      "fetch-block",
				Usage:     "Fetch a block from blockchain.info and recompute its merkle root",
				ArgsUsage: "<block-hash>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "cache-dir",
						Usage:   "Directory for block_<hash>.json cache files",
						EnvVars: []string{"MERKLE_CACHE_DIR"},
						Value:   ".",
					},
				},
				Action: fetchBlockAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// readLeafFile parses a newline-separated list of little-endian hex hashes.
func readLeafFile(path string) ([]bitcoin.Hash, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open leaf file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var leaves []bitcoin.Hash
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		h, err := bitcoin.ParseHash(text)
		if err != nil {
			return nil, fmt.Errorf("leaf file line %d: %w", line, err)
		}
		leaves = append(leaves, h)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaf file: %w", err)
	}
	return leaves, nil
}

func treeFromArgs(c *cli.Context) (*bitcoin.Tree, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one leaf file argument")
	}
	leaves, err := readLeafFile(c.Args().First())
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, fmt.Errorf("leaf file holds no hashes")
	}
	return bitcoin.NewTreeFromLeaves(leaves), nil
}

func rootAction(c *cli.Context) error {
	tree, err := treeFromArgs(c)
	if err != nil {
		return err
	}
	fmt.Println(tree.Root())
	return nil
}

func proofAction(c *cli.Context) error {
	tree, err := treeFromArgs(c)
	if err != nil {
		return err
	}

	proof, err := tree.ProofOwned(merkletree.LeafID(c.Int("leaf")))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(proof, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal proof: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func verifyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one proof file argument")
	}

	leafHash, err := bitcoin.ParseHash(c.String("leaf-hash"))
	if err != nil {
		return fmt.Errorf("invalid leaf hash: %w", err)
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read proof file: %w", err)
	}

	var proof merkletree.Proof[bitcoin.Hash]
	if err := json.Unmarshal(data, &proof); err != nil {
		return fmt.Errorf("failed to decode proof: %w", err)
	}

	if proof.Verify(leafHash, bitcoin.NewHasher()) {
		fmt.Println("OK")
		return nil
	}
	return fmt.Errorf("proof does NOT verify for leaf %s", leafHash)
}

func fetchBlockAction(c *cli.Context) error {
	zl, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one block hash argument")
	}
	blockHash, err := bitcoin.ParseHash(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid block hash: %w", err)
	}

	block, err := bitcoin.FetchBlock(blockHash, c.String("cache-dir"))
	if err != nil {
		return err
	}
	zl.Sugar().Infow("block loaded", "hash", block.Hash.String(), "txs", len(block.Txs))

	tree := block.Tree()
	fmt.Printf("claimed root:    %s\n", block.MrklRoot)
	fmt.Printf("recomputed root: %s\n", tree.Root())
	if tree.Root() != block.MrklRoot {
		return fmt.Errorf("merkle root mismatch")
	}
	fmt.Println("OK")
	return nil
}
