package docstore

import (
	"crypto/sha256"
	"io"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Chunk is one block of a document.
type Chunk struct {
	Hash []byte
	Data []byte
}

// splitChunks reads r in blockSize pieces and hashes each one. onChunk is
// called for every chunk as soon as it is read so callers can persist and
// report progress without holding the whole document in memory.
func splitChunks(r io.Reader, blockSize int, onChunk func(Chunk) error) error {
	buffer := make([]byte, blockSize)
	for {
		n, err := io.ReadFull(r, buffer)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])
			sum := sha256.Sum256(data)
			if cbErr := onChunk(Chunk{Hash: sum[:], Data: data}); cbErr != nil {
				return cbErr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// merkleRoot builds the tree bottom-up from leaf hashes. An odd node is
// carried to the next level unchanged.
func merkleRoot(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return nil
	}

	level := make([][]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next [][]byte
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}

	return level[0]
}

// rootToCID encodes a sha256 Merkle root as a CIDv0 (base58 "Qm...").
func rootToCID(root []byte) (string, error) {
	hash, err := mh.Encode(root, mh.SHA2_256)
	if err != nil {
		return "", err
	}
	return cid.NewCidV0(hash).String(), nil
}

// ParseCID checks that s is a well-formed content identifier.
func ParseCID(s string) (cid.Cid, error) {
	return cid.Decode(s)
}
