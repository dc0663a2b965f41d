// Package docstore 提供内容寻址的文档存储
//
// 核心功能:
//   - 分块: 将文档按 block_size 切分并计算 SHA256
//   - Merkle 根: 由分块哈希构建，作为文档的内容标识
//   - CID: 根哈希编码为 CIDv0（"Qm..."），即登记表单中的 document hash
//   - 清单: 每个文档的分块列表以 JSON 保存在 manifest 目录
//
// 网络扩展:
//   - Announcer: 上传后向 P2P 网络公告分块和文档
//   - Fetcher: 读取时从 P2P 网络补齐本地缺失的分块
//
// 使用示例:
//
//	store, err := docstore.New(docstore.Options{ChunkPath: "files", ManifestPath: "manifests"})
//	m, err := store.Put(ctx, "deed.pdf", f, size, nil)
//	fmt.Println(m.CID)
package docstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBlockSize 默认分块大小 (256KB)
	DefaultBlockSize = 256 * 1024
)

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrNotFound      = errors.New("document not found")
	ErrCorruptChunk  = errors.New("chunk hash mismatch")
)

// ProgressFunc receives the number of bytes stored so far and the expected
// total. total is zero when the size is unknown.
type ProgressFunc func(done, total int64)

// Announcer advertises locally stored keys to other nodes.
type Announcer interface {
	Announce(ctx context.Context, key string) error
}

// Fetcher retrieves chunks this node does not hold.
type Fetcher interface {
	FetchChunk(ctx context.Context, chunkHash string) ([]byte, error)
}

// Leaf describes one stored chunk.
type Leaf struct {
	Size int    `json:"size"`
	Hash string `json:"hash"`
}

// Manifest describes a stored document.
type Manifest struct {
	CID       string    `json:"cid"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	BlockSize int       `json:"blockSize"`
	Root      string    `json:"root"`
	Leaves    []Leaf    `json:"leaves"`
	CreatedAt time.Time `json:"createdAt"`
}

// Options configures a Store.
type Options struct {
	ChunkPath    string
	ManifestPath string
	BlockSize    int
}

// Store keeps chunks and manifests on the local file system.
type Store struct {
	chunkPath    string
	manifestPath string
	blockSize    int

	mu        sync.RWMutex
	announcer Announcer
	fetcher   Fetcher
}

// New creates the storage directories and returns a Store.
func New(opts Options) (*Store, error) {
	if opts.ChunkPath == "" || opts.ManifestPath == "" {
		return nil, fmt.Errorf("chunk and manifest paths are required")
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	for _, dir := range []string{opts.ChunkPath, opts.ManifestPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return &Store{
		chunkPath:    opts.ChunkPath,
		manifestPath: opts.ManifestPath,
		blockSize:    opts.BlockSize,
	}, nil
}

// SetNetwork attaches the peer-to-peer side of the store. Either argument
// may be nil.
func (s *Store) SetNetwork(a Announcer, f Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announcer = a
	s.fetcher = f
}

func (s *Store) network() (Announcer, Fetcher) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.announcer, s.fetcher
}

// BlockSize returns the chunk size used for new documents.
func (s *Store) BlockSize() int { return s.blockSize }

// ChunkPath returns the file that holds the chunk with the given hex hash.
func (s *Store) ChunkPath(chunkHash string) string {
	return filepath.Join(s.chunkPath, chunkHash)
}

// Put stores the document read from r and returns its manifest. size is
// only used for progress reporting and may be zero.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64, progress ProgressFunc) (*Manifest, error) {
	var (
		leaves     []Leaf
		leafHashes [][]byte
		written    int64
	)

	err := splitChunks(r, s.blockSize, func(c Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		hexHash := hex.EncodeToString(c.Hash)
		if err := s.writeChunk(hexHash, c.Data); err != nil {
			return err
		}
		leaves = append(leaves, Leaf{Size: len(c.Data), Hash: hexHash})
		leafHashes = append(leafHashes, c.Hash)
		written += int64(len(c.Data))
		if progress != nil {
			progress(written, size)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	if len(leaves) == 0 {
		return nil, ErrEmptyDocument
	}

	root := merkleRoot(leafHashes)
	id, err := rootToCID(root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cid: %w", err)
	}

	m := &Manifest{
		CID:       id,
		Name:      filepath.Base(name),
		Size:      written,
		BlockSize: s.blockSize,
		Root:      hex.EncodeToString(root),
		Leaves:    leaves,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.saveManifest(m); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"cid":    m.CID,
		"name":   m.Name,
		"size":   m.Size,
		"chunks": len(m.Leaves),
	}).Info("document stored")

	s.announce(ctx, m)
	return m, nil
}

func (s *Store) announce(ctx context.Context, m *Manifest) {
	announcer, _ := s.network()
	if announcer == nil {
		return
	}
	for i, leaf := range m.Leaves {
		if err := announcer.Announce(ctx, leaf.Hash); err != nil {
			logrus.Warnf("Failed to announce chunk %d of %s: %v", i, m.CID, err)
		}
	}
	if err := announcer.Announce(ctx, m.CID); err != nil {
		logrus.Warnf("Failed to announce document %s: %v", m.CID, err)
	}
}

func (s *Store) writeChunk(hexHash string, data []byte) error {
	path := s.ChunkPath(hexHash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write chunk %s: %w", hexHash, err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) manifestFile(id string) string {
	return filepath.Join(s.manifestPath, id+".json")
}

func (s *Store) saveManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(s.manifestFile(m.CID), data, 0644); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// DecodeManifest parses manifest JSON and checks that its leaves hash to the
// claimed CID.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Leaves) == 0 {
		return nil, fmt.Errorf("manifest %s has no leaves", m.CID)
	}
	leafHashes := make([][]byte, 0, len(m.Leaves))
	for _, leaf := range m.Leaves {
		b, err := hex.DecodeString(leaf.Hash)
		if err != nil {
			return nil, fmt.Errorf("invalid leaf hash %q: %w", leaf.Hash, err)
		}
		leafHashes = append(leafHashes, b)
	}
	id, err := rootToCID(merkleRoot(leafHashes))
	if err != nil || id != m.CID {
		return nil, fmt.Errorf("manifest does not match cid %s", m.CID)
	}
	return &m, nil
}

// ImportManifest saves a manifest obtained from another node after verifying
// it.
func (s *Store) ImportManifest(data []byte) (*Manifest, error) {
	m, err := DecodeManifest(data)
	if err != nil {
		return nil, err
	}
	if err := s.saveManifest(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Has reports whether a manifest for id is stored locally.
func (s *Store) Has(id string) bool {
	_, err := os.Stat(s.manifestFile(id))
	return err == nil
}

// Manifest loads the manifest for id.
func (s *Store) Manifest(ctx context.Context, id string) (*Manifest, error) {
	if _, err := ParseCID(id); err != nil {
		return nil, fmt.Errorf("invalid cid %q: %w", id, err)
	}
	data, err := os.ReadFile(s.manifestFile(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// ManifestBytes returns the raw manifest JSON, used for publication.
func (s *Store) ManifestBytes(id string) ([]byte, error) {
	data, err := os.ReadFile(s.manifestFile(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, err
}

// Open writes the document content to w, verifying every chunk.
func (s *Store) Open(ctx context.Context, id string, w io.Writer) error {
	m, err := s.Manifest(ctx, id)
	if err != nil {
		return err
	}
	for i, leaf := range m.Leaves {
		data, err := s.Chunk(ctx, leaf.Hash)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write chunk %d failed: %w", i, err)
		}
	}
	return nil
}

// Chunk returns a verified chunk, fetching it from the network when it is
// not stored locally.
func (s *Store) Chunk(ctx context.Context, chunkHash string) ([]byte, error) {
	data, err := os.ReadFile(s.ChunkPath(chunkHash))
	if err == nil {
		return data, verifyChunk(chunkHash, data)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	_, fetcher := s.network()
	if fetcher == nil {
		return nil, fmt.Errorf("%w: chunk %s", ErrNotFound, chunkHash)
	}
	data, err = fetcher.FetchChunk(ctx, chunkHash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunk %s: %w", chunkHash, err)
	}
	if err := verifyChunk(chunkHash, data); err != nil {
		return nil, err
	}
	if err := s.writeChunk(chunkHash, data); err != nil {
		logrus.Warnf("Failed to cache fetched chunk %s: %v", chunkHash, err)
	}
	return data, nil
}

func verifyChunk(chunkHash string, data []byte) error {
	want, err := hex.DecodeString(chunkHash)
	if err != nil {
		return fmt.Errorf("invalid chunk hash %q: %w", chunkHash, err)
	}
	got := sha256.Sum256(data)
	if !bytes.Equal(want, got[:]) {
		return fmt.Errorf("%w: %s", ErrCorruptChunk, chunkHash)
	}
	return nil
}
