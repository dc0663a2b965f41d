package land

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"landRegistry/pkg/app"
	"landRegistry/pkg/upload"
)

var showProgress bool

// uploadCmd represents the land upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document and print its hash",
	Long: `Upload a document to content storage.

The document is split into chunks, a Merkle tree is built over the chunk
hashes and the root is printed as a CIDv0 hash. When the p2p network is
enabled the manifest is published and the chunks are announced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return uploadFile(cmd, args[0])
	},
}

func init() {
	LandCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().BoolVarP(&showProgress, "progress", "p", false, "Show progress")
}

func uploadFile(cmd *cobra.Command, path string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := app.NewWire(ctx, cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	sess, closeFile, err := startUpload(ctx, path, func(name string, r io.Reader, size int64) *upload.Session {
		return w.Uploader.Upload(ctx, name, r, size)
	})
	if err != nil {
		return err
	}
	defer closeFile()

	hash, err := waitUpload(ctx, filepath.Base(path), sess)
	if err != nil {
		return err
	}

	m, err := w.Store.Manifest(ctx, hash)
	if err != nil {
		return err
	}
	fmt.Println("\n=== Upload Summary ===")
	fmt.Printf("File: %s\n", m.Name)
	fmt.Printf("Size: %d bytes\n", m.Size)
	fmt.Printf("Chunks: %d\n", len(m.Leaves))
	fmt.Printf("Hash: %s\n", hash)
	fmt.Println("======================")
	return nil
}

// startUpload opens path and hands it to start. The returned func closes the
// file once the upload is done.
func startUpload(ctx context.Context, path string, start func(name string, r io.Reader, size int64) *upload.Session) (*upload.Session, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	logrus.Debugf("Uploading %s (%d bytes)", path, info.Size())
	sess := start(filepath.Base(path), f, info.Size())
	return sess, func() { f.Close() }, nil
}

// waitUpload blocks until sess finishes, printing progress when requested.
func waitUpload(ctx context.Context, label string, sess *upload.Session) (string, error) {
	if showProgress {
		for p := range sess.Watch() {
			fmt.Printf("[%s] %3d%%\n", label, p)
		}
	}
	hash, err := sess.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("upload of %s failed: %w", label, err)
	}
	return hash, nil
}
