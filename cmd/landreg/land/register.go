package land

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"landRegistry/pkg/app"
	"landRegistry/pkg/land"
	"landRegistry/pkg/registry"
	"landRegistry/pkg/upload"
)

var (
	fieldValues  = map[string]*string{}
	documentPath string
	imagePath    string
)

// registerCmd represents the land register command
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a land parcel",
	Long: `Register a land parcel on the registry contract.

All six land fields are required. The document and the image are uploaded
first; once both hashes are known a single addLand transaction is signed
with the stored credential (see "landreg auth login").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return register(cmd)
	},
}

func init() {
	LandCmd.AddCommand(registerCmd)

	for _, name := range land.FieldOrder {
		v := new(string)
		fieldValues[name] = v
		registerCmd.Flags().StringVar(v, name, "", land.Labels[name])
	}
	registerCmd.Flags().StringVar(&documentPath, "document", "", "Land document file")
	registerCmd.Flags().StringVar(&imagePath, "image", "", "Land image file")
	registerCmd.Flags().BoolVarP(&showProgress, "progress", "p", false, "Show upload progress")
	_ = registerCmd.MarkFlagRequired("document")
	_ = registerCmd.MarkFlagRequired("image")
}

func register(cmd *cobra.Command) error {
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

	nav := &registry.Recorder{}
	form := w.NewRegistrationForm(nav)
	for name, v := range fieldValues {
		if err := form.Set(name, *v); err != nil {
			return err
		}
	}
	if !form.CanSubmit() {
		return form.Errors()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range []struct {
		slot *upload.Slot
		path string
	}{
		{form.Document, documentPath},
		{form.Image, imagePath},
	} {
		g.Go(func() error {
			sess, closeFile, err := startUpload(gctx, s.path, func(name string, r io.Reader, size int64) *upload.Session {
				return s.slot.Select(gctx, name, r, size)
			})
			if err != nil {
				return err
			}
			defer closeFile()
			_, err = waitUpload(gctx, s.slot.Label, sess)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	txCtx, txCancel := context.WithTimeout(ctx, cfg.ChainTimeout())
	defer txCancel()
	receipt, err := form.Submit(txCtx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Land Registered ===")
	fmt.Printf("Document: %s\n", form.Document.Hash())
	fmt.Printf("Image: %s\n", form.Image.Hash())
	fmt.Printf("Transaction: %s\n", receipt.TxHash)
	fmt.Printf("Block: %d\n", receipt.BlockNumber)
	fmt.Printf("Gas used: %d\n", receipt.GasUsed)
	fmt.Printf("Next: %s\n", nav.Last())
	fmt.Println("=======================")
	return nil
}
