package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"landRegistry/pkg/app"
	"landRegistry/pkg/p2p"
)

// nodeCmd represents the node command
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Start a p2p node serving stored documents",
	Long: `Start a p2p node for land documents.

The node:
  • Joins the DHT through the configured bootstrap peers
  • Serves chunks of locally stored documents
  • Publishes manifests of documents uploaded while it runs

The node keeps running until interrupted with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startNode(cmd)
	},
}

func init() {
	rootCmd.AddCommand(nodeCmd)

	nodeCmd.Flags().IntP("port", "p", -1, "Listen port (overrides configuration)")
}

func startNode(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.Network.Enabled = true
	if port, _ := cmd.Flags().GetInt("port"); port >= 0 {
		cfg.Network.Port = port
	}

	logrus.Infof("Network: port=%d, insecure=%v, prefix=%s", cfg.Network.Port, cfg.Network.Insecure, cfg.Network.ProtocolPrefix)
	logrus.Infof("Storage: chunk_path=%s, block_size=%d", cfg.Storage.ChunkPath, cfg.Storage.BlockSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logrus.Info("Starting p2p node...")
	w, err := app.NewWire(ctx, cfg)
	if err != nil {
		return err
	}
	printNodeInfo(w.Node)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logrus.Info("Node is running. Press Ctrl+C to stop.")
	<-sigChan

	logrus.Info("Received shutdown signal, shutting down gracefully...")
	if err := w.Close(); err != nil {
		logrus.Errorf("Error during shutdown: %v", err)
		return err
	}
	logrus.Info("Shutdown complete.")
	return nil
}

// printNodeInfo prints node information to console
func printNodeInfo(node *p2p.Node) {
	fmt.Println("\n=== Node Information ===")
	fmt.Printf("Peer ID: %s\n", node.Host.ID())
	fmt.Println("\nListen Addresses:")
	for _, addr := range node.Addrs() {
		fmt.Printf("  - %s\n", addr)
	}
	fmt.Println("========================")
}
