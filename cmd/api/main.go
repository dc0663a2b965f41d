// Package main provides the HTTP API server of the land registry client
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"landRegistry/pkg/app"
)

func main() {
	// 定义命令行参数
	configPath := flag.String("config", "", "Path to configuration file")
	httpPort := flag.Int("port", 0, "HTTP server port (overrides configuration)")
	withNode := flag.Bool("p2p", false, "Start a p2p node alongside the API")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("Land Registry HTTP API Server\n")
		fmt.Printf("Version: 1.0.0\n")
		return
	}

	if *showHelp {
		fmt.Printf("Land Registry HTTP API Server\n\n")
		fmt.Printf("Usage: landreg-api [options]\n\n")
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nAPI Endpoints:\n")
		for _, r := range routes {
			fmt.Printf("  %s\n", r)
		}
		return
	}

	fmt.Printf("========================\n")
	fmt.Printf("Land Registry HTTP API\n")
	fmt.Printf("========================\n\n")

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 命令行参数覆盖配置文件
	if *httpPort != 0 {
		cfg.HTTP.Port = *httpPort
	}
	if *withNode {
		cfg.Network.Enabled = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := app.NewWire(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}
	defer w.Close()

	server := NewServer(w)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		fmt.Printf("\nReceived shutdown signal\n")
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
	}
}
