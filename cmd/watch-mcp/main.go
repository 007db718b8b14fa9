package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devricklin/fanwatch-bridge/internal/mcp"
)

// watch-mcp exposes the bridge admin API as MCP tools over stdio.
// BRIDGE_API_URL points at the bridge, WATCH_OPERATOR_ID selects the default operator.

const version = "v1.0.0"

func main() {
	apiURL := os.Getenv("BRIDGE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:9876"
	}

	var operatorID int64
	if v := os.Getenv("WATCH_OPERATOR_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[watch-mcp] Invalid WATCH_OPERATOR_ID %q: %v\n", v, err)
			os.Exit(1)
		}
		operatorID = id
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tools := mcp.NewTools(mcp.NewClient(apiURL), operatorID)
	server := mcp.NewServer(tools, version)

	// stdout belongs to the transport, log to stderr
	fmt.Fprintf(os.Stderr, "[watch-mcp] Serving tools for %s\n", apiURL)
	if err := server.Run(ctx, &gomcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "[watch-mcp] Server error: %v\n", err)
		os.Exit(1)
	}
}
