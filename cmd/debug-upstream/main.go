package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/infra/upstream"
)

// debug-upstream connects one token to the upstream and prints every frame
// with its decoded event and the triggers it would match.
func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: debug-upstream <token> [extra,trigger,words]")
		os.Exit(1)
	}
	token := os.Args[1]

	triggers := domain.NewTriggerSet()
	if len(os.Args) > 2 {
		triggers.Add(domain.SplitTriggerWords(os.Args[2])...)
	}

	endpoint := os.Getenv("UPSTREAM_WS_URL")
	if endpoint == "" {
		endpoint = upstream.DefaultEndpoint
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	stream, err := upstream.NewWSDialer().Dial(dialCtx, endpoint)
	cancel()
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()
	context.AfterFunc(ctx, func() { stream.Close() })

	auth, _ := json.Marshal(map[string]string{"act": "connect", "token": token})
	if err := stream.WriteText(ctx, auth); err != nil {
		fmt.Printf("Failed to send auth frame: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Connected to %s, waiting for frames (Ctrl+C to stop)\n\n", endpoint)

	for {
		frame, err := stream.ReadText()
		if err != nil {
			if ctx.Err() == nil && !upstream.IsClosed(err) {
				fmt.Printf("Read error: %v\n", err)
			}
			return
		}
		printFrame(frame, triggers.Effective())
	}
}

func printFrame(frame []byte, triggers []string) {
	event := usecase.Decode(frame)
	fmt.Printf("=== %s [%s] ===\n", time.Now().Format("15:04:05"), domain.EventKind(event))
	fmt.Println(usecase.TruncatePayload(string(frame)))

	if msg, ok := event.(domain.ChatMessage); ok {
		c := usecase.Classify(msg.Text, triggers)
		if !c.Empty() {
			fmt.Printf("-> matched: %s\n", strings.Join(c.All(), ", "))
		}
	}
	fmt.Println()
}
