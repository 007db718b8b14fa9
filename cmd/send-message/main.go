package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/fanwatch-bridge/internal/infra/feishu"
)

// send-message checks that the bot can reach an operator chat
func main() {
	godotenv.Load()

	appID := os.Getenv("FEISHU_APP_ID")
	appSecret := os.Getenv("FEISHU_APP_SECRET")

	if appID == "" || appSecret == "" {
		fmt.Println("Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}

	if len(os.Args) < 3 {
		fmt.Println("Usage: send-message <chat_id> <message> [account]")
		os.Exit(1)
	}

	chatID := os.Args[1]
	message := os.Args[2]
	if len(os.Args) > 3 && strings.TrimSpace(os.Args[3]) != "" {
		message = fmt.Sprintf("[%s] %s", os.Args[3], message)
	}

	client := feishu.NewClient(appID, appSecret)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.SendText(ctx, chatID, message); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Message sent successfully!")
}
