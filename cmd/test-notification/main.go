package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/garyjia/expense-audit/internal/config"
	"github.com/garyjia/expense-audit/internal/container"
	"go.uber.org/zap"
)

// Isolated test for Lark IM message sending. With -batch it sends the real
// summary of a stored batch through the notification service.

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	to := flag.String("to", "", "Receiver ID (defaults to lark.chat_id)")
	idType := flag.String("type", "", "Receiver ID type: chat_id, open_id, user_id or email (defaults to lark.receive_id_type)")
	batchID := flag.String("batch", "", "Send the summary of this batch instead of a test message")
	timeout := flag.Duration("timeout", 30*time.Second, "API call timeout")
	flag.Parse()

	color.Cyan("=== Lark IM Notification Test ===")
	fmt.Println()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The tool always talks to Lark, even when the service has it off
	cfg.Lark.Enabled = true
	if *to != "" {
		cfg.Lark.ChatID = *to
	}
	if *idType != "" {
		cfg.Lark.ReceiveIDType = *idType
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid Lark configuration: %v", err)
	}

	if len(cfg.Lark.AppID) > 8 {
		fmt.Printf("App ID: %s...%s\n", cfg.Lark.AppID[:4], cfg.Lark.AppID[len(cfg.Lark.AppID)-4:])
	}
	fmt.Printf("Receiver: %s (%s)\n", cfg.Lark.ChatID, cfg.Lark.ReceiveIDType)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cc := cfg.ToContainerConfig()

	if *batchID == "" {
		fmt.Println("\n[Step 1] Sending simple text message...")
		messenger := container.ProvideMessenger(&cc.Lark, logger)
		msg := fmt.Sprintf("测试消息：报销审核系统通知测试 %s", time.Now().Format("2006-01-02 15:04:05"))
		if err := messenger.SendText(ctx, cc.Lark.ChatID, msg); err != nil {
			color.Red("✗ Failed to send text message: %v", err)
			os.Exit(1)
		}
		color.Green("✓ Text message sent!")
		return
	}

	fmt.Printf("\n[Step 1] Loading batch %s...\n", *batchID)
	cc.Worker.Enabled = false
	c, err := container.NewContainer(cc, logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start container: %v", err)
	}

	fmt.Println("\n[Step 2] Sending batch summary...")
	err = c.Services().Notification.NotifyBatch(ctx, *batchID)
	_ = c.Close()
	if err != nil {
		color.Red("✗ Failed to send batch summary: %v", err)
		os.Exit(1)
	}
	color.Green("✓ Batch summary sent!")
}
