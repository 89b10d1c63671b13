package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/config"
	"github.com/garyjia/expense-audit/internal/container"
	"github.com/garyjia/expense-audit/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-audit/internal/invoice"
	"github.com/garyjia/expense-audit/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to config file (empty for defaults and environment only)")
	provider := flag.String("provider", "", "Provider key (defaults to oracle.default_provider)")
	model := flag.String("model", "", "Model name (defaults to the provider's default model)")
	apiKey := flag.String("key", "", "API key (defaults to the configured key)")
	file := flag.String("file", "", "Optional invoice (pdf, jpg or png) to extract and audit")
	timeout := flag.Duration("timeout", 90*time.Second, "Overall timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	// Initialize logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *provider == "" {
		*provider = cfg.Oracle.DefaultProvider
	}

	cc := cfg.ToContainerConfig()
	bundle, err := container.ProvideOracle(&cc.Oracle, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	color.Cyan("=== Vision Oracle Connection Test ===")
	fmt.Println("Configuration:")
	fmt.Printf("  Provider: %s\n", *provider)
	fmt.Printf("  Model: %s\n", modelOrDefault(*model, bundle.Providers, *provider))
	if *apiKey != "" {
		fmt.Printf("  API key: %s\n", utils.SanitizeAPIKey(*apiKey))
	}
	fmt.Printf("  Timeout: %v\n", *timeout)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	startTime := time.Now()
	if err := bundle.Oracle.Check(ctx, *provider, *model, *apiKey); err != nil {
		color.Red("❌ ERROR: connection check failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "Possible causes:\n")
		fmt.Fprintf(os.Stderr, "  1. Missing or invalid API key for %s\n", *provider)
		fmt.Fprintf(os.Stderr, "  2. Network connectivity issue\n")
		fmt.Fprintf(os.Stderr, "  3. Quota exceeded or model not available\n")
		os.Exit(1)
	}
	color.Green("✓ Provider answered in %v", time.Since(startTime))

	if *file == "" {
		color.Green("\n✅ Connection Test PASSED!")
		return
	}

	if err := extract(ctx, cc, bundle, *file, port.OracleRequest{
		Provider: *provider,
		Model:    *model,
		APIKey:   *apiKey,
	}, logger); err != nil {
		color.Red("❌ ERROR: %v", err)
		os.Exit(1)
	}
	color.Green("\n✅ Extraction Test PASSED!")
}

// extract renders the first page of path, sends it to the oracle and audits
// the parsed record
func extract(ctx context.Context, cc *container.Config, bundle *container.OracleBundle, path string, req port.OracleRequest, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	docs, err := container.ProvideDocuments(&cc.Render, &cc.Rules, logger)
	if err != nil {
		return err
	}

	pages, err := docs.Renderer.Render(data, invoice.MimeTypeFromName(path))
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("render %s: no pages", path)
	}
	fmt.Printf("✓ Rendered %d page(s)\n", len(pages))

	req.FileName = filepath.Base(path)
	req.Image = pages[0].Data
	req.MimeType = pages[0].MimeType

	text, err := bundle.Oracle.ExtractInvoice(ctx, req)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	color.Cyan("\n=== Raw Model Output ===")
	fmt.Println(strings.TrimSpace(text))

	record := docs.Parser.ParseInvoiceOutput(text)
	result := docs.Engine.AuditInvoice(&record)

	color.Cyan("\n=== Audit Result (JSON) ===")
	jsonBytes, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(jsonBytes))
	return nil
}

func modelOrDefault(model string, providers *openai.ProviderTable, provider string) string {
	if model != "" {
		return model
	}
	return providers.DefaultModel(provider) + " (default)"
}
