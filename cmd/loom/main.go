// Command loom is the workflow engine's operational CLI.
//
// Usage:
//
//	loom check --config loom.yaml             # validate config and definitions
//	loom run <workflow> [--message "..."]     # dry-run a workflow with an echo backend
//	loom version                              # show version information
//
// The run command executes a workflow against a stub backend that echoes each
// resolved prompt, which makes routing, variable resolution, and delivery
// cleaning inspectable without an LLM credential.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/loomhq/loom"
	"github.com/loomhq/loom/config"
	"github.com/loomhq/loom/llm"
	"github.com/loomhq/loom/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		runCheck(os.Args[2:])
	case "run":
		runWorkflow(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runCheck loads the configuration and every workflow definition in the
// configured directory, reporting the first problem in each file.
func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(cfg.WorkflowsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read workflows dir %s: %v\n", cfg.WorkflowsDir, err)
		os.Exit(1)
	}

	registry := config.NewRegistry(cfg.WorkflowsDir, nil)
	failed := 0
	checked := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		checked++
		if _, err := registry.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", name, err)
			failed++
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d workflow definitions failed validation\n", failed, checked)
		os.Exit(1)
	}
	fmt.Printf("OK: %d workflow definitions valid\n", checked)
}

// runWorkflow dry-runs one workflow with an echo backend.
func runWorkflow(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	message := fs.String("message", "", "User message placed in the conversation history")
	user := fs.String("user", "cli", "User identity for lock scoping")
	stream := fs.Bool("stream", false, "Stream the response fragment by fragment")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: loom run <workflow> [options]")
		os.Exit(1)
	}
	name := fs.Arg(0)

	logger := initLogger(*verbose)
	defer logger.Sync()

	engine, err := loom.New(
		loom.WithConfigFile(*configPath),
		loom.WithInvoker(echoInvoker()),
		loom.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	var history []types.Message
	if *message != "" {
		history = append(history, types.NewUserMessage(*message))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if *stream {
		fragments, err := engine.ExecuteStream(ctx, name, history, *user)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
			os.Exit(1)
		}
		for frag := range fragments {
			fmt.Print(frag.Text)
		}
		fmt.Println()
		return
	}

	reply, err := engine.Execute(ctx, name, history, *user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}

// echoInvoker answers every request with its own resolved prompt, tagged with
// the endpoint so multi-node runs stay readable.
func echoInvoker() llm.Invoker {
	return llm.CompleteFunc(func(_ context.Context, req llm.Request) (string, error) {
		return fmt.Sprintf("[%s] %s", req.Endpoint, req.Prompt), nil
	})
}

func initLogger(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printVersion() {
	fmt.Printf("loom %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`loom - LLM chat workflow engine

Usage:
  loom <command> [options]

Commands:
  check     Validate configuration and all workflow definitions
  run       Dry-run a workflow against an echo backend
  version   Show version information
  help      Show this help message

Options for 'check':
  --config <path>     Path to configuration file (YAML)

Options for 'run':
  --config <path>     Path to configuration file (YAML)
  --message <text>    User message placed in the conversation history
  --user <id>         User identity for lock scoping (default "cli")
  --stream            Stream the response fragment by fragment
  --verbose           Enable debug logging

Examples:
  loom check --config /etc/loom/loom.yaml
  loom run support_router --message "where is my order?"
  loom run greet --stream --verbose`)
}
