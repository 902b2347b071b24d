// Package cmd provides the CLI commands for Kaiwa.
//
// Commands:
//   - cli: interactive terminal chat with the Bubble Tea TUI
//   - serve: HTTP API server with SSE streaming
//
// All commands handle SIGINT/SIGTERM via context cancellation for graceful
// shutdown.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the Kaiwa CLI.
func Execute() error {
	if len(os.Args) < 2 {
		// No subcommand starts the interactive chat.
		return runCLI()
	}

	switch os.Args[1] {
	case "cli":
		return runCLI()
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Kaiwa - streaming chat with search-augmented answers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  kaiwa [cli]        Start interactive chat mode (default)")
	fmt.Println("  kaiwa serve [addr] Start HTTP API server (default: 127.0.0.1:8700)")
	fmt.Println("  kaiwa --version    Show version information")
	fmt.Println("  kaiwa --help       Show this help")
	fmt.Println()
	fmt.Println("Chat input (in interactive mode):")
	fmt.Println("  検索: <クエリ>      Force a web search with that exact query")
	fmt.Println("  source: <番号>     Expand a result from the last search")
	fmt.Println("  /help              Show available commands")
	fmt.Println("  /clear             Clear conversation history")
	fmt.Println("  /agents            List agent types")
	fmt.Println("  /exit, /quit       Exit Kaiwa")
	fmt.Println()
	fmt.Println("Shortcuts:")
	fmt.Println("  Ctrl+D             Exit Kaiwa")
	fmt.Println("  Ctrl+C             Cancel current response (twice to exit)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  AZURE_OPENAI_API_KEY  Azure OpenAI API key")
	fmt.Println("  GEMINI_API_KEY        Gemini API key")
	fmt.Println("  KAIWA_PROVIDER        azure (default) or gemini")
	fmt.Println("  KAIWA_AGENT           direct, context, tools or websearch")
	fmt.Println("  DEBUG                 Enable debug logging")
}
