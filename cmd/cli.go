package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/app"
	"github.com/kztmrk/kaiwa/internal/tui"
)

// runCLI initializes and starts the interactive chat TUI.
func runCLI() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, app.Options{
		Verbose: os.Getenv("DEBUG") != "",
	})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	model, err := tui.New(ctx, a.Responder, a.History)
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}
	model.SetAgentFactory(func(agentType string) (agent.Responder, error) {
		return agent.New(agent.Config{
			Type: agentType,
			Search: agent.SearchSettings{
				Enabled:             a.Config.Search.Enabled,
				MaxResults:          a.Config.Search.MaxResults,
				Region:              a.Config.Search.Region,
				NewsEnabled:         a.Config.Search.NewsEnabled,
				MaxQueryRefinements: a.Config.Search.MaxQueryRefinements,
			},
		}, agent.Deps{
			Client:  a.Client,
			Search:  a.Search,
			Fetcher: a.Fetcher,
			Logger:  a.Logger,
		})
	})
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
