package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aretw0/toolgate"
	"github.com/aretw0/toolgate/pkg/config"
	"github.com/aretw0/toolgate/internal/presentation/tui"
)

// ChatOptions controls the interactive chat session.
type ChatOptions struct {
	ConfigPath string
	From       string
	Debug      bool
	Headless   bool
}

// consoleDeliverer prints gateway replies to the terminal instead of
// WhatsApp, rendering them as markdown when a renderer is set.
type consoleDeliverer struct {
	render func(string) (string, error)
}

func (d *consoleDeliverer) Deliver(_ context.Context, _, body string) error {
	if d.render != nil {
		if out, err := d.render(body); err == nil {
			fmt.Print(out)
			return nil
		}
	}
	fmt.Println(body)
	return nil
}

// RunChat starts a local REPL that feeds each typed line through the same
// pipeline a WhatsApp message would take. Replies land on stdout.
func RunChat(opts ChatOptions) error {
	logger := CreateLogger(opts.Debug)

	if !opts.Headless {
		tui.PrintBanner(toolgate.Version)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	deliverer := &consoleDeliverer{}
	if !opts.Headless {
		deliverer.render = tui.NewRenderer()
	}

	gw, err := toolgate.New(cfg,
		toolgate.WithLogger(logger),
		toolgate.WithDeliverer(deliverer),
	)
	if err != nil {
		return fmt.Errorf("error initializing toolgate: %w", err)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gw.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "err", err)
		}
	}()

	if !opts.Headless {
		printSystemMessage("Chat session active. Type a request, or 'exit' to quit.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if !opts.Headless {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("input error: %w", err)
			}
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		result, err := gw.HandleIncoming(sigCtx, opts.From, line)
		if err != nil {
			printSystemMessage("Delivery problem: %v", err)
			continue
		}
		logger.Debug("task finished", "task", result.TaskID, "command", result.Command)

		if sigCtx.Err() != nil {
			return nil
		}
	}
}
