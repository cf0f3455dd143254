package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/murmur/internal/agent"
	"github.com/crystaldolphin/murmur/internal/dependency"
	"github.com/crystaldolphin/murmur/internal/shared/cmdutils"
)

var (
	chatMessage string
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "cli:direct", "Session ID")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := container.AgentLoop()
	if chatMessage != "" {
		return runSingleMessage(ctx, loop, chatSession)
	}
	return runInteractive(ctx, loop, chatSession, cfg.Agent.MaxTurns, os.Stdin, os.Stdout)
}

// runSingleMessage answers one message and prints the response.
func runSingleMessage(ctx context.Context, loop *agent.AgentLoop, sessionKey string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
	cmdutils.PrintResponse(os.Stdout, loop.ProcessDirect(ctx, sessionKey, chatMessage))
	return nil
}

// runInteractive reads one utterance per line and answers it, until the
// user exits, input ends, ctx is cancelled or maxTurns turns have run.
func runInteractive(ctx context.Context, loop *agent.AgentLoop, sessionKey string, maxTurns int, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", logo)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for turns := 0; maxTurns <= 0 || turns < maxTurns; {
		fmt.Fprint(out, "You: ")

		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		case <-ctx.Done():
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}

		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		cmdutils.PrintResponse(out, loop.ProcessDirect(ctx, sessionKey, line))
		turns++
	}

	fmt.Fprintf(out, "Reached the limit of %d turns. Goodbye!\n", maxTurns)
	return nil
}
