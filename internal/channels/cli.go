package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/crystaldolphin/murmur/internal/bus"
)

var cliExitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// SenderCLI identifies the local terminal user.
const SenderCLI = "user"

// CLIChannel wires a terminal into the bus: each line is one utterance and
// the reply is printed before the next prompt.
type CLIChannel struct {
	Base
	in      io.Reader
	out     io.Writer
	replies chan bus.OutboundMessage

	// OnExit runs when the user leaves the REPL.
	OnExit func()
}

// NewCLIChannel creates a CLIChannel reading in and writing out.
func NewCLIChannel(b bus.Bus, in io.Reader, out io.Writer) *CLIChannel {
	return &CLIChannel{
		Base:    NewBase(bus.ChannelCLI, b),
		in:      in,
		out:     out,
		replies: make(chan bus.OutboundMessage, 1),
	}
}

func (c *CLIChannel) Name() string { return string(bus.ChannelCLI) }

// Start runs the REPL until ctx is cancelled, the input ends or the user
// types an exit command.
func (c *CLIChannel) Start(ctx context.Context) error {
	defer func() {
		if c.OnExit != nil {
			c.OnExit()
		}
	}()
	fmt.Fprintf(c.out, "CLI channel ready. Type 'exit' or press Ctrl+C to quit.\n\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "You: ")

		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out, "\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		case <-ctx.Done():
			return ctx.Err()
		}

		if line == "" {
			continue
		}
		if cliExitCommands[strings.ToLower(line)] {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}

		if err := c.HandleMessage(ctx, SenderCLI, "direct", line, nil); err != nil {
			return err
		}
		select {
		case msg := <-c.replies:
			fmt.Fprintf(c.out, "\n🎙 %s\n\n", msg.Content())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send hands a reply to the REPL.
func (c *CLIChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	select {
	case c.replies <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
