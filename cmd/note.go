package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/murmur/internal/dependency"
	"github.com/crystaldolphin/murmur/internal/schema"
	"github.com/crystaldolphin/murmur/internal/shared/llmutils"
)

var (
	noteTitle string
	noteTopN  int
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage stored notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <content...>",
	Short: "Save a note",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNoteAdd,
}

var noteQueryCmd = &cobra.Command{
	Use:   "query <text...>",
	Short: "List the notes most relevant to text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNoteQuery,
}

var noteIngestCmd = &cobra.Command{
	Use:   "ingest <url>",
	Short: "Fetch a web page and store its text as notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteIngest,
}

func init() {
	noteAddCmd.Flags().StringVarP(&noteTitle, "title", "t", "", "Note title (required)")
	_ = noteAddCmd.MarkFlagRequired("title")
	noteQueryCmd.Flags().IntVarP(&noteTopN, "top", "n", 0, "Number of notes to show (default notes.topN)")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteQueryCmd)
	noteCmd.AddCommand(noteIngestCmd)
}

// withContainer builds the container and runs fn under a signal-aware
// context with timeout.
func withContainer(timeout time.Duration, fn func(ctx context.Context, c *dependency.Container) error) error {
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
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(ctx, container)
}

func runNoteAdd(_ *cobra.Command, args []string) error {
	return withContainer(time.Minute, func(ctx context.Context, c *dependency.Container) error {
		note := schema.Note{Title: noteTitle, Content: strings.Join(args, " "), Timestamp: time.Now()}
		if err := c.Notes().Store(ctx, note); err != nil {
			return err
		}
		fmt.Printf("✓ Saved note %q\n", noteTitle)
		return nil
	})
}

func runNoteQuery(_ *cobra.Command, args []string) error {
	return withContainer(time.Minute, func(ctx context.Context, c *dependency.Container) error {
		n := noteTopN
		if n <= 0 {
			n = c.Config().Notes.TopN
		}
		matches, err := c.Notes().Query(ctx, strings.Join(args, " "), n)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No matching notes.")
			return nil
		}
		for i, m := range matches {
			fmt.Printf("%d. %s  (%.3f, %s)\n", i+1, m.Note.Title, m.Score, m.Note.Timestamp.Local().Format("2006-01-02 15:04"))
			fmt.Printf("   %s\n", llmutils.Truncate(strings.Join(strings.Fields(m.Note.Content), " "), 160))
		}
		return nil
	})
}

func runNoteIngest(_ *cobra.Command, args []string) error {
	return withContainer(5*time.Minute, func(ctx context.Context, c *dependency.Container) error {
		fmt.Fprintf(os.Stderr, "  ↳ fetching %s...\n", args[0])
		res, err := c.Ingester().Ingest(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Ingested %q into %d note(s)\n", res.Title, res.Notes)
		return nil
	})
}
