package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
)

// chatCmd answers questions read from stdin
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Ask questions interactively.

On a terminal this opens a chat view with the conversation history: enter
asks, ctrl+l clears the history and esc quits. When stdin is not a terminal
each line read is one question; an empty line is ignored and "exit" or EOF
ends the session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if err := a.openStore(); err != nil {
		return err
	}
	orch, err := a.newOrchestrator()
	if err != nil {
		return err
	}

	images := loadImageStore(ctx, a.cfg.Ingest.ImageStore, a.logger)
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	if isTerminal(in) && isTerminal(out) {
		return runChatTUI(ctx, newChatModel(ctx, orch, queryK, images, a.logger),
			tea.WithInput(in), tea.WithOutput(out))
	}
	return chatLoop(ctx, in, out, orch, queryK, images, a.logger)
}

// isTerminal reports whether rw is an interactive terminal.
func isTerminal(rw any) bool {
	f, ok := rw.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// chatLoop answers one question per line of piped input until EOF, "exit"
// or ctx is done.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, a answerer, k int, images map[string]*document.ImageDocument, logger *logging.Logger) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "exit" || line == "quit":
			return nil
		default:
			answer(ctx, out, a, line, k, images, logger)
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
