package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/convene/pkg/usecase/orchestrator"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

var (
	headerColor   = color.New(color.FgCyan, color.Bold)
	responseColor = color.New(color.FgGreen)
	labelColor    = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
)

func chatCommand() *cli.Command {
	var (
		cfg         config
		transcript  string
		historyFile string
	)

	flags := commandFlags(&cfg,
		&cli.StringFlag{
			Name:        "transcript",
			Aliases:     []string{"t"},
			Usage:       "Append a readable session log to this file",
			Sources:     cli.EnvVars("CONVENE_TRANSCRIPT"),
			Destination: &transcript,
		},
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "Readline history file",
			Value:       filepath.Join(os.TempDir(), "convene_history"),
			Sources:     cli.EnvVars("CONVENE_HISTORY_FILE"),
			Destination: &historyFile,
		},
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive session sharing memory across queries",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.configureLogger(ctx)
			if err != nil {
				return err
			}

			sinks := []telemetry.Sink{telemetry.NewLogSink()}
			if transcript != "" {
				f, err := os.OpenFile(transcript, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return goerr.Wrap(err, "failed to open transcript", goerr.V("path", transcript))
				}
				defer f.Close()
				sinks = append(sinks, telemetry.NewTranscriptSink(f))
			}

			e, err := cfg.newEngine(ctx, telemetry.Multi(sinks...))
			if err != nil {
				return err
			}
			defer e.Close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			w := c.Root().Writer
			headerColor.Fprintln(w, "Chat session started. Type 'status' for memory statistics, 'exit' to quit.")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				input := strings.TrimSpace(line)
				switch strings.ToLower(input) {
				case "":
					continue
				case "exit", "quit":
					headerColor.Fprintln(w, "Goodbye!")
					return nil
				case "status":
					printStatus(w, e.orch.Status(ctx))
					continue
				}

				s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = " thinking..."
				s.Start()
				resp, err := e.orch.Process(ctx, input)
				s.Stop()
				if err != nil {
					errorColor.Fprintf(w, "Error: %v\n", err)
					continue
				}

				fmt.Fprintln(w)
				responseColor.Fprintln(w, resp)
				fmt.Fprintln(w)
			}

			headerColor.Fprintln(w, "\nChat session completed")
			return nil
		},
	}
}

// printStatus renders orchestrator status for people
func printStatus(w io.Writer, st *orchestrator.Status) {
	headerColor.Fprintln(w, "=== System Status ===")
	labelColor.Fprint(w, "Coordinator: ")
	fmt.Fprintln(w, st.Coordinator)

	for _, a := range st.Agents {
		labelColor.Fprintf(w, "%s", a.Name)
		fmt.Fprintf(w, " (%s): %s\n", a.Role, strings.Join(a.Capabilities, ", "))
	}

	labelColor.Fprintln(w, "Memory:")
	fmt.Fprintf(w, "  Conversations: %d\n", st.Memory.ConversationCount)
	fmt.Fprintf(w, "  Knowledge records: %d (%d topics)\n", st.Memory.KnowledgeCount, st.Memory.KnowledgeTopics)
	fmt.Fprintf(w, "  Agent states: %d\n", st.Memory.AgentStateCount)
	fmt.Fprintf(w, "  Indexed records: %d\n", st.Memory.IndexSize)

	if st.LastQuery != "" {
		labelColor.Fprint(w, "Last query: ")
		fmt.Fprintf(w, "%s (%s)\n", st.LastQuery, st.LastComplexity)
	}
}
