package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronoflow/chronoflow/internal/assistant"
	"github.com/chronoflow/chronoflow/internal/llm"
	"github.com/chronoflow/chronoflow/internal/schedule"
	"github.com/chronoflow/chronoflow/internal/slots"
)

func (a *App) askCmd() *cobra.Command {
	var (
		modelFlag   string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask the assistant to plan or change your schedule",
		Long: `Talk to the scheduling assistant in natural language.

The assistant can read your calendar, create, move, complete and delete
items, and look for free time. Changes are saved immediately and listed
under the answer.

Examples:
  chronoflow ask "dentist next friday at 2pm for an hour"
  chronoflow ask "when am I free for 90 minutes this week?"
  chronoflow ask -i`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !interactive {
				return fmt.Errorf("pass a message or use --interactive")
			}
			if err := a.ensureStore(); err != nil {
				return err
			}

			// Use config default for model if not overridden
			model := modelFlag
			if model == "" {
				model = a.config.LLM.Model
			}
			client, err := llm.NewClient(a.config.LLM.Provider, model, a.config.LLM.BaseURL, a.config.LLM.APIKey)
			if err != nil {
				return fmt.Errorf("creating LLM client: %w", err)
			}

			asst := assistant.New(client, a.store, assistant.Options{
				Finder:   slots.New(a.config.Workdays(), a.config.Schedule.DayStart, a.config.Schedule.DayEnd),
				Location: a.config.Location(),
				Source:   schedule.SourceCLI,
			})

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				if _, err := askOnce(cmd.Context(), asst, a.user, strings.Join(args, " "), nil, out); err != nil {
					return err
				}
				if !interactive {
					return nil
				}
			}
			return a.askLoop(cmd.Context(), asst, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVar(&modelFlag, "model", "", "LLM model to use (from config if not set)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Keep the conversation going until an empty line")

	return cmd
}

// asker is the part of the assistant the CLI uses.
type asker interface {
	Chat(ctx context.Context, userID, message string, history []llm.Message) (*assistant.Reply, error)
}

func askOnce(ctx context.Context, asst asker, userID, message string, history []llm.Message, out io.Writer) (*assistant.Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(out, formatMuted("Thinking..."))
	reply, err := asst.Chat(ctx, userID, message, history)
	if err != nil {
		return nil, fmt.Errorf("asking assistant: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, formatAnswer(reply.Text))
	if len(reply.Actions) > 0 {
		fmt.Fprintln(out)
		for _, act := range reply.Actions {
			fmt.Fprintf(out, "  %s %s\n", formatMuted(act.Tool), act.Summary)
		}
	}
	return reply, nil
}

func (a *App) askLoop(ctx context.Context, asst asker, in io.Reader, out io.Writer) error {
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)
	var history []llm.Message

	for {
		fmt.Fprint(out, "\n> ")
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}

		reply, askErr := askOnce(ctx, asst, a.user, line, history, out)
		if askErr != nil {
			fmt.Fprintln(out, askErr)
		} else {
			history = append(history,
				llm.Message{Role: llm.RoleUser, Content: line},
				llm.Message{Role: llm.RoleAssistant, Content: reply.Text},
			)
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
	}
}
