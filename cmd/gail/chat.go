package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gail/internal/agent"
	"gail/internal/config"
	"gail/internal/history"
	"gail/internal/llm"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	chatConversation string
	chatPrincipal    string
	chatArtifactDir  string
	chatShowThinking bool
	chatPlain        bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one message and stream the reply to stdout",
	Long: "Send one message and stream the reply. The message is read from stdin when not given.\n" +
		"Pass --conversation to continue a stored conversation.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		text, err := chatMessage(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		rt, err := openRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close(context.WithoutCancel(ctx))

		if rt.runner == nil {
			return errors.New("no LLM provider configured, run gail setup or set ANTHROPIC_API_KEY")
		}

		var messages []llm.Message
		conversationID := chatConversation
		if conversationID == "" {
			conversationID = uuid.NewString()
		} else {
			conv, err := rt.history.LoadConversation(ctx, conversationID, chatPrincipal)
			switch {
			case errors.Is(err, history.ErrNotFound):
			case err != nil:
				return err
			default:
				messages = conv.Messages
			}
		}
		messages = append(messages, llm.NewUserMessage(text))

		out := cmd.OutOrStdout()
		p := &eventPrinter{out: out, artifactDir: chatArtifactDir, showThinking: chatShowThinking}
		if !chatPlain {
			r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
			if err != nil {
				slog.Warn("markdown rendering disabled", "error", err)
			} else {
				p.markdown = r
			}
		}
		err = rt.runner.Run(ctx, agent.Request{
			ConversationID: conversationID,
			PrincipalID:    chatPrincipal,
			Messages:       messages,
		}, p.print)
		fmt.Fprintf(cmd.ErrOrStderr(), "conversation: %s\n", conversationID)
		return err
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "conversation id to continue")
	chatCmd.Flags().StringVarP(&chatPrincipal, "principal", "p", "local", "principal the conversation belongs to")
	chatCmd.Flags().StringVar(&chatArtifactDir, "artifacts", "", "directory to write generated certificates to")
	chatCmd.Flags().BoolVar(&chatShowThinking, "thinking", false, "print thinking output")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "print certificates as raw Markdown")
}

func chatMessage(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("message is required")
	}
	return text, nil
}

type eventPrinter struct {
	out          io.Writer
	artifactDir  string
	showThinking bool
	// markdown renders artifacts for the terminal; nil prints them raw.
	markdown *glamour.TermRenderer
}

func (p *eventPrinter) print(ev agent.Event) {
	switch ev.Type {
	case agent.EventThinkingStart:
		if p.showThinking {
			fmt.Fprint(p.out, "\n[thinking] ")
		}
	case agent.EventThinkingDelta:
		if p.showThinking {
			fmt.Fprint(p.out, ev.Text)
		}
	case agent.EventTextDelta:
		fmt.Fprint(p.out, ev.Text)
	case agent.EventToolStart:
		fmt.Fprintf(p.out, "\n→ %s\n", ev.Name)
	case agent.EventToolComplete:
		fmt.Fprintf(p.out, "✓ %s\n", ev.Summary)
	case agent.EventArtifact:
		p.artifact(ev.Artifact)
	case agent.EventError:
		fmt.Fprintf(p.out, "\nerror: %s\n", ev.Error)
	case agent.EventDone:
		fmt.Fprintln(p.out)
	}
}

func (p *eventPrinter) artifact(a *agent.Artifact) {
	if a == nil {
		return
	}
	if p.artifactDir == "" {
		fmt.Fprintf(p.out, "[artifact] %s\n%s\n", a.Title, p.render(a.Content))
		return
	}
	path := filepath.Join(p.artifactDir, a.ID+".md")
	err := os.MkdirAll(p.artifactDir, 0o755)
	if err == nil {
		err = os.WriteFile(path, []byte(a.Content), 0o644)
	}
	if err != nil {
		fmt.Fprintf(p.out, "[artifact] %s: %v\n", a.Title, err)
		return
	}
	fmt.Fprintf(p.out, "[artifact] %s written to %s\n", a.Title, path)
}

func (p *eventPrinter) render(content string) string {
	if p.markdown == nil {
		return content
	}
	out, err := p.markdown.Render(content)
	if err != nil {
		return content
	}
	return out
}
