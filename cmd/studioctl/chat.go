package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/markdown"
	"github.com/ashureev/agent-studio/internal/render"
)

type chatFlags struct {
	backend     string
	chatPath    string
	agentFile   string
	timeout     time.Duration
	typingDelay time.Duration
	width       int
	interactive bool
	debug       bool
	raw         bool
}

func newChatCmd() *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message to the agent backend and render the reply",
		Long: `Send a message to the agent backend and render the reply.

Without --backend (or BACKEND_URL) the reply comes from the local preview
fallback. Use -i for a multi-turn conversation read from stdin.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if !flags.interactive && len(args) == 0 {
				return errors.New("a message is required unless --interactive is set")
			}
			return nil
		},
		RunE: flags.run,
	}
	cmd.Flags().StringVar(&flags.backend, "backend", os.Getenv("BACKEND_URL"), "Agent backend base URL")
	cmd.Flags().StringVar(&flags.chatPath, "chat-path", "/api/agent/chat", "Chat route on the backend")
	cmd.Flags().StringVar(&flags.agentFile, "agent", "", "YAML file with the draft agent configuration")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "Time to wait for response headers")
	cmd.Flags().DurationVar(&flags.typingDelay, "typing-delay", 0, "Delay between fallback tokens")
	cmd.Flags().IntVarP(&flags.width, "width", "w", defaultWidth, "Terminal width")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "Read messages from stdin until EOF or /exit")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Print the debug log after each reply")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Echo the reply text as it streams")
	return cmd
}

func (f *chatFlags) run(cmd *cobra.Command, args []string) error {
	draft, err := loadDraft(f.agentFile)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	var live chat.Transport
	if f.backend != "" {
		transport, err := chat.NewHTTPTransport(f.backend, f.chatPath,
			chat.WithResponseTimeout(f.timeout),
			chat.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		live = transport
	}
	streamer := chat.NewStreamer(live, chat.Fallback{TypingDelay: f.typingDelay}, logger)
	session := chat.NewSession("cli", streamer, logger)
	renderer := render.New(f.width)

	if !f.interactive {
		return f.exchange(cmd, session, renderer, draft, strings.Join(args, " "))
	}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		if err := f.exchange(cmd, session, renderer, draft, strings.Join(args, " ")); err != nil {
			return err
		}
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			session = chat.NewSession("cli", streamer, logger)
			fmt.Fprintln(out, "conversation cleared")
			continue
		}
		if err := f.exchange(cmd, session, renderer, draft, line); err != nil {
			return err
		}
		if cmd.Context().Err() != nil {
			return nil
		}
	}
}

func (f *chatFlags) exchange(cmd *cobra.Command, session *chat.Session, renderer *render.Renderer, draft domain.AgentDraft, text string) error {
	out := cmd.OutOrStdout()
	echo := &rawEcho{w: out}

	var hooks chat.Hooks
	if f.raw {
		hooks.OnUpdate = func(u chat.Update) { echo.update(u.Message.Content) }
	}
	debugStart := session.DebugLog().Len()

	outcome, err := session.Send(cmd.Context(), chat.Input{Text: text, Draft: draft}, hooks)
	if err != nil {
		return err
	}
	if f.raw {
		fmt.Fprint(out, "\n\n")
	}

	msgs := session.Messages()
	reply := msgs[len(msgs)-1].Content
	if outcome.Fallback {
		fmt.Fprintln(out, renderer.Spans([]markdown.Span{markdown.Italic("preview mode: backend unavailable")}))
	}
	fmt.Fprintln(out, renderer.Render(markdown.Build(reply)))

	if f.debug {
		entries := session.DebugLog().Entries()
		fmt.Fprintln(out, renderer.DebugLog(entries[debugStart:]))
	}
	return nil
}

// rawEcho prints only the part of each update that was not printed before.
// Updates that rewrite earlier text (such as a fallback switch) start over on
// a new line.
type rawEcho struct {
	w       io.Writer
	printed string
}

func (e *rawEcho) update(content string) {
	if strings.HasPrefix(content, e.printed) {
		fmt.Fprint(e.w, content[len(e.printed):])
	} else {
		fmt.Fprint(e.w, "\n"+content)
	}
	e.printed = content
}

func loadDraft(path string) (domain.AgentDraft, error) {
	var draft domain.AgentDraft
	if path == "" {
		return draft, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return draft, fmt.Errorf("read agent file: %w", err)
	}
	if err := yaml.Unmarshal(data, &draft); err != nil {
		return draft, fmt.Errorf("parse agent file %s: %w", path, err)
	}
	if err := draft.Validate(); err != nil {
		return draft, err
	}
	return draft, nil
}
