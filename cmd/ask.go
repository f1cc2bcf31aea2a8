package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/app"
	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/log"
	"github.com/docuchat/docuchat/internal/retriever"
	"github.com/docuchat/docuchat/internal/session"
)

// askOptions holds the parsed ask command line.
type askOptions struct {
	question   string
	strategy   string
	newSession bool
	check      bool
}

// parseAskArgs parses the ask command arguments. Everything that is
// not a flag becomes part of the question.
func parseAskArgs(args []string) (askOptions, error) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	opts := askOptions{}
	fs.BoolVar(&opts.newSession, "new", false, "start a fresh session")
	fs.StringVar(&opts.strategy, "strategy", chat.StrategyBasic, "retrieval strategy")
	fs.BoolVar(&opts.check, "check", false, "evaluate whether the answer is grounded in the documents")
	if err := fs.Parse(args); err != nil {
		return askOptions{}, err
	}

	opts.question = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if opts.question == "" {
		return askOptions{}, fmt.Errorf("usage: docuchat ask [--new] [--strategy name] <question>")
	}
	switch opts.strategy {
	case chat.StrategyBasic, chat.StrategyThreshold, chat.StrategyDiverse:
	default:
		return askOptions{}, fmt.Errorf("strategy %q: %w", opts.strategy, chat.ErrUnknownStrategy)
	}
	return opts, nil
}

// runAsk answers a single question from the terminal. Follow-up
// questions continue the same conversation: the current session id is
// persisted between invocations and reused until --new is passed.
func runAsk(logger log.Logger, args []string) error {
	opts, err := parseAskArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	sessionID, err := resolveSession(ctx, a, opts.newSession)
	if err != nil {
		return err
	}

	resp, err := a.Agent.ExecuteStream(ctx, sessionID, opts.question, opts.strategy,
		func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			fmt.Print(chunk.Text())
			return nil
		})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}
	fmt.Println()

	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range resp.Sources {
			if src.Page != "" {
				fmt.Printf("  - %s (page %s)\n", src.Filename, src.Page)
			} else {
				fmt.Printf("  - %s\n", src.Filename)
			}
		}
	}

	if opts.check {
		if err := runGroundingCheck(ctx, a, opts.question, resp.Answer); err != nil {
			return err
		}
	}
	return nil
}

// runGroundingCheck re-retrieves the context for the question and asks
// the model whether the answer is supported by it.
func runGroundingCheck(ctx context.Context, a *app.App, question, answer string) error {
	results, err := a.Retriever.Retrieve(ctx, question, a.Config.RetrievalTopK)
	if err != nil {
		return fmt.Errorf("retrieving context for check: %w", err)
	}

	verdict, err := a.Agent.EvaluateGrounding(ctx, question, retriever.BuildContext(results), answer)
	if err != nil {
		return fmt.Errorf("grounding check: %w", err)
	}

	fmt.Println()
	fmt.Println("Grounding check:")
	fmt.Println(verdict)
	return nil
}

// resolveSession returns the session to continue, creating a new one
// when requested or when no usable saved session exists. A saved id
// pointing at a deleted session falls back to a new session rather
// than failing the question.
func resolveSession(ctx context.Context, a *app.App, fresh bool) (uuid.UUID, error) {
	if !fresh {
		saved, err := session.LoadCurrentSessionID()
		if err != nil {
			return uuid.Nil, fmt.Errorf("reading session state: %w", err)
		}
		if saved != nil {
			if _, err := a.Sessions.Get(ctx, *saved); err == nil {
				return *saved, nil
			}
		}
	}

	sess, err := a.Sessions.Create(ctx, "Terminal chat", a.Config.ModelName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating session: %w", err)
	}
	if err := session.SaveCurrentSessionID(sess.ID); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save session state: %v\n", err)
	}
	return sess.ID, nil
}
