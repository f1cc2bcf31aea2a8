package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/app"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/log"
	"github.com/docuchat/docuchat/internal/session"
)

// runSessions routes the sessions subcommands: list, show, delete.
func runSessions(logger log.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: docuchat sessions <list|show|delete>")
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

	switch args[0] {
	case "list":
		return runSessionsList(ctx, a)
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: docuchat sessions show <id>")
		}
		return runSessionsShow(ctx, a, args[1])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: docuchat sessions delete <id>")
		}
		return runSessionsDelete(ctx, a, args[1])
	default:
		return fmt.Errorf("unknown sessions subcommand: %s", args[0])
	}
}

func runSessionsList(ctx context.Context, a *app.App) error {
	sessions, err := a.Sessions.List(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Start one with 'docuchat ask <question>'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			s.ID, s.Title, s.MessageCount, formatTime(s.UpdatedAt))
	}
	return w.Flush()
}

func runSessionsShow(ctx context.Context, a *app.App, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session id: %s", rawID)
	}

	sess, err := a.Sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return fmt.Errorf("session %s not found", id)
		}
		return fmt.Errorf("loading session: %w", err)
	}
	messages, err := a.Sessions.Messages(ctx, id, session.MaxHistoryLimit, 0)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Title: %s\n", sess.Title)
	fmt.Printf("Model: %s\n", sess.ModelName)
	fmt.Printf("Created: %s\n", formatTime(sess.CreatedAt))
	fmt.Printf("Updated: %s\n", formatTime(sess.UpdatedAt))
	fmt.Printf("Messages: %d\n", len(messages))
	fmt.Println()

	for _, msg := range messages {
		role := "You"
		if msg.Role == session.RoleModel {
			role = "DocuChat"
		}
		fmt.Printf("%s> %s\n\n", role, msg.Content)
	}
	return nil
}

func runSessionsDelete(ctx context.Context, a *app.App, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session id: %s", rawID)
	}

	if err := a.Sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return fmt.Errorf("session %s not found", id)
		}
		return fmt.Errorf("deleting session: %w", err)
	}

	// Drop the saved terminal session if it pointed at the deleted one.
	if saved, err := session.LoadCurrentSessionID(); err == nil && saved != nil && *saved == id {
		_ = session.ClearCurrentSessionID()
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
