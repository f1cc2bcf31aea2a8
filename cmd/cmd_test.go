package cmd

import (
	"errors"
	"testing"

	"github.com/docuchat/docuchat/internal/chat"
)

func TestParseAskArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantErr      bool
		wantQuestion string
		wantStrategy string
		wantNew      bool
	}{
		{
			name:         "plain question",
			args:         []string{"what", "is", "pgvector?"},
			wantQuestion: "what is pgvector?",
			wantStrategy: chat.StrategyBasic,
		},
		{
			name:         "new session flag",
			args:         []string{"--new", "hello"},
			wantQuestion: "hello",
			wantStrategy: chat.StrategyBasic,
			wantNew:      true,
		},
		{
			name:         "explicit strategy",
			args:         []string{"--strategy", "diverse", "compare", "the", "options"},
			wantQuestion: "compare the options",
			wantStrategy: chat.StrategyDiverse,
		},
		{
			name:    "missing question",
			args:    []string{"--new"},
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			args:    []string{"--strategy", "psychic", "hello"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseAskArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAskArgs(%v): %v", tt.args, err)
			}
			if opts.question != tt.wantQuestion {
				t.Errorf("question = %q, want %q", opts.question, tt.wantQuestion)
			}
			if opts.strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", opts.strategy, tt.wantStrategy)
			}
			if opts.newSession != tt.wantNew {
				t.Errorf("newSession = %v, want %v", opts.newSession, tt.wantNew)
			}
		})
	}
}

func TestParseAskArgsUnknownStrategyError(t *testing.T) {
	_, err := parseAskArgs([]string{"--strategy", "psychic", "hello"})
	if !errors.Is(err, chat.ErrUnknownStrategy) {
		t.Errorf("err = %v, want ErrUnknownStrategy", err)
	}
}
