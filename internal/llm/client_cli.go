package llm

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CLIClient wraps CLI-based LLM tools (Claude, Gemini, etc.), exposing the
// same Chatter interface as the HTTP client but executing shell commands.
type CLIClient struct {
	command     string
	args        []string
	model       string
	contextMode string // "stdin" or "args"
}

// CLIProviderConfig defines how to invoke a specific CLI tool.
type CLIProviderConfig struct {
	Command     string
	BaseArgs    []string
	Model       string
	ContextMode string
}

// CLIProviders holds predefined CLI provider configurations.
var CLIProviders = map[string]CLIProviderConfig{
	"claude": {
		Command:     "claude",
		BaseArgs:    []string{},
		Model:       "claude-3-7-sonnet",
		ContextMode: "stdin",
	},
	"gemini": {
		Command:     "gemini",
		BaseArgs:    []string{"chat"},
		Model:       "gemini-pro",
		ContextMode: "args",
	},
	"sgpt": {
		Command:     "sgpt",
		BaseArgs:    []string{"--no-cache"},
		Model:       "gpt-4",
		ContextMode: "args",
	},
}

// NewCLIClient creates a new CLI-based LLM client. Unknown providers are
// treated as custom commands reading the prompt from stdin.
func NewCLIClient(provider, model string) (*CLIClient, error) {
	if cfg, exists := CLIProviders[provider]; exists {
		if model != "" {
			cfg.Model = model
		}
		return &CLIClient{
			command:     cfg.Command,
			args:        cfg.BaseArgs,
			model:       cfg.Model,
			contextMode: cfg.ContextMode,
		}, nil
	}

	return &CLIClient{
		command:     provider,
		args:        []string{},
		model:       model,
		contextMode: "stdin",
	}, nil
}

// Chat sends a chat completion request via the CLI tool.
func (c *CLIClient) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	prompt := c.formatMessages(messages)

	cmdArgs := append([]string{}, c.args...)

	var cmd *exec.Cmd
	if c.contextMode == "stdin" {
		cmd = exec.CommandContext(ctx, c.command, cmdArgs...)
		cmd.Stdin = strings.NewReader(prompt)
	} else {
		cmdArgs = append(cmdArgs, prompt)
		cmd = exec.CommandContext(ctx, c.command, cmdArgs...)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("CLI command failed: %w (output: %s)", err, string(output))
	}

	return &ChatResponse{
		ID:      generateID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   c.model,
		Choices: []Choice{
			{
				Index: 0,
				Message: Message{
					Role:    "assistant",
					Content: strings.TrimSpace(string(output)),
				},
			},
		},
	}, nil
}

// GetModel returns the configured model.
func (c *CLIClient) GetModel() string {
	return c.model
}

// formatMessages flattens the message array into a single prompt string
// for tools that expect plain text input.
func (c *CLIClient) formatMessages(messages []Message) string {
	var sb strings.Builder

	for i, msg := range messages {
		if msg.Role == "system" {
			sb.WriteString("## Context\n")
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
			continue
		}

		if msg.Role == "user" {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(msg.Content)
		} else if msg.Role == "assistant" {
			sb.WriteString("\n\nAssistant: ")
			sb.WriteString(msg.Content)
		}
	}

	return sb.String()
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "chatcmpl-" + hex.EncodeToString(b)
}

// IsCLIProvider reports whether a provider string selects the CLI client.
// Format: "cli:command" or a known provider name.
func IsCLIProvider(provider string) bool {
	if _, exists := CLIProviders[provider]; exists {
		return true
	}
	return strings.HasPrefix(provider, "cli:")
}

// ParseCLIProvider strips the "cli:" prefix from a provider string.
func ParseCLIProvider(provider string) string {
	return strings.TrimPrefix(provider, "cli:")
}
