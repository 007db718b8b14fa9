package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/telemetry"
)

// DefaultAccountName is used when /token is given only a token
const DefaultAccountName = "default"

// DefaultHelpText is shown for /help when no help text is configured
const DefaultHelpText = `Commands:
/token <account> <token> - add or update an account (one argument uses account "default")
/accounts - list accounts and connection state
/reconnect <account> - reconnect now with a fresh retry budget
/remove <account> - stop monitoring and forget the account
/close - stop and forget every account
/triggers <account> - show trigger words
/triggers <account> <w1, w2 ...> - add trigger words
/triggers <account> remove <w1 ...> - remove added trigger words
/triggers <account> clear - reset to the default trigger words
/sendall <account> on|off - forward every inbound message`

// CommandService executes operator chat commands against the registry
type CommandService struct {
	registry *Registry
	helpText string
}

// NewCommandService creates a new command service
func NewCommandService(registry *Registry, helpText string) *CommandService {
	if strings.TrimSpace(helpText) == "" {
		helpText = DefaultHelpText
	}
	return &CommandService{
		registry: registry,
		helpText: helpText,
	}
}

// Handle executes one command and returns the reply text
func (s *CommandService) Handle(ctx context.Context, operatorID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "Send /help for information"
	}

	cmd := strings.ToLower(fields[0])
	// "/token@bot" style
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		telemetry.CountCommand(cmd)
		return "Welcome! Register an account with /token <account> <token>, or send /help for details"
	case "/help":
		telemetry.CountCommand(cmd)
		return s.helpText
	case "/token":
		telemetry.CountCommand(cmd)
		return s.handleToken(ctx, operatorID, args)
	case "/accounts":
		telemetry.CountCommand(cmd)
		return s.handleAccounts(operatorID)
	case "/close":
		telemetry.CountCommand(cmd)
		n, err := s.registry.CloseAll(ctx, operatorID)
		if err != nil {
			return fmt.Sprintf("Closed %d sessions, but failed to update settings: %v", n, err)
		}
		return fmt.Sprintf("Closed %d sessions", n)
	case "/remove":
		telemetry.CountCommand(cmd)
		name, ok := accountArg(args)
		if !ok {
			return "Usage: /remove <account>"
		}
		if err := s.registry.Remove(ctx, operatorID, name); err != nil {
			return errorReply(name, err)
		}
		return fmt.Sprintf("Account '%s' removed", name)
	case "/reconnect":
		telemetry.CountCommand(cmd)
		name, ok := accountArg(args)
		if !ok {
			return "Usage: /reconnect <account>"
		}
		if err := s.registry.Reconnect(operatorID, name); err != nil {
			return errorReply(name, err)
		}
		return fmt.Sprintf("Reconnecting '%s'", name)
	case "/triggers":
		telemetry.CountCommand(cmd)
		return s.handleTriggers(ctx, operatorID, args)
	case "/sendall":
		telemetry.CountCommand(cmd)
		return s.handleSendAll(ctx, operatorID, args)
	default:
		return "Send /help for information"
	}
}

func (s *CommandService) handleToken(ctx context.Context, operatorID int64, args []string) string {
	var name, token string
	switch len(args) {
	case 0:
		return "Token not found. Usage: /token <account> <token>"
	case 1:
		name, token = DefaultAccountName, args[0]
	default:
		name, token = args[0], args[1]
	}

	if _, err := s.registry.Register(ctx, operatorID, name, token); err != nil {
		return errorReply(name, err)
	}
	return fmt.Sprintf("Token saved for account '%s', connecting...", name)
}

func (s *CommandService) handleAccounts(operatorID int64) string {
	list := s.registry.ListAccounts(operatorID)
	if len(list) == 0 {
		return "No accounts registered. Use /token <account> <token>"
	}

	var b strings.Builder
	b.WriteString("Accounts:")
	for _, a := range list {
		fmt.Fprintf(&b, "\n- %s: %s", a.Name, a.State)
		if a.Attempts > 0 {
			fmt.Fprintf(&b, " (attempt %d)", a.Attempts)
		}
		if a.ForwardAll {
			b.WriteString(", forwarding all")
		}
		if len(a.Triggers) > 0 {
			fmt.Fprintf(&b, ", extra triggers: %s", strings.Join(a.Triggers, ", "))
		}
		if a.LastSender != "" {
			fmt.Fprintf(&b, ", last sender: %s", a.LastSender)
		}
	}
	return b.String()
}

func (s *CommandService) handleTriggers(ctx context.Context, operatorID int64, args []string) string {
	name, ok := accountArg(args)
	if !ok {
		return "Usage: /triggers <account> [words | remove <words> | clear]"
	}
	rest := args[1:]

	var (
		ts  domain.TriggerSet
		err error
	)
	switch {
	case len(rest) == 0:
		ts, err = s.registry.TriggerWords(operatorID, name)
		if err != nil {
			return errorReply(name, err)
		}
		return fmt.Sprintf("Current triggers for '%s': %s", name, strings.Join(ts.Effective(), ", "))
	case strings.EqualFold(rest[0], "clear") && len(rest) == 1:
		ts, err = s.registry.ClearTriggers(ctx, operatorID, name)
	case strings.EqualFold(rest[0], "remove"):
		words := domain.SplitTriggerWords(strings.Join(rest[1:], " "))
		if len(words) == 0 {
			return "Usage: /triggers <account> remove <words>"
		}
		ts, err = s.registry.RemoveTriggers(ctx, operatorID, name, words)
	default:
		ts, err = s.registry.AddTriggers(ctx, operatorID, name, domain.SplitTriggerWords(strings.Join(rest, " ")))
	}
	if err != nil {
		return errorReply(name, err)
	}
	return fmt.Sprintf("Triggers for '%s' set to: %s", name, strings.Join(ts.Effective(), ", "))
}

func (s *CommandService) handleSendAll(ctx context.Context, operatorID int64, args []string) string {
	if len(args) != 2 {
		return "Usage: /sendall <account> on|off"
	}
	name := args[0]

	var enabled bool
	switch strings.ToLower(args[1]) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return "Usage: /sendall <account> on|off"
	}

	if err := s.registry.SetForwardAll(ctx, operatorID, name, enabled); err != nil {
		return errorReply(name, err)
	}
	if enabled {
		return fmt.Sprintf("All inbound messages for '%s' will be forwarded", name)
	}
	return fmt.Sprintf("Only matched messages for '%s' will be forwarded", name)
}

func accountArg(args []string) (string, bool) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", false
	}
	return args[0], true
}

func errorReply(name string, err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		return "Token not found. Usage: /token <account> <token>"
	case errors.Is(err, domain.ErrAccountNotFound):
		return fmt.Sprintf("Account '%s' not found", name)
	case errors.Is(err, domain.ErrSessionNotFound):
		return fmt.Sprintf("No active session for '%s'", name)
	default:
		fmt.Printf("[Commands] Error for '%s': %v\n", name, err)
		return fmt.Sprintf("Error: %v", err)
	}
}
