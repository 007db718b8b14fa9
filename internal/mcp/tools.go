package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tools exposes account management of the bridge as MCP tools
type Tools struct {
	client          *Client
	defaultOperator int64
}

// NewTools creates the tool set. defaultOperator is used when a call omits operator_id.
func NewTools(client *Client, defaultOperator int64) *Tools {
	return &Tools{client: client, defaultOperator: defaultOperator}
}

// NewServer creates an MCP server with every watch tool registered
func NewServer(tools *Tools, version string) *gomcp.Server {
	server := gomcp.NewServer(&gomcp.Implementation{
		Name:    "fanwatch-tools",
		Version: version,
	}, nil)

	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "watch_list_accounts",
		Description: "List the monitored accounts of an operator with their connection state, added trigger words and last seen sender.",
	}, tools.ListAccounts)

	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "watch_reconnect_account",
		Description: "Force a monitored account to reconnect to the upstream with a fresh attempt budget. Use after a 'Connection failed' notification.",
	}, tools.ReconnectAccount)

	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "watch_get_triggers",
		Description: "Get the trigger words of an account. Inbound messages containing any of them are forwarded as alerts.",
	}, tools.GetTriggers)

	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "watch_update_triggers",
		Description: "Change the trigger words of an account. Applied in order: clear (reset to base words), remove, add.",
	}, tools.UpdateTriggers)

	gomcp.AddTool(server, &gomcp.Tool{
		Name:        "watch_set_forward_all",
		Description: "Enable or disable forwarding of every inbound chat message for an account.",
	}, tools.SetForwardAll)

	return server
}

// OperatorInput selects the operator
type OperatorInput struct {
	OperatorID int64 `json:"operator_id,omitempty" jsonschema:"Operator id. Defaults to the configured operator."`
}

// AccountInput selects one account of an operator
type AccountInput struct {
	OperatorID int64  `json:"operator_id,omitempty" jsonschema:"Operator id. Defaults to the configured operator."`
	Account    string `json:"account" jsonschema:"Account name as registered with /token"`
}

// ListAccountsOutput contains the account listing
type ListAccountsOutput struct {
	Accounts []AccountStatus `json:"accounts"`
	Error    string          `json:"error,omitempty"`
}

// ResultOutput reports the outcome of a state-changing tool
type ResultOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TriggersOutput contains an account's trigger words
type TriggersOutput struct {
	Effective []string `json:"effective"`
	Added     []string `json:"added"`
	Error     string   `json:"error,omitempty"`
}

// UpdateTriggersInput is the input for watch_update_triggers
type UpdateTriggersInput struct {
	OperatorID int64    `json:"operator_id,omitempty" jsonschema:"Operator id. Defaults to the configured operator."`
	Account    string   `json:"account" jsonschema:"Account name as registered with /token"`
	Add        []string `json:"add,omitempty" jsonschema:"Words to add"`
	Remove     []string `json:"remove,omitempty" jsonschema:"Operator-added words to remove"`
	Clear      bool     `json:"clear,omitempty" jsonschema:"Reset to the base trigger words first"`
}

// SetForwardAllInput is the input for watch_set_forward_all
type SetForwardAllInput struct {
	OperatorID int64  `json:"operator_id,omitempty" jsonschema:"Operator id. Defaults to the configured operator."`
	Account    string `json:"account" jsonschema:"Account name as registered with /token"`
	Enabled    bool   `json:"enabled" jsonschema:"Forward every inbound message when true"`
}

// ListAccounts handles watch_list_accounts
func (t *Tools) ListAccounts(ctx context.Context, req *gomcp.CallToolRequest, input OperatorInput) (*gomcp.CallToolResult, ListAccountsOutput, error) {
	accounts, err := t.client.ListAccounts(ctx, t.operator(input.OperatorID))
	if err != nil {
		return nil, ListAccountsOutput{Accounts: []AccountStatus{}, Error: err.Error()}, nil
	}
	return nil, ListAccountsOutput{Accounts: accounts}, nil
}

// ReconnectAccount handles watch_reconnect_account
func (t *Tools) ReconnectAccount(ctx context.Context, req *gomcp.CallToolRequest, input AccountInput) (*gomcp.CallToolResult, ResultOutput, error) {
	if input.Account == "" {
		return nil, ResultOutput{Error: "account is required"}, nil
	}
	if err := t.client.Reconnect(ctx, t.operator(input.OperatorID), input.Account); err != nil {
		return nil, ResultOutput{Error: err.Error()}, nil
	}
	return nil, ResultOutput{Success: true, Message: fmt.Sprintf("Reconnecting '%s'", input.Account)}, nil
}

// GetTriggers handles watch_get_triggers
func (t *Tools) GetTriggers(ctx context.Context, req *gomcp.CallToolRequest, input AccountInput) (*gomcp.CallToolResult, TriggersOutput, error) {
	if input.Account == "" {
		return nil, TriggersOutput{Error: "account is required"}, nil
	}
	ts, err := t.client.GetTriggers(ctx, t.operator(input.OperatorID), input.Account)
	if err != nil {
		return nil, TriggersOutput{Error: err.Error()}, nil
	}
	return nil, TriggersOutput{Effective: ts.Effective, Added: ts.Added}, nil
}

// UpdateTriggers handles watch_update_triggers
func (t *Tools) UpdateTriggers(ctx context.Context, req *gomcp.CallToolRequest, input UpdateTriggersInput) (*gomcp.CallToolResult, TriggersOutput, error) {
	if input.Account == "" {
		return nil, TriggersOutput{Error: "account is required"}, nil
	}
	if !input.Clear && len(input.Add) == 0 && len(input.Remove) == 0 {
		return nil, TriggersOutput{Error: "nothing to change: set add, remove or clear"}, nil
	}
	update := TriggersUpdate{Add: input.Add, Remove: input.Remove, Clear: input.Clear}
	ts, err := t.client.UpdateTriggers(ctx, t.operator(input.OperatorID), input.Account, update)
	if err != nil {
		return nil, TriggersOutput{Error: err.Error()}, nil
	}
	return nil, TriggersOutput{Effective: ts.Effective, Added: ts.Added}, nil
}

// SetForwardAll handles watch_set_forward_all
func (t *Tools) SetForwardAll(ctx context.Context, req *gomcp.CallToolRequest, input SetForwardAllInput) (*gomcp.CallToolResult, ResultOutput, error) {
	if input.Account == "" {
		return nil, ResultOutput{Error: "account is required"}, nil
	}
	if err := t.client.SetForwardAll(ctx, t.operator(input.OperatorID), input.Account, input.Enabled); err != nil {
		return nil, ResultOutput{Error: err.Error()}, nil
	}
	msg := "Only matched messages will be forwarded"
	if input.Enabled {
		msg = "All inbound messages will be forwarded"
	}
	return nil, ResultOutput{Success: true, Message: msg}, nil
}

func (t *Tools) operator(id int64) int64 {
	if id != 0 {
		return id
	}
	return t.defaultOperator
}
