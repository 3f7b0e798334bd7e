package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Parameter locations.
const (
	InPath  = "path"
	InQuery = "query"
	InJSON  = "json" // collected into the JSON request body
	InBody  = "body" // raw JSON request body
)

// Parameter describes one tool argument and where it goes in the API call.
type Parameter struct {
	Name        string
	In          string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// ToolOperation holds the data needed to proxy a tool call.
type ToolOperation struct {
	Name        string
	Description string
	Method      string
	Path        string // URL path template with {param} placeholders
	Parameters  []Parameter
}

var idParam = Parameter{Name: "id", In: InPath, Description: "Instance id", Required: true}

var statusEnum = []string{
	"draft", "ready", "in_progress", "active", "active_with_errors",
	"deactivate", "deactivating", "reprovision", "complete", "error",
}

// Operations lists every API operation exposed as a tool.
var Operations = []ToolOperation{
	{
		Name:        "list_provisions",
		Description: "List provision instances, optionally filtered by a comma separated status list.",
		Method:      "GET",
		Path:        "/api/v1/provisions",
		Parameters: []Parameter{
			{Name: "status", In: InQuery, Description: "Comma separated statuses"},
			{Name: "limit", In: InQuery, Type: "integer", Description: "Page size"},
			{Name: "cursor", In: InQuery, Description: "Cursor from the previous page"},
		},
	},
	{
		Name:        "get_provision",
		Description: "Get a provision instance with its status and fields.",
		Method:      "GET",
		Path:        "/api/v1/provisions/{id}",
		Parameters:  []Parameter{idParam},
	},
	{
		Name:        "create_provision",
		Description: "Create a provision instance in draft.",
		Method:      "POST",
		Path:        "/api/v1/provisions",
		Parameters: []Parameter{
			{Name: "provision_name", In: InJSON, Description: "Provision Name"},
			{Name: "event_id", In: InJSON, Description: "Event ID"},
			{Name: "source_element", In: InJSON, Description: "Event manager element as <dmaId>/<elementId>"},
			{Name: "conviva", In: InJSON, Description: "Conviva child instance id"},
			{Name: "tag", In: InJSON, Description: "TAG child instance id"},
			{Name: "touchstream", In: InJSON, Description: "Touchstream child instance id"},
		},
	},
	{
		Name:        "start_provision",
		Description: "Start the provisioning process for a draft provision.",
		Method:      "POST",
		Path:        "/api/v1/provisions/{id}/start",
		Parameters: []Parameter{
			idParam,
			{Name: "process", In: InJSON, Description: "Process name"},
			{Name: "key_field", In: InJSON, Description: "Field holding the business key"},
			{Name: "transition", In: InJSON, Description: "Transition to apply, defaults to draft_to_ready"},
		},
	},
	{
		Name:        "provision_action",
		Description: "Press a lifecycle button on a provision.",
		Method:      "POST",
		Path:        "/api/v1/provisions/{id}/actions",
		Parameters: []Parameter{
			idParam,
			{Name: "action", In: InJSON, Required: true, Description: "Action to request",
				Enum: []string{"provision", "deactivate", "reprovision", "complete-provision"}},
		},
	},
	{
		Name:        "evaluate_provision",
		Description: "Re-run status aggregation for a provision.",
		Method:      "POST",
		Path:        "/api/v1/provisions/{id}/evaluate",
		Parameters:  []Parameter{idParam},
	},
	{
		Name:        "delete_provision",
		Description: "Rebuild a provision: delete its children and the provision itself and reset the event row.",
		Method:      "DELETE",
		Path:        "/api/v1/provisions/{id}",
		Parameters:  []Parameter{idParam},
	},
	{
		Name:        "provision_tokens",
		Description: "List the process tokens of a provision.",
		Method:      "GET",
		Path:        "/api/v1/provisions/{id}/tokens",
		Parameters:  []Parameter{idParam},
	},
	{
		Name:        "provision_logs",
		Description: "List the newest log records of a provision.",
		Method:      "GET",
		Path:        "/api/v1/provisions/{id}/logs",
		Parameters: []Parameter{
			idParam,
			{Name: "limit", In: InQuery, Type: "integer", Description: "Maximum number of records"},
		},
	},
	{
		Name:        "list_instances",
		Description: "List child instances of one definition.",
		Method:      "GET",
		Path:        "/api/v1/instances",
		Parameters: []Parameter{
			{Name: "definition", In: InQuery, Required: true, Description: "Instance definition",
				Enum: []string{"conviva", "tag", "touchstream", "tag_scan", "tag_channel", "mediatailor"}},
			{Name: "limit", In: InQuery, Type: "integer", Description: "Page size"},
			{Name: "cursor", In: InQuery, Description: "Cursor from the previous page"},
		},
	},
	{
		Name:        "get_instance",
		Description: "Get a child instance.",
		Method:      "GET",
		Path:        "/api/v1/instances/{id}",
		Parameters:  []Parameter{idParam},
	},
	{
		Name:        "create_instance",
		Description: "Create a child instance.",
		Method:      "POST",
		Path:        "/api/v1/instances",
		Parameters: []Parameter{
			{Name: "body", In: InBody, Required: true,
				Description: `Request body as JSON, e.g. {"definition":"tag","status":"ready","fields":{}}`},
		},
	},
	{
		Name:        "transition_instance",
		Description: "Apply a named status transition to a child instance.",
		Method:      "POST",
		Path:        "/api/v1/instances/{id}/transitions",
		Parameters: []Parameter{
			idParam,
			{Name: "transition", In: InJSON, Required: true, Description: "Transition name, e.g. inprogress_to_active"},
		},
	},
}

func operationByName(name string) (ToolOperation, bool) {
	for _, op := range Operations {
		if op.Name == name {
			return op, true
		}
	}
	return ToolOperation{}, false
}

// BuildTools generates the MCP tools for every enabled operation.
func BuildTools(cfg *Config, proxyFn func(op ToolOperation) server.ToolHandlerFunc) []server.ServerTool {
	var tools []server.ServerTool
	for _, op := range Operations {
		if cfg.disabled(op.Name) {
			continue
		}

		override, hasOverride := cfg.Overrides[op.Name]
		desc := op.Description
		if hasOverride && override.Description != "" {
			desc = override.Description
		}

		toolOpts := []mcp.ToolOption{mcp.WithDescription(desc)}
		toolOpts = append(toolOpts, buildAnnotations(op.Method, cfg, override, hasOverride)...)
		toolOpts = append(toolOpts, buildParams(op.Parameters)...)

		tools = append(tools, server.ServerTool{
			Tool:    mcp.NewTool(op.Name, toolOpts...),
			Handler: proxyFn(op),
		})
	}
	return tools
}

// buildAnnotations creates MCP annotation options from config defaults and overrides.
func buildAnnotations(method string, cfg *Config, override ToolOverride, hasOverride bool) []mcp.ToolOption {
	var opts []mcp.ToolOption

	defaults := cfg.Defaults[method]
	readOnly := defaults.ReadOnly
	destructive := defaults.Destructive
	idempotent := defaults.Idempotent

	if hasOverride {
		if override.ReadOnly != nil {
			readOnly = override.ReadOnly
		}
		if override.Destructive != nil {
			destructive = override.Destructive
		}
		if override.Idempotent != nil {
			idempotent = override.Idempotent
		}
	}

	if readOnly != nil {
		opts = append(opts, mcp.WithReadOnlyHintAnnotation(*readOnly))
	}
	if destructive != nil {
		opts = append(opts, mcp.WithDestructiveHintAnnotation(*destructive))
	}
	if idempotent != nil {
		opts = append(opts, mcp.WithIdempotentHintAnnotation(*idempotent))
	}
	return opts
}

func buildParams(params []Parameter) []mcp.ToolOption {
	var opts []mcp.ToolOption
	for _, p := range params {
		popts := paramOpts(p)
		if p.Type == "integer" {
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
			continue
		}
		opts = append(opts, mcp.WithString(p.Name, popts...))
	}
	return opts
}

func paramOpts(p Parameter) []mcp.PropertyOption {
	desc := p.Description
	if desc == "" {
		desc = p.Name
	}
	opts := []mcp.PropertyOption{mcp.Description(desc)}
	if p.Required {
		opts = append(opts, mcp.Required())
	}
	if len(p.Enum) > 0 {
		opts = append(opts, mcp.Enum(p.Enum...))
	}
	return opts
}
