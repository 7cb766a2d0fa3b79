// Package mcptools exposes the job engine as MCP tools.
package mcptools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/workflow"
)

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)

// Backend is the engine surface the tools call. *engine.Engine satisfies it.
type Backend interface {
	PropertiesList(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	ProvidersGetStatus(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	IntentClassify(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobStart(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobSendEvent(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobGetState(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobRedoRoom(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobReset(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobGetSummary(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
	JobClose(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo)
}

type JobArgs struct {
	JobID string `json:"job_id" jsonschema:"required,description=Job identifier returned by start_job"`
}

type StartJobArgs struct {
	PropertyID string `json:"property_id" jsonschema:"required,description=Property to clean"`
	JobID      string `json:"job_id,omitempty" jsonschema:"description=Optional job identifier; generated when empty"`
}

type SendMessageArgs struct {
	JobID       string `json:"job_id" jsonschema:"required,description=Job identifier"`
	Message     string `json:"message,omitempty" jsonschema:"description=Chat text or photo caption such as 'kitchen before'"`
	ImagePath   string `json:"image_path,omitempty" jsonschema:"description=Local path of a photo to attach"`
	ImageBase64 string `json:"image_base64,omitempty" jsonschema:"description=Base64 photo payload; a data URL prefix is accepted"`
	RoomType    string `json:"room_type,omitempty" jsonschema:"description=Room shown in the photo; overrides the caption"`
	PhotoType   string `json:"photo_type,omitempty" jsonschema:"enum=before,enum=during,enum=after,description=Photo phase; overrides the caption"`
}

type RedoRoomArgs struct {
	JobID    string `json:"job_id" jsonschema:"required,description=Job identifier"`
	RoomType string `json:"room_type" jsonschema:"required,description=Scored room to photograph again"`
}

type ClassifyArgs struct {
	Message    string `json:"message" jsonschema:"required,description=Text to classify"`
	PropertyID string `json:"property_id,omitempty" jsonschema:"description=Property whose room names should be recognised"`
}

type NoArgs struct{}

// Register adds every job tool to s.
func Register(s *server.MCPServer, b Backend) {
	s.AddTool(mcp.NewTool("list_properties",
		mcp.WithDescription("List the properties a cleaning job can be started for, with their rooms."),
		mcp.WithInputSchema[NoArgs](),
	), wrapJSON(b.PropertiesList, func(NoArgs) any { return map[string]any{} }))

	s.AddTool(mcp.NewTool("provider_status",
		mcp.WithDescription("Show which vision model providers are configured."),
		mcp.WithInputSchema[NoArgs](),
	), wrapJSON(b.ProvidersGetStatus, func(NoArgs) any { return map[string]any{} }))

	s.AddTool(mcp.NewTool("classify_message",
		mcp.WithDescription("Extract the room and photo phase (before, during, after) from a caption."),
		mcp.WithInputSchema[ClassifyArgs](),
	), wrapJSON(b.IntentClassify, func(a ClassifyArgs) any { return a }))

	s.AddTool(mcp.NewTool("start_job",
		mcp.WithDescription(`Start a cleaning job for a property.

The job walks through: manual overview, a BEFORE photo of every room,
then an AFTER photo of every room, each scored against the manual.`),
		mcp.WithInputSchema[StartJobArgs](),
	), wrapJSON(b.JobStart, func(a StartJobArgs) any { return a }))

	s.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription(`Send a chat message to a job, optionally with a photo.

Photos need a room and phase, either from the caption ("kitchen after")
or from room_type and photo_type.`),
		mcp.WithInputSchema[SendMessageArgs](),
	), wrapSend(b))

	s.AddTool(mcp.NewTool("job_state",
		mcp.WithDescription("Show the phase, logged photos and score versions of a job."),
		mcp.WithInputSchema[JobArgs](),
	), wrapJSON(b.JobGetState, func(a JobArgs) any { return a }))

	s.AddTool(mcp.NewTool("redo_room",
		mcp.WithDescription("Discard the AFTER photo of a scored room so it can be cleaned and scored again."),
		mcp.WithInputSchema[RedoRoomArgs](),
	), wrapReply(b.JobRedoRoom, func(a RedoRoomArgs) any { return a }))

	s.AddTool(mcp.NewTool("reset_job",
		mcp.WithDescription("Start a job over, dropping all photos, scores and chat history."),
		mcp.WithInputSchema[JobArgs](),
	), wrapJSON(b.JobReset, func(a JobArgs) any { return a }))

	s.AddTool(mcp.NewTool("job_summary",
		mcp.WithDescription("Return the final summary of a completed job."),
		mcp.WithInputSchema[JobArgs](),
	), wrapSummary(b))

	s.AddTool(mcp.NewTool("close_job",
		mcp.WithDescription("Archive a job and release it."),
		mcp.WithInputSchema[JobArgs](),
	), wrapJSON(b.JobClose, func(a JobArgs) any { return a }))
}

func call[T any](ctx context.Context, request mcp.CallToolRequest, fn handlerFunc, params func(T) any) (any, *mcp.CallToolResult) {
	var args T
	if err := request.BindArguments(&args); err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	raw, err := json.Marshal(params(args))
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	result, errInfo := fn(ctx, raw)
	if errInfo != nil {
		return nil, errorResult(errInfo)
	}
	return result, nil
}

func wrapJSON[T any](fn handlerFunc, params func(T) any) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, failed := call(ctx, request, fn, params)
		if failed != nil {
			return failed, nil
		}
		return jsonResult(result), nil
	}
}

func wrapReply[T any](fn handlerFunc, params func(T) any) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, failed := call(ctx, request, fn, params)
		if failed != nil {
			return failed, nil
		}
		resp, ok := result.(workflow.Response)
		if !ok {
			return jsonResult(result), nil
		}
		return mcp.NewToolResultText(RenderResponse(resp)), nil
	}
}

func wrapSend(b Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SendMessageArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.ImagePath != "" && args.ImageBase64 == "" {
			data, err := os.ReadFile(args.ImagePath)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("read image: %v", err)), nil
			}
			args.ImageBase64 = base64.StdEncoding.EncodeToString(data)
		}
		args.ImagePath = ""
		return wrapReply(b.JobSendEvent, func(SendMessageArgs) any { return args })(ctx, request)
	}
}

func wrapSummary(b Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, failed := call(ctx, request, b.JobGetSummary, func(a JobArgs) any { return a })
		if failed != nil {
			return failed, nil
		}
		if payload, ok := result.(map[string]any); ok {
			if text := summaryText(payload["summary"]); text != "" {
				return mcp.NewToolResultText(text), nil
			}
		}
		return jsonResult(result), nil
	}
}

func errorResult(info *errinfo.ErrorInfo) *mcp.CallToolResult {
	msg := info.ErrorCode
	if info.Detail != "" {
		msg += ": " + info.Detail
	}
	if len(info.Actions) > 0 {
		msg += " (actions: " + strings.Join(info.Actions, ", ") + ")"
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v any) *mcp.CallToolResult {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(raw))
}
