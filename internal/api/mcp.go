package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/zombor/invoice-processor/internal/invoice"
)

// mcpTools holds the handlers behind the MCP tools
type mcpTools struct {
	service *Service
	info    ServerInfo
}

// NewMCPServer exposes invoice processing as MCP tools
func NewMCPServer(service *Service, info ServerInfo) *server.MCPServer {
	info = info.withDefaults()
	t := &mcpTools{service: service, info: info}

	s := server.NewMCPServer(info.Name, info.Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Extracts structured data from invoice files. "+
			"Provide a base64-encoded invoice (PDF/PNG/JPG/etc.) and get back "+
			"vendor info, client info, line items, totals, and payment details."),
	)

	s.AddTool(mcp.NewTool("process_invoice",
		mcp.WithDescription("Extract structured data from an invoice file. "+
			"Returns pages_processed and the full structured invoice data."),
		mcp.WithString("file_base64",
			mcp.Required(),
			mcp.Description("Base64-encoded invoice file content"),
		),
		mcp.WithString("filename",
			mcp.Required(),
			mcp.Description("Original filename including extension (e.g. invoice.pdf), used to detect the file type"),
		),
	), t.processInvoice)

	s.AddTool(mcp.NewTool("get_supported_formats",
		mcp.WithDescription("Returns the file formats and size limit supported by this agent"),
	), t.supportedFormats)

	return s
}

// NewMCPHTTPHandler serves an MCP server over streamable HTTP
func NewMCPHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

// ServeMCPStdio serves an MCP server over stdin/stdout until stdin closes
func ServeMCPStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type processInvoiceResult struct {
	InvoiceID      string           `json:"invoice_id"`
	PagesProcessed int              `json:"pages_processed"`
	Data           *invoice.Invoice `json:"data"`
}

func (t *mcpTools) processInvoice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := req.RequireString("file_base64")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", KindInvalidFile, err)), nil
	}
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", KindInvalidFile, err)), nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: decoding base64: %v", KindInvalidFile, err)), nil
	}

	record, err := t.service.ProcessInvoice(ctx, filename, data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", ErrorKind(err), err)), nil
	}

	return jsonResult(processInvoiceResult{
		InvoiceID:      record.ID,
		PagesProcessed: record.PagesProcessed,
		Data:           record.Data,
	})
}

func (t *mcpTools) supportedFormats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"supported_formats": AllowedExtensions,
		"max_file_size_mb":  t.service.MaxFileSizeMB(),
		"provider":          t.info.Provider,
		"model":             t.info.Model,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
