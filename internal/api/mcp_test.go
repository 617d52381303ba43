package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-processor/internal/extraction"
)

func toolText(result *mcp.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP tools", func() {
	var (
		processor *mockProcessor
		tools     *mcpTools
		ctx       context.Context
	)

	BeforeEach(func() {
		processor = newMockProcessor()
		service := NewServiceWithDeps(processor, newMockDB(), newMockStorage(),
			Options{MaxFileSizeMB: 5}, &mockIDGenerator{ids: []string{"inv-1"}}, &mockTimeSource{now: time.Now()})
		tools = &mcpTools{service: service, info: ServerInfo{Provider: "fake", Model: "fake-model"}}
		ctx = context.Background()
	})

	call := func(args map[string]any) *mcp.CallToolResult {
		req := mcp.CallToolRequest{}
		req.Params.Name = "process_invoice"
		req.Params.Arguments = args
		result, err := tools.processInvoice(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	Describe("process_invoice", func() {
		It("returns the invoice as JSON text", func() {
			result := call(map[string]any{
				"file_base64": base64.StdEncoding.EncodeToString([]byte("%PDF")),
				"filename":    "invoice.pdf",
			})
			Expect(result.IsError).To(BeFalse())

			var out map[string]any
			Expect(json.Unmarshal([]byte(toolText(result)), &out)).To(Succeed())
			Expect(out["invoice_id"]).To(Equal("inv-1"))
			Expect(out["pages_processed"]).To(BeNumerically("==", 1))
			Expect(out["data"]).To(HaveKeyWithValue("invoice_number", "INV-001"))
		})

		It("requires the file contents", func() {
			result := call(map[string]any{"filename": "invoice.pdf"})
			Expect(result.IsError).To(BeTrue())
			Expect(toolText(result)).To(HavePrefix(KindInvalidFile))
			Expect(processor.callCount()).To(Equal(0))
		})

		It("requires the filename", func() {
			result := call(map[string]any{"file_base64": "JVBERg=="})
			Expect(result.IsError).To(BeTrue())
			Expect(processor.callCount()).To(Equal(0))
		})

		It("rejects invalid base64", func() {
			result := call(map[string]any{"file_base64": "not base64!", "filename": "invoice.pdf"})
			Expect(result.IsError).To(BeTrue())
			Expect(toolText(result)).To(ContainSubstring("decoding base64"))
		})

		It("rejects unsupported file types", func() {
			result := call(map[string]any{"file_base64": "JVBERg==", "filename": "invoice.txt"})
			Expect(result.IsError).To(BeTrue())
			Expect(toolText(result)).To(ContainSubstring("not supported"))
		})

		It("reports the error kind of processing failures", func() {
			processor.err = fmt.Errorf("page 1: %w", extraction.ErrMalformedOutput)
			result := call(map[string]any{"file_base64": "JVBERg==", "filename": "invoice.pdf"})
			Expect(result.IsError).To(BeTrue())
			Expect(toolText(result)).To(HavePrefix(KindMalformedOutput + ": "))
		})
	})

	Describe("get_supported_formats", func() {
		It("lists the accepted extensions and the size limit", func() {
			result, err := tools.supportedFormats(ctx, mcp.CallToolRequest{})
			Expect(err).NotTo(HaveOccurred())

			var out map[string]any
			Expect(json.Unmarshal([]byte(toolText(result)), &out)).To(Succeed())
			Expect(out["supported_formats"]).To(ContainElements("pdf", "png", "heic"))
			Expect(out["max_file_size_mb"]).To(BeNumerically("==", 5))
			Expect(out["provider"]).To(Equal("fake"))
			Expect(out["model"]).To(Equal("fake-model"))
		})
	})
})

var _ = Describe("MCP over HTTP", func() {
	var ghttpServer *ghttp.Server

	BeforeEach(func() {
		service := NewServiceWithDeps(newMockProcessor(), newMockDB(), newMockStorage(),
			Options{}, &mockIDGenerator{}, &mockTimeSource{now: time.Now()})
		server := NewServerWithMux(service, BasicAuth{}, ServerInfo{Version: "1.3.0"}, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	It("answers the initialize handshake", func() {
		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{` +
			`"protocolVersion":"2025-03-26","capabilities":{},` +
			`"clientInfo":{"name":"invoice-test","version":"1.0.0"}}}`

		resp, err := http.Post(ghttpServer.URL()+"/mcp", "application/json", bytes.NewBufferString(body))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(readBody(resp))).To(ContainSubstring("Invoice Processor Agent"))
	})
})

var _ = Describe("NewMCPServer", func() {
	It("announces the default name when none is configured", func() {
		service := NewServiceWithDeps(newMockProcessor(), newMockDB(), newMockStorage(),
			Options{}, &mockIDGenerator{}, &mockTimeSource{now: time.Now()})
		handler := NewMCPHTTPHandler(NewMCPServer(service, ServerInfo{Version: "1.3.0"}))

		ghttpServer := ghttp.NewServer()
		defer ghttpServer.Close()
		ghttpServer.AppendHandlers(handler.ServeHTTP)

		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{` +
			`"protocolVersion":"2025-03-26","capabilities":{},` +
			`"clientInfo":{"name":"invoice-test","version":"1.0.0"}}}`

		resp, err := http.Post(ghttpServer.URL()+"/mcp", "application/json", bytes.NewBufferString(body))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(readBody(resp))).To(ContainSubstring(`"name":"` + DefaultServerName + `"`))
	})
})
