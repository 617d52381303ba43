package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSON-RPC 2.0 error codes
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcInternalError  = -32603
)

const methodTasksSend = "tasks/send"

// taskParamsSchema describes tasks/send params carrying an invoice file part
var taskParamsSchema = jsonschema.MustCompileString("tasks-send-params.json", `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"id": {"type": "string"},
		"message": {
			"type": "object",
			"required": ["parts"],
			"properties": {
				"role": {"type": "string"},
				"parts": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"required": ["type"],
						"properties": {
							"type": {"type": "string"},
							"file": {
								"type": "object",
								"properties": {
									"name": {"type": "string"},
									"mimeType": {"type": "string"},
									"bytes": {"type": "string"}
								}
							}
						}
					}
				}
			}
		}
	}
}`)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type taskParams struct {
	ID      string `json:"id"`
	Message struct {
		Role  string     `json:"role"`
		Parts []taskPart `json:"parts"`
	} `json:"message"`
}

type taskPart struct {
	Type string    `json:"type"`
	File *taskFile `json:"file,omitempty"`
	Data any       `json:"data,omitempty"`
}

type taskFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Bytes    string `json:"bytes"`
}

type taskStatus struct {
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

type taskArtifact struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parts       []taskPart `json:"parts"`
}

type taskResult struct {
	ID        string         `json:"id"`
	Status    taskStatus     `json:"status"`
	Artifacts []taskArtifact `json:"artifacts"`
}

// handleAgentCard serves the A2A agent card used for discovery
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	base := scheme + "://" + r.Host

	schemes := []string{}
	if s.basicAuth.Username != "" || s.basicAuth.Password != "" {
		schemes = append(schemes, "Basic")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name": s.info.Name,
		"description": "Extracts structured data from invoice PDFs and images using AI vision. " +
			"Returns vendor info, client info, line items, totals, and payment details.",
		"url":     base + "/a2a",
		"version": s.info.Version,
		"capabilities": map[string]bool{
			"streaming":              false,
			"pushNotifications":      false,
			"stateTransitionHistory": false,
		},
		"authentication":     map[string]any{"schemes": schemes},
		"defaultInputModes":  []string{"application/json"},
		"defaultOutputModes": []string{"application/json"},
		"skills": []map[string]any{
			{
				"id":   "process_invoice",
				"name": "Process Invoice",
				"description": fmt.Sprintf("Send a base64-encoded invoice file (%s) and receive structured invoice data "+
					"including vendor, client, line items, subtotal, tax, discount and total amount.",
					strings.ToUpper(strings.Join(AllowedExtensions, "/"))),
				"tags": []string{"invoice", "ocr", "finance", "accounting", "data-extraction"},
				"examples": []string{
					"Extract all data from this invoice PDF",
					"What is the total amount on this invoice?",
					"List all line items from this invoice image",
				},
				"inputModes":  []string{"application/json"},
				"outputModes": []string{"application/json"},
			},
		},
	})
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	resp.JSONRPC = "2.0"
	writeJSON(w, http.StatusOK, resp)
}

func writeRPCError(w http.ResponseWriter, id any, code int, message string, data map[string]any) {
	writeRPC(w, rpcResponse{ID: id, Error: &rpcError{Code: code, Message: message, Data: data}})
}

// handleA2A serves the A2A JSON-RPC endpoint. Only tasks/send is supported.
func (s *Server) handleA2A(w http.ResponseWriter, r *http.Request) {
	// base64 inflates uploads by a third
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.service.MaxFileSizeBytes()*4/3+1<<20))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeRPCError(w, nil, rpcInvalidParams,
				fmt.Sprintf("Invalid file: request too large, maximum file size is %d MB", s.service.MaxFileSizeMB()),
				map[string]any{"kind": KindInvalidFile})
			return
		}
		writeRPCError(w, nil, rpcParseError, "Parse error", nil)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, rpcParseError, "Parse error", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, rpcInvalidRequest, "Invalid request: jsonrpc must be \"2.0\"", nil)
		return
	}
	if req.Method != methodTasksSend {
		writeRPCError(w, req.ID, rpcMethodNotFound,
			fmt.Sprintf("Method '%s' not supported. Use '%s'.", req.Method, methodTasksSend), nil)
		return
	}

	params, err := decodeTaskParams(req.Params)
	if err != nil {
		writeRPCError(w, req.ID, rpcInvalidParams, "Invalid params: "+err.Error(), nil)
		return
	}

	file := firstFilePart(params.Message.Parts)
	if file == nil {
		writeRPCError(w, req.ID, rpcInvalidParams,
			"No file part found. Send a 'file' part with 'name', 'mimeType', and 'bytes'.", nil)
		return
	}
	if file.Bytes == "" {
		writeRPCError(w, req.ID, rpcInvalidParams, "'bytes' field is required and must be a base64-encoded file.", nil)
		return
	}
	filename := file.Name
	if filename == "" {
		filename = "invoice.pdf"
	}

	data, err := base64.StdEncoding.DecodeString(file.Bytes)
	if err != nil {
		writeRPCError(w, req.ID, rpcInvalidParams, fmt.Sprintf("Invalid file: decoding base64: %v", err),
			map[string]any{"kind": KindInvalidFile})
		return
	}

	record, err := s.service.ProcessInvoice(r.Context(), filename, data)
	if err != nil {
		kind := ErrorKind(err)
		errData := map[string]any{"kind": kind}
		if record != nil {
			errData["invoice_id"] = record.ID
		}
		if kind == KindInvalidFile {
			writeRPCError(w, req.ID, rpcInvalidParams, fmt.Sprintf("Invalid file: %v", err), errData)
			return
		}
		writeRPCError(w, req.ID, rpcInternalError, fmt.Sprintf("Processing failed: %v", err), errData)
		return
	}

	taskID := params.ID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	writeRPC(w, rpcResponse{
		ID: req.ID,
		Result: taskResult{
			ID: taskID,
			Status: taskStatus{
				State:     "completed",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
			Artifacts: []taskArtifact{
				{
					Name:        "invoice_data",
					Description: fmt.Sprintf("Extracted data from %s (%d page(s))", filename, record.PagesProcessed),
					Parts:       []taskPart{{Type: "data", Data: record.Data}},
				},
			},
		},
	})
}

// decodeTaskParams validates raw params against taskParamsSchema before decoding them
func decodeTaskParams(raw json.RawMessage) (*taskParams, error) {
	if len(raw) == 0 {
		return nil, errors.New("params are required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := taskParamsSchema.Validate(doc); err != nil {
		return nil, err
	}

	var params taskParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func firstFilePart(parts []taskPart) *taskFile {
	for _, p := range parts {
		if p.Type == "file" && p.File != nil {
			return p.File
		}
	}
	return nil
}
