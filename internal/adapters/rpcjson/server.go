package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencaretools/abctrack/internal/application"
	"github.com/opencaretools/abctrack/internal/domain"
)

// Server answers JSON-RPC 2.0 requests over a unix socket. The socket is
// chmod 0600, so access control is the file system's problem.
type Server struct {
	service  *application.TrackerService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.TrackerService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "children.list":
		out, err := s.service.ListChildren(ctx)
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "children.create":
		var p struct {
			Name      string     `json:"name"`
			DOB       *time.Time `json:"dob"`
			AvatarURL string     `json:"avatarUrl"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateChild(ctx, domain.Child{Name: p.Name, DOB: p.DOB, AvatarURL: p.AvatarURL})
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "children.delete":
		var p struct {
			ID string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteChild(ctx, p.ID); err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, map[string]any{"success": true})
	case "catalogs.list":
		var p struct {
			Type string `json:"type"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		kind, err := domain.ParseCatalogKind(p.Type)
		if err != nil {
			return serviceError(req.ID, err)
		}
		out, err := s.service.ListCatalog(ctx, kind)
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "catalogs.create":
		var p struct {
			Type  string `json:"type"`
			Label string `json:"label"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		kind, err := domain.ParseCatalogKind(p.Type)
		if err != nil {
			return serviceError(req.ID, err)
		}
		out, err := s.service.CreateCatalogItem(ctx, kind, domain.CatalogItem{Label: p.Label})
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "catalogs.delete":
		var p struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		kind, err := domain.ParseCatalogKind(p.Type)
		if err != nil {
			return serviceError(req.ID, err)
		}
		if err := s.service.DeleteCatalogItem(ctx, kind, p.ID); err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, map[string]any{"success": true})
	case "incidents.list":
		var p struct {
			ChildID *string    `json:"childId"`
			From    *time.Time `json:"from"`
			To      *time.Time `json:"to"`
		}
		if len(req.Params) > 0 && !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListIncidents(ctx, domain.IncidentFilter{ChildID: p.ChildID, From: p.From, To: p.To})
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "incidents.get":
		var p struct {
			ID string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.GetIncident(ctx, p.ID)
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "incidents.create":
		var p domain.Incident
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateIncident(ctx, p)
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "incidents.update":
		var p struct {
			ID    string               `json:"id"`
			Patch domain.IncidentPatch `json:"patch"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdateIncident(ctx, p.ID, p.Patch)
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	case "incidents.delete":
		var p struct {
			ID string `json:"id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteIncident(ctx, p.ID); err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, map[string]any{"success": true})
	case "reports.summary":
		var p struct {
			ChildID *string    `json:"childId"`
			From    *time.Time `json:"from"`
			To      *time.Time `json:"to"`
		}
		if len(req.Params) > 0 && !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.Summary(ctx, domain.IncidentFilter{ChildID: p.ChildID, From: p.From, To: p.To})
		if err != nil {
			return serviceError(req.ID, err)
		}
		return result(req.ID, out)
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func result(id any, v any) response {
	return response{JSONRPC: "2.0", Result: v, ID: id}
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func serviceError(id any, err error) response {
	switch {
	case errors.Is(err, domain.ErrInvalidCatalogKind), errors.Is(err, domain.ErrValidation):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40000, Message: err.Error()}, ID: id}
	case errors.Is(err, domain.ErrNotFound):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40400, Message: err.Error()}, ID: id}
	case errors.Is(err, domain.ErrConflict):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40900, Message: err.Error()}, ID: id}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: "internal error"}, ID: id}
	}
}
