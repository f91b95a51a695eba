package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/opencaretools/abctrack/internal/domain"
)

// udsTransport speaks JSON-RPC 2.0 over the server's unix socket. Each
// call dials a fresh connection; the deadline comes from the command
// context when one is set.
type udsTransport struct {
	socket string
}

type wireRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *wireError      `json:"error"`
	ID      any             `json:"id"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (t udsTransport) call(ctx context.Context, method string, params any, out any) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", t.socket)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(20 * time.Second)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	req := wireRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}

	var resp wireResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return rpcCodeError(resp.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func rpcCodeError(e *wireError) error {
	switch e.Code {
	case 40000:
		return serverError{kind: domain.ErrValidation, msg: e.Message}
	case 40400:
		return serverError{kind: domain.ErrNotFound, msg: e.Message}
	case 40900:
		return serverError{kind: domain.ErrConflict, msg: e.Message}
	default:
		return fmt.Errorf("rpc error (%d): %s", e.Code, e.Message)
	}
}
