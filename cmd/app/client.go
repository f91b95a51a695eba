package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencaretools/abctrack/internal/domain"
)

type cliConfig struct {
	Transport string `json:"transport"`
	Server    string `json:"server"`
	Socket    string `json:"socket"`
}

// serverError keeps the server's own message while unwrapping to the
// sentinel the service would have returned locally, so command code can
// use errors.Is on either transport.
type serverError struct {
	kind error
	msg  string
}

func (e serverError) Error() string { return e.msg }
func (e serverError) Unwrap() error { return e.kind }

type httpTransport struct {
	client *http.Client
	base   string
}

func newHTTPTransport(server string) httpTransport {
	return httpTransport{
		client: &http.Client{Timeout: 20 * time.Second},
		base:   strings.TrimRight(server, "/"),
	}
}

func (t httpTransport) request(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, t.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return httpStatusError(resp.StatusCode, errorMessage(payload))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorMessage pulls the message out of the server's {"error": ...} body,
// falling back to the raw payload for anything unexpected.
func errorMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(payload))
}

func httpStatusError(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return serverError{kind: domain.ErrValidation, msg: msg}
	case http.StatusNotFound:
		return serverError{kind: domain.ErrNotFound, msg: msg}
	case http.StatusConflict:
		return serverError{kind: domain.ErrConflict, msg: msg}
	default:
		return fmt.Errorf("api error (%d): %s", status, msg)
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".abctrack", "config.json"), nil
}

func loadCLIConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{Transport: "uds", Server: "http://127.0.0.1:8080", Socket: "/tmp/abctrack.sock"}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.Transport == "" {
		cfg.Transport = "uds"
	}
	if cfg.Server == "" {
		cfg.Server = "http://127.0.0.1:8080"
	}
	if cfg.Socket == "" {
		cfg.Socket = "/tmp/abctrack.sock"
	}
	return cfg, nil
}

func saveCLIConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
