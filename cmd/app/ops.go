package main

import (
	"context"
	"net/http"
	"net/url"
)

func doChildrenList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "children.list", map[string]any{}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodGet, "/api/children", nil, out)
}

func doChildrenCreate(ctx context.Context, cfg cliConfig, name, dob, avatarURL string, out any) error {
	payload := map[string]any{"name": name}
	if dob != "" {
		payload["dob"] = dob
	}
	if avatarURL != "" {
		payload["avatarUrl"] = avatarURL
	}
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "children.create", payload, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodPost, "/api/children", payload, out)
}

func doChildrenDelete(ctx context.Context, cfg cliConfig, id string, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "children.delete", map[string]any{"id": id}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodDelete, "/api/children/"+url.PathEscape(id), nil, out)
}

func doCatalogList(ctx context.Context, cfg cliConfig, kind string, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "catalogs.list", map[string]any{"type": kind}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodGet, "/api/catalogs/"+url.PathEscape(kind), nil, out)
}

func doCatalogCreate(ctx context.Context, cfg cliConfig, kind, label string, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "catalogs.create", map[string]any{"type": kind, "label": label}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodPost, "/api/catalogs/"+url.PathEscape(kind), map[string]any{"label": label}, out)
}

func doCatalogDelete(ctx context.Context, cfg cliConfig, kind, id string, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "catalogs.delete", map[string]any{"type": kind, "id": id}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodDelete, "/api/catalogs/"+url.PathEscape(kind)+"/"+url.PathEscape(id), nil, out)
}

func doIncidentsList(ctx context.Context, cfg cliConfig, childID, from, to string, out any) error {
	if cfg.Transport == "uds" {
		params := map[string]any{}
		if childID != "" {
			params["childId"] = childID
		}
		if from != "" {
			params["from"] = from
		}
		if to != "" {
			params["to"] = to
		}
		return udsTransport{socket: cfg.Socket}.call(ctx, "incidents.list", params, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodGet, "/api/incidents"+filterQuery(childID, from, to), nil, out)
}

func doIncidentsGet(ctx context.Context, cfg cliConfig, id string, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "incidents.get", map[string]any{"id": id}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodGet, "/api/incidents/"+url.PathEscape(id), nil, out)
}

func doIncidentsCreate(ctx context.Context, cfg cliConfig, payload map[string]any, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "incidents.create", payload, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodPost, "/api/incidents", payload, out)
}

func doIncidentsUpdate(ctx context.Context, cfg cliConfig, id string, patch map[string]any, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "incidents.update", map[string]any{"id": id, "patch": patch}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodPatch, "/api/incidents/"+url.PathEscape(id), patch, out)
}

func doIncidentsDelete(ctx context.Context, cfg cliConfig, id string, out any) error {
	if cfg.Transport == "uds" {
		return udsTransport{socket: cfg.Socket}.call(ctx, "incidents.delete", map[string]any{"id": id}, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodDelete, "/api/incidents/"+url.PathEscape(id), nil, out)
}

func doReportSummary(ctx context.Context, cfg cliConfig, childID, from, to string, out any) error {
	if cfg.Transport == "uds" {
		params := map[string]any{}
		if childID != "" {
			params["childId"] = childID
		}
		if from != "" {
			params["from"] = from
		}
		if to != "" {
			params["to"] = to
		}
		return udsTransport{socket: cfg.Socket}.call(ctx, "reports.summary", params, out)
	}
	return newHTTPTransport(cfg.Server).request(ctx, http.MethodGet, "/api/reports/summary"+filterQuery(childID, from, to), nil, out)
}

func filterQuery(childID, from, to string) string {
	values := url.Values{}
	if childID != "" {
		values.Set("childId", childID)
	}
	if from != "" {
		values.Set("from", from)
	}
	if to != "" {
		values.Set("to", to)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}
