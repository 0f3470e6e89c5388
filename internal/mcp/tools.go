package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// Tool list sizes when the caller passes no limit.
const (
	defaultSessions = 10
	defaultEvents   = 20
)

// queryArgs are the filter arguments shared by every query tool. Empty
// fields take the same defaults as the HTTP API.
type queryArgs struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Tool   string `json:"tool"`
	Auth   string `json:"auth"`
	Action string `json:"action"`
	Limit  *int   `json:"limit"`

	IncludePassive *bool `json:"include_passive"`
}

// ClassifyResult is the classify_action tool result.
type ClassifyResult struct {
	Action    taxonomy.Meta  `json:"action"`
	EventType *taxonomy.Meta `json:"event_type,omitempty"`
	Passive   bool           `json:"passive"`
}

const filterProps = `"from":{"type":"string","description":"Window start, RFC 3339 or YYYY-MM-DD (default 7 days ago)"},` +
	`"to":{"type":"string","description":"Window end (default now)"},` +
	`"tool":{"type":"string","description":"Restrict to one tool id"},` +
	`"auth":{"type":"string","enum":["all","authenticated","anonymous"]},` +
	`"action":{"type":"string","description":"Comma-separated action keys"}`

var (
	filterSchema = json.RawMessage(`{"type":"object","properties":{` + filterProps + `},"additionalProperties":false}`)
	limitSchema  = json.RawMessage(`{"type":"object","properties":{` + filterProps +
		`,"limit":{"type":"integer","description":"Maximum rows to return"}},"additionalProperties":false}`)
	eventsSchema = json.RawMessage(`{"type":"object","properties":{` + filterProps +
		`,"limit":{"type":"integer","description":"Maximum events to return (default 20)"}` +
		`,"include_passive":{"type":"boolean","description":"Include heartbeats and other system noise (default false)"}},"additionalProperties":false}`)
	classifySchema = json.RawMessage(`{"type":"object","properties":{` +
		`"action":{"type":"string","description":"Action key, e.g. click:save or palette:export-scheme:ase"},` +
		`"event_type":{"type":"string","description":"Optional event type the action was seen on"}},"required":["action"],"additionalProperties":false}`)
)

// addTools registers the dashboard query tools on s.
func addTools(s *Server) {
	s.registerTool(toolDef{
		Name:        "get_summary",
		Description: "Headline KPIs, top tools, top actions and events per day for a date window.",
		InputSchema: filterSchema,
		Handler:     s.handleGetSummary,
	})
	s.registerTool(toolDef{
		Name:        "get_tool_usage",
		Description: "Per-tool event, click, session and user counts, sorted by meaningful activity.",
		InputSchema: filterSchema,
		Handler:     s.handleGetToolUsage,
	})
	s.registerTool(toolDef{
		Name:        "get_sessions",
		Description: "Most recent plugin sessions with duration, tools touched and user identity.",
		InputSchema: limitSchema,
		Handler:     s.handleGetSessions,
	})
	s.registerTool(toolDef{
		Name:        "get_recent_events",
		Description: "Latest events with resolved action metadata. System noise is excluded unless include_passive is set.",
		InputSchema: eventsSchema,
		Handler:     s.handleGetRecentEvents,
	})
	s.registerTool(toolDef{
		Name:        "get_feature_analytics",
		Description: "Palette exports, favorites, import/export sizes, view modes and PDF export settings.",
		InputSchema: filterSchema,
		Handler:     s.handleGetFeatures,
	})
	s.registerTool(toolDef{
		Name:        "get_action_catalog",
		Description: "Every action key seen in the window with counts and label, category and signal.",
		InputSchema: filterSchema,
		Handler:     s.handleGetActionCatalog,
	})
	s.registerTool(toolDef{
		Name:        "classify_action",
		Description: "Label, category, signal and passivity for an action key without querying stored events.",
		InputSchema: classifySchema,
		Handler:     s.handleClassifyAction,
	})
}

// parseArgs decodes tool arguments. Absent or null arguments yield zero
// values; malformed JSON is an error.
func parseArgs(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return errors.New("invalid arguments: " + err.Error())
	}
	return nil
}

// query resolves the filter arguments the same way the HTTP API resolves
// its query string.
func (s *Server) query(args json.RawMessage) (dashboard.Query, queryArgs, error) {
	var a queryArgs
	if err := parseArgs(args, &a); err != nil {
		return dashboard.Query{}, a, err
	}
	v := url.Values{}
	set := func(k, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(k, val)
		}
	}
	set("from", a.From)
	set("to", a.To)
	set("tool", a.Tool)
	set("auth", a.Auth)
	set("action", a.Action)
	return dashboard.ParseQuery(v, s.svc.Now()), a, nil
}

func limitOf(a queryArgs, fallback, ceiling int) int {
	if a.Limit == nil {
		return fallback
	}
	return dashboard.ParseLimit(strconv.Itoa(*a.Limit), fallback, ceiling)
}

func (s *Server) handleGetSummary(ctx context.Context, args json.RawMessage) (any, error) {
	q, _, err := s.query(args)
	if err != nil {
		return nil, err
	}
	return s.svc.Summary(ctx, q)
}

func (s *Server) handleGetToolUsage(ctx context.Context, args json.RawMessage) (any, error) {
	q, _, err := s.query(args)
	if err != nil {
		return nil, err
	}
	return s.svc.ToolUsage(ctx, q)
}

func (s *Server) handleGetSessions(ctx context.Context, args json.RawMessage) (any, error) {
	q, a, err := s.query(args)
	if err != nil {
		return nil, err
	}
	return s.svc.Sessions(ctx, q, limitOf(a, defaultSessions, dashboard.SessionsMax))
}

func (s *Server) handleGetRecentEvents(ctx context.Context, args json.RawMessage) (any, error) {
	q, a, err := s.query(args)
	if err != nil {
		return nil, err
	}
	includePassive := a.IncludePassive != nil && *a.IncludePassive
	return s.svc.RecentEvents(ctx, q, limitOf(a, defaultEvents, dashboard.EventsMax), includePassive)
}

func (s *Server) handleGetFeatures(ctx context.Context, args json.RawMessage) (any, error) {
	q, _, err := s.query(args)
	if err != nil {
		return nil, err
	}
	return s.svc.Features(ctx, q)
}

func (s *Server) handleGetActionCatalog(ctx context.Context, args json.RawMessage) (any, error) {
	q, _, err := s.query(args)
	if err != nil {
		return nil, err
	}
	return s.svc.ActionCatalog(ctx, q)
}

func (s *Server) handleClassifyAction(_ context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Action    string `json:"action"`
		EventType string `json:"event_type"`
	}
	if err := parseArgs(args, &a); err != nil {
		return nil, err
	}
	action := strings.TrimSpace(a.Action)
	if action == "" {
		return nil, errors.New("action is required")
	}
	res := ClassifyResult{Action: taxonomy.ActionMeta(action)}
	eventType := strings.TrimSpace(a.EventType)
	if eventType != "" {
		m := taxonomy.EventMeta(eventType)
		res.EventType = &m
	}
	res.Passive = taxonomy.IsPassive(eventType, action)
	return res, nil
}
