package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mkEvent(session, eventType, tool string, at time.Time, payload map[string]any) event.Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return event.Event{
		SessionID:  session,
		DeviceID:   "dev-" + session,
		EventType:  eventType,
		EventAt:    at,
		ReceivedAt: at,
		Source:     "test",
		Tool:       tool,
		Payload:    payload,
		User:       event.User{AnonymousID: event.AnonymousID("dev-" + session), IdentitySource: "derived"},
	}
}

func window() Filter {
	return Filter{From: base.Add(-time.Hour), To: base.Add(24 * time.Hour), Auth: AuthAll}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := []event.Event{
		mkEvent("s1", "ui_click", "palettable", base, map[string]any{"normalizedX": 0.5, "element": map[string]any{"tag": "button"}}),
		mkEvent("s1", "tool_opened", "palettable", base.Add(time.Minute), nil),
	}
	in[1].User = event.User{IsAuthenticated: true, UserID: "u1", Email: "u1@example.com"}
	in[1].Runtime = map[string]any{"platform": "figma"}

	res, err := db.InsertEvents(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Empty(t, res.Errors)
	assert.NotEmpty(t, in[0].ID, "ids are assigned on insert")

	out, err := db.QueryEvents(ctx, window())
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, in[0].ID, out[0].ID)
	assert.Equal(t, "ui_click", out[0].EventType)
	assert.Equal(t, base, out[0].EventAt)
	assert.Equal(t, 0.5, out[0].Payload["normalizedX"])
	assert.Equal(t, "button", out[0].Payload["element"].(map[string]any)["tag"])
	assert.Equal(t, "u1", out[1].User.UserID)
	assert.True(t, out[1].User.IsAuthenticated)
	assert.Equal(t, "figma", out[1].Runtime["platform"])
}

func TestInsertEvents_PartialFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	bad := mkEvent("s1", "ui_click", "dashboard", base, map[string]any{"x": math.NaN()})
	good := mkEvent("s1", "ui_click", "dashboard", base, nil)

	res, err := db.InsertEvents(ctx, []event.Event{bad, good})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Len(t, res.Errors, 1)

	_, err = db.InsertEvents(ctx, []event.Event{bad})
	assert.ErrorIs(t, err, ErrNothingInserted)
}

func TestInsertEvents_DuplicateIDSkipped(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	e := mkEvent("s1", "ui_click", "dashboard", base, nil)
	e.ID = "fixed"
	_, err := db.InsertEvents(ctx, []event.Event{e})
	require.NoError(t, err)

	other := mkEvent("s2", "ui_click", "dashboard", base, nil)
	res, err := db.InsertEvents(ctx, []event.Event{e, other})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	n, err := db.CountEvents(ctx, window())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQueryEvents_Filters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	authed := mkEvent("s2", "ui_click", "frame-gallery", base.Add(2*time.Minute), map[string]any{"action": "click:export"})
	authed.User = event.User{IsAuthenticated: true, UserID: "u9"}
	events := []event.Event{
		mkEvent("s1", "ui_click", "palettable", base, map[string]any{"action": "click:swatch"}),
		mkEvent("s1", "session_heartbeat", "palettable", base.Add(time.Minute), nil),
		authed,
		mkEvent("s3", "ui_click", "dashboard", base.Add(3*time.Minute), map[string]any{"element": map[string]any{"toolId": "palettable"}}),
		mkEvent("s3", "plugin_message", "dashboard", base.Add(4*time.Minute), map[string]any{"messageType": "get-all-frames"}),
		mkEvent("old", "ui_click", "palettable", base.Add(-48*time.Hour), nil),
	}
	_, err := db.InsertEvents(ctx, events)
	require.NoError(t, err)

	sessions := func(f Filter) []string {
		t.Helper()
		out, err := db.QueryEvents(ctx, f)
		require.NoError(t, err)
		ids := make([]string, len(out))
		for i, e := range out {
			ids[i] = e.SessionID + ":" + e.EventType
		}
		return ids
	}

	f := window()
	assert.Len(t, sessions(f), 5, "out-of-range event excluded")

	f = window()
	f.Tool = "palettable"
	assert.Equal(t, []string{"s1:ui_click", "s1:session_heartbeat"}, sessions(f))

	f.ToolAnyField = true
	f.EventTypes = []string{"ui_click"}
	assert.Equal(t, []string{"s1:ui_click", "s3:ui_click"}, sessions(f))

	f = window()
	f.Tool = "all"
	f.Auth = AuthAuthenticated
	assert.Equal(t, []string{"s2:ui_click"}, sessions(f))

	f.Auth = AuthAnonymous
	assert.Len(t, sessions(f), 4)

	f = window()
	f.Actions = []string{"get-all-frames", "session_heartbeat"}
	assert.Equal(t, []string{"s1:session_heartbeat", "s3:plugin_message"}, sessions(f))

	f = window()
	f.ExcludePassive = true
	assert.NotContains(t, sessions(f), "s1:session_heartbeat")

	f = window()
	f.NewestFirst = true
	f.Limit = 2
	assert.Equal(t, []string{"s3:plugin_message", "s3:ui_click"}, sessions(f))
}

func TestLatestEventAt(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	latest, err := db.LatestEventAt(ctx)
	require.NoError(t, err)
	assert.True(t, latest.IsZero())

	_, err = db.InsertEvents(ctx, []event.Event{
		mkEvent("s1", "ui_click", "dashboard", base, nil),
		mkEvent("s1", "ui_click", "dashboard", base.Add(time.Hour), nil),
	})
	require.NoError(t, err)

	latest, err = db.LatestEventAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), latest)
}

func TestParseAuthFilter(t *testing.T) {
	assert.Equal(t, AuthAuthenticated, ParseAuthFilter(" Authenticated "))
	assert.Equal(t, AuthAnonymous, ParseAuthFilter("anonymous"))
	assert.Equal(t, AuthAll, ParseAuthFilter("bogus"))
	assert.Equal(t, AuthAll, ParseAuthFilter(""))
}
