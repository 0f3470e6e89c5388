package event

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// ErrNoEvents is returned when an envelope has no events array or it is empty.
var ErrNoEvents = errors.New("events[] is required")

// timeLayouts are tried in order when an event timestamp is a string.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Normalize turns a decoded ingest envelope into canonical events. Only a
// missing or empty events array is an error; every other malformation is
// coerced to a default. At most MaxEventsPerBatch events are kept.
func Normalize(raw map[string]any, now time.Time) (Batch, error) {
	items, _ := raw["events"].([]any)
	if len(items) == 0 {
		return Batch{}, ErrNoEvents
	}

	now = now.UTC()
	env := envelope{
		source:    orDefault(safeString(raw["source"], maxSource), UnknownSource),
		sessionID: safeString(raw["sessionId"], maxID),
		deviceID:  safeString(raw["deviceId"], maxID),
		sentAt:    toTime(raw["sentAt"], now),
		tool:      safeString(raw["tool"], maxTool),
		runtime:   asObject(raw["runtime"]),
		plugin:    asObject(raw["plugin"]),
		user:      raw["user"],
	}

	received := len(items)
	if len(items) > MaxEventsPerBatch {
		items = items[:MaxEventsPerBatch]
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		events = append(events, env.normalizeEvent(obj, now))
	}
	return Batch{Events: events, Received: received}, nil
}

type envelope struct {
	source    string
	sessionID string
	deviceID  string
	sentAt    time.Time
	tool      string
	runtime   map[string]any
	plugin    map[string]any
	user      any
}

func (env envelope) normalizeEvent(obj map[string]any, now time.Time) Event {
	eventType := safeString(firstPresent(obj, "eventType", "type"), maxEventType)
	if eventType == "" {
		eventType = UnknownType
	}

	eventAt := toTime(firstPresent(obj, "eventAt", "timestamp"), env.sentAt)

	rawSession := orDefault(safeString(obj["sessionId"], maxID), env.sessionID)
	rawDevice := orDefault(safeString(obj["deviceId"], maxID), env.deviceID)

	payload := SanitizePayload(obj["payload"])

	hints := []string{
		safeString(obj["tool"], maxTool),
		safeString(payload["uiTool"], maxTool),
		safeString(payload["tool"], maxTool),
		safeString(asObject(payload["element"])["toolId"], maxTool),
		env.tool,
	}
	tool := taxonomy.InferTool(hints, eventType, payload)

	seed := rawDevice
	if seed == "" {
		seed = orDefault(rawSession, UnknownSession)
	}
	rawUser, ok := obj["user"].(map[string]any)
	var user User
	if ok {
		user = NormalizeUser(rawUser, seed)
	} else {
		user = NormalizeUser(env.user, seed)
	}

	return Event{
		SessionID:  orDefault(rawSession, UnknownSession),
		DeviceID:   orDefault(rawDevice, UnknownDevice),
		EventType:  eventType,
		EventAt:    eventAt,
		ReceivedAt: now,
		Source:     orDefault(safeString(obj["source"], maxSource), env.source),
		Tool:       tool,
		Payload:    payload,
		User:       user,
		Runtime:    env.runtime,
		Plugin:     env.plugin,
	}
}

// NormalizeUser builds the identity snapshot. An explicit isAuthenticated
// boolean is trusted; otherwise a user id or email implies authentication.
// Anonymous users without an explicit anonymousId get one derived from seed.
func NormalizeUser(raw any, seed string) User {
	obj, _ := raw.(map[string]any)

	userID := ""
	for _, key := range []string{"userId", "id", "_id", "email"} {
		if userID = safeString(obj[key], maxIdentity); userID != "" {
			break
		}
	}
	email := safeString(obj["email"], maxEmail)
	source := safeString(obj["identitySource"], maxSource)

	authenticated := userID != "" || email != ""
	if explicit, ok := obj["isAuthenticated"].(bool); ok {
		authenticated = explicit
	}

	if authenticated {
		return User{
			IsAuthenticated: true,
			UserID:          userID,
			Name:            safeString(obj["name"], maxName),
			Email:           email,
			IdentitySource:  orDefault(source, "user"),
		}
	}

	anonymousID := safeString(obj["anonymousId"], maxIdentity)
	if anonymousID == "" {
		return User{
			AnonymousID:    AnonymousID(seed),
			IdentitySource: orDefault(source, "derived"),
		}
	}
	return User{
		AnonymousID:    anonymousID,
		IdentitySource: orDefault(source, "client"),
	}
}

// AnonymousID derives a stable display identity from a device or session
// seed. The same seed always yields the same id.
func AnonymousID(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return "device_" + strconv.FormatUint(uint64(h.Sum32()), 36)
}

// SanitizePayload bounds a free-form payload. At every nesting level
// objects keep at most MaxPayloadKeys keys (lexical order), strings are cut
// to MaxPayloadString and arrays to MaxPayloadArray. Objects and arrays
// nested deeper than MaxPayloadDepth, and values of unsupported types, are
// dropped.
func SanitizePayload(raw any) map[string]any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return sanitizeObject(obj, 1)
}

func sanitizeObject(obj map[string]any, depth int) map[string]any {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > MaxPayloadKeys {
		keys = keys[:MaxPayloadKeys]
	}

	result := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, keep := sanitizeValue(obj[key], depth); keep {
			result[key] = v
		}
	}
	return result
}

// sanitizeValue bounds v found at the given object depth. keep is false
// when v must be dropped.
func sanitizeValue(v any, depth int) (bounded any, keep bool) {
	switch t := v.(type) {
	case string:
		return Truncate(t, MaxPayloadString), true
	case nil, bool, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		return t, true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	case map[string]any:
		if depth >= MaxPayloadDepth {
			return nil, false
		}
		return sanitizeObject(t, depth+1), true
	case []any:
		if depth >= MaxPayloadDepth {
			return nil, false
		}
		if len(t) > MaxPayloadArray {
			t = t[:MaxPayloadArray]
		}
		items := make([]any, 0, len(t))
		for _, item := range t {
			if b, ok := sanitizeValue(item, depth+1); ok {
				items = append(items, b)
			}
		}
		return items, true
	}
	return nil, false
}

// Truncate cuts s to at most maxLen runes. A cut string ends with an
// ellipsis that counts toward the limit.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// safeString coerces scalars to a truncated string. Objects, arrays and nil
// yield "".
func safeString(v any, maxLen int) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = t.String()
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case uint64:
		s = strconv.FormatUint(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return Truncate(s, maxLen)
}

// toTime parses an RFC 3339-ish string, a millisecond epoch number or a
// time.Time. Anything else, including instants outside years 0 to 9999,
// yields fallback.
func toTime(v any, fallback time.Time) time.Time {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t = parsed
				break
			}
		}
	case float64:
		if math.Abs(x) < maxEpochMilli {
			t = time.UnixMilli(int64(x))
		}
	case int64:
		t = time.UnixMilli(x)
	case uint64:
		if x < maxEpochMilli {
			t = time.UnixMilli(int64(x))
		}
	case json.Number:
		if ms, err := x.Int64(); err == nil {
			t = time.UnixMilli(ms)
		}
	}
	if t.IsZero() || !Representable(t) {
		return fallback
	}
	return t.UTC()
}

// maxEpochMilli bounds float epochs before conversion; it lies well past
// year 9999.
const maxEpochMilli = 1e15

// Representable reports whether t falls in years 0 through 9999 in UTC,
// the range a stored or JSON-encoded timestamp can carry.
func Representable(t time.Time) bool {
	y := t.UTC().Year()
	return y >= 0 && y <= 9999
}

// firstPresent returns the first value under keys that is neither missing,
// nil nor an empty string.
func firstPresent(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func asObject(v any) map[string]any {
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
