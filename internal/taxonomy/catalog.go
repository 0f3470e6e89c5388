// Package taxonomy classifies plugin telemetry: which tool an event belongs
// to, what an event or action key means, and whether it is passive system
// noise or a user-intent signal. Everything here is a pure function of the
// input and the static catalogs below.
package taxonomy

// Signal ranks how strongly an event reflects user intent.
type Signal string

const (
	SignalLow    Signal = "low"
	SignalMedium Signal = "medium"
	SignalHigh   Signal = "high"
)

// entry is a catalog row. Passive only matters for action keys; event-type
// passivity comes from passiveEventTypes.
type entry struct {
	Label       string
	Description string
	Category    string
	Signal      Signal
	Passive     bool
}

// UnknownEventType is stored when an event carries no type.
const UnknownEventType = "unknown_event"

// passiveEventTypes are event types that never represent user intent.
var passiveEventTypes = map[string]bool{
	"session_heartbeat":           true,
	"ui_heartbeat":                true,
	"ui_state_snapshot":           true,
	"ui_visibility_change":        true,
	"ui_resize":                   true,
	"analytics_transport_updated": true,
}

var eventCatalog = map[string]entry{
	"plugin_session_started":      {"Session Started", "Plugin launch recorded for a new session.", "Lifecycle", SignalMedium, false},
	"plugin_session_ended":        {"Session Ended", "Plugin close/end lifecycle event.", "Lifecycle", SignalMedium, false},
	"session_heartbeat":           {"Session Heartbeat", "Background keep-alive ping while plugin stays open.", "System", SignalLow, false},
	"plugin_message":              {"Plugin Message", "Internal UI-to-main bridge communication.", "System", SignalLow, false},
	"tool_opened":                 {"Tool Opened", "A tool panel was opened by the user.", "Navigation", SignalHigh, false},
	"tool_closed":                 {"Tool Closed", "A tool panel was closed by the user.", "Navigation", SignalMedium, false},
	"tool_context_changed":        {"Tool Context Changed", "User moved from one tool context to another.", "Navigation", SignalMedium, false},
	"tool_action":                 {"Tool Action", "Specific command/action taken inside a tool.", "Interaction", SignalHigh, false},
	"tool_time_spent":             {"Tool Time Spent", "Measured time spent in a specific tool.", "Engagement", SignalHigh, false},
	"user_context_changed":        {"User Context Updated", "User identity context changed in analytics runtime.", "Identity", SignalMedium, false},
	"ui_session_started":          {"UI Session Started", "Dashboard UI runtime session initialized.", "Lifecycle", SignalMedium, false},
	"ui_click":                    {"UI Click", "User clicked a control in plugin UI.", "Interaction", SignalHigh, false},
	"ui_input_changed":            {"Input Changed", "User changed a field, dropdown, or toggle value.", "Interaction", SignalHigh, false},
	"ui_tab_changed":              {"Tab Changed", "User switched tab/view inside a tool.", "Navigation", SignalHigh, false},
	"ui_keyboard_action":          {"Keyboard Action", "Keyboard-triggered action on an interactive control.", "Interaction", SignalMedium, false},
	"ui_scroll":                   {"UI Scroll", "User scrolled in plugin UI.", "Interaction", SignalMedium, false},
	"ui_resize":                   {"UI Resize", "Plugin UI viewport size changed.", "System", SignalLow, false},
	"ui_visibility_change":        {"UI Visibility Changed", "Browser/tab visibility status changed.", "System", SignalLow, false},
	"ui_state_snapshot":           {"UI State Snapshot", "Current open/closed tool panel snapshot.", "System", SignalLow, false},
	"ui_heartbeat":                {"UI Heartbeat", "Periodic UI health/heartbeat event.", "System", SignalLow, false},
	"ui_before_unload":            {"UI Before Unload", "UI session is about to unload/close.", "Lifecycle", SignalLow, false},
	"ui_user_authenticated":       {"UI User Authenticated", "User signed in and auth context became available.", "Identity", SignalHigh, false},
	"ui_user_unauthenticated":     {"UI User Unauthenticated", "User signed out or auth state cleared.", "Identity", SignalMedium, false},
	"analytics_transport_updated": {"Analytics Transport Updated", "Analytics endpoint or ingest token was changed.", "System", SignalLow, false},
	"palette_export_performed":    {"Palette Export", "Palette variation or scheme export was executed.", "Palette", SignalHigh, false},
	"tool_favorite_changed":       {"Tool Favorite Changed", "User added or removed a tool from favorites.", "Engagement", SignalHigh, false},
	"importer_favorite_changed":   {"Importer Favorite Changed", "User updated importer favorites in import tool.", "Engagement", SignalHigh, false},
	"import_file_selected":        {"Import File Selected", "User selected a file for import workflow.", "Import", SignalHigh, false},
	"import_conversion_completed": {"Import Conversion Completed", "File conversion completed before Figma import.", "Import", SignalHigh, false},
	"pdf_export_requested":        {"PDF Export Requested", "Export started with DPI/compression/password settings.", "Export", SignalHigh, false},
	"pdf_merge_group_exported":    {"Merged PDF Created", "A merged PDF group was generated.", "Export", SignalHigh, false},
	"pdf_individual_exported":     {"Individual PDF Created", "A single frame PDF was generated.", "Export", SignalHigh, false},
	"pdf_export_completed":        {"PDF Export Completed", "ZIP/PDF export pipeline completed successfully.", "Export", SignalHigh, false},
	"unknown_event":               {"Unknown Event", "Event not yet explicitly cataloged.", "Unmapped", SignalLow, false},
}

var actionCatalog = map[string]entry{
	"toggle-profile":             {"Toggle Profile", "Open/close profile panel.", "Navigation", SignalHigh, false},
	"toggle-game":                {"Toggle Game", "Open/close Wayfall game panel.", "Navigation", SignalMedium, false},
	"toggle-palette":             {"Toggle Palette Tool", "Open/close palette tool panel.", "Navigation", SignalHigh, false},
	"toggle-frame-gallery":       {"Toggle Frame Gallery", "Open/close frame gallery panel.", "Navigation", SignalHigh, false},
	"toggle-import-tool":         {"Toggle Import Tool", "Open/close import tool panel.", "Navigation", SignalHigh, false},
	"toggle-favorite":            {"Toggle Favorite", "Mark or unmark importer/tool as favorite.", "Engagement", SignalHigh, false},
	"toggle-unit-converter":      {"Toggle Unit Converter", "Open/close unit converter panel.", "Navigation", SignalHigh, false},
	"toggle-liquid-glass":        {"Toggle Liquid Glass", "Enable/disable liquid glass preview.", "Navigation", SignalMedium, false},
	"toggle-collapse":            {"Toggle Dashboard Collapse", "Collapse/expand dashboard shell.", "Navigation", SignalMedium, false},
	"resize-expanded":            {"Resize Expanded UI", "Reset plugin UI into expanded state.", "Layout", SignalLow, false},
	"tool-collapsed":             {"Collapse Tool View", "Force tool panel into collapsed dashboard state.", "Layout", SignalMedium, false},
	"palette-to-collapsed":       {"Palette To Collapsed", "Close palette and switch to collapsed dashboard.", "Navigation", SignalMedium, false},
	"resize-window":              {"Resize Window", "Plugin window resized by UI command.", "Layout", SignalLow, false},
	"get-ui-state":               {"Request UI State", "UI requested latest state snapshot from main runtime.", "System", SignalLow, true},
	"get-all-frames":             {"Fetch Frames", "Load current document frames for frame gallery.", "Frame Workflow", SignalHigh, false},
	"export-frames-with-dpi":     {"Export Frames (DPI)", "Export selected/all frames at requested DPI.", "Export", SignalHigh, false},
	"export-zip-with-password":   {"Export ZIP", "Start protected ZIP export flow.", "Export", SignalHigh, false},
	"toggle-manual-selection":    {"Toggle Manual Selection", "Enable/disable manual frame selection mode.", "Frame Workflow", SignalHigh, false},
	"clear-manual-selection":     {"Clear Manual Selection", "Clear manually selected frame set.", "Frame Workflow", SignalMedium, false},
	"get-manual-selection-state": {"Get Manual Selection State", "Query frame gallery manual selection state.", "Frame Workflow", SignalLow, false},
	"convert-units":              {"Convert Units", "Run unit conversion operation.", "Unit Conversion", SignalHigh, false},
	"create-frame":               {"Create Frame", "Create frame from unit-converter settings.", "Unit Conversion", SignalHigh, false},
	"apply-preset":               {"Apply Preset", "Apply saved preset to create frame.", "Unit Conversion", SignalHigh, false},
	"save-preset":                {"Save Preset", "Persist a unit-converter preset.", "Unit Conversion", SignalMedium, false},
	"delete-preset":              {"Delete Preset", "Remove a saved unit-converter preset.", "Unit Conversion", SignalMedium, false},
	"load-presets":               {"Load Presets", "Retrieve available unit-converter presets.", "Unit Conversion", SignalLow, false},
	"ui-loaded":                  {"UI Loaded", "Tool UI initialization completed.", "System", SignalLow, true},
	"load-liked-presets":         {"Load Liked Presets", "Fetch liked/favorite presets.", "Unit Conversion", SignalLow, false},
	"save-liked-presets":         {"Save Liked Presets", "Persist liked/favorite preset list.", "Unit Conversion", SignalMedium, false},
	"export-frame":               {"Export Frame", "Export current selected frame.", "Export", SignalHigh, false},
	"check-font-availability":    {"Check Font Availability", "Validate required fonts before import.", "Import", SignalHigh, false},
	"import-svg-to-figma":        {"Import SVG", "Import SVG content into current document.", "Import", SignalHigh, false},
	"export-palette":             {"Export Palette", "Export generated palette variation.", "Palette", SignalHigh, false},
	"export-color-schemes":       {"Export Color Schemes", "Export selected color scheme variation.", "Palette", SignalHigh, false},
	"export-selected-options":    {"Export Selected Options", "Batch export selected palette options.", "Palette", SignalHigh, false},
	"start-eyedropper":           {"Start Eyedropper", "Activate eyedropper color pick flow.", "Palette", SignalHigh, false},
	"notify":                     {"Notify", "Show user notification from UI.", "System", SignalLow, true},
	"copy-link":                  {"Copy Link", "Copy generated link to clipboard.", "Interaction", SignalMedium, false},
	"color-copied":               {"Copy Color Code", "Copy color value from palette workflow.", "Palette", SignalHigh, false},
	"emailEntered":               {"Email Entered", "User provided email in palette flow.", "Identity", SignalHigh, false},
	"get-font":                   {"Get Font", "Request a specific font for import preprocessing.", "Import", SignalMedium, false},
	"oauth-token":                {"OAuth Token Received", "OAuth token was received by plugin.", "Auth", SignalHigh, false},
	"open-auth-url":              {"Open Auth URL", "Launch external auth URL for login.", "Auth", SignalHigh, false},
	"copy-to-clipboard":          {"Copy To Clipboard", "Copy value from auth/profile section.", "Interaction", SignalMedium, false},
	"get-token":                  {"Get Token", "Check if auth token exists.", "Auth", SignalLow, false},
	"store-token":                {"Store Token", "Persist token and fetch user profile.", "Auth", SignalHigh, false},
	"clear-token":                {"Clear Token", "Remove auth token from storage.", "Auth", SignalMedium, false},
	"get-session":                {"Get Session", "Read current auth session metadata.", "Auth", SignalLow, false},
	"store-session":              {"Store Session", "Persist auth session details.", "Auth", SignalMedium, false},
	"clear-session":              {"Clear Session", "Clear auth session data.", "Auth", SignalMedium, false},
	"store-avatar":               {"Store Avatar", "Persist selected avatar URL.", "Profile", SignalLow, false},
	"avatar-selected":            {"Avatar Selected", "User selected profile avatar.", "Profile", SignalMedium, false},
	"set-analytics-endpoint":     {"Set Analytics Endpoint", "Update analytics ingest endpoint/token from UI override.", "System", SignalLow, true},
	"analytics-event":            {"Analytics Event Forward", "Single analytics event passed from UI to main.", "System", SignalLow, true},
	"analytics-batch":            {"Analytics Batch Forward", "Batch analytics events passed from UI to main.", "System", SignalLow, true},
	"analytics-identify":         {"Analytics Identify", "Update analytics identity context from UI.", "Identity", SignalLow, true},
	"analytics-flush":            {"Analytics Flush", "Force flush queued analytics events.", "System", SignalLow, true},
	"lg-refresh":                 {"Liquid Glass Refresh", "Refresh liquid glass capture.", "Liquid Glass", SignalMedium, false},
}

// IsPassiveEventType reports whether the event type is background noise.
func IsPassiveEventType(eventType string) bool {
	return passiveEventTypes[eventType]
}

// PassiveEventTypes returns the passive event types in sorted order.
func PassiveEventTypes() []string {
	return sortedKeys(passiveEventTypes)
}
