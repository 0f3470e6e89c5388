package taxonomy

import "strings"

// Canonical tool identifiers.
const (
	ToolDashboard          = "dashboard"
	ToolCollapsedDashboard = "collapsed-dashboard"
	ToolPalette            = "palettable"
	ToolFrameGallery       = "frame-gallery"
	ToolImport             = "import-tool"
	ToolUnitConverter      = "unit-converter"
	ToolGame               = "wayfall-game"
	ToolLiquidGlass        = "liquid-glass"
	ToolProfile            = "profile"
	ToolSystem             = "system"
	ToolUnknown            = "unknown"
)

// toolAliases collapses legacy and alternate spellings onto canonical ids.
var toolAliases = map[string]string{
	"dashboard":           ToolDashboard,
	"plugin-dashboard":    ToolDashboard,
	"plugin_dashboard":    ToolDashboard,
	"main":                ToolDashboard,
	"home":                ToolDashboard,
	"collapsed-dashboard": ToolCollapsedDashboard,
	"collapsed_dashboard": ToolCollapsedDashboard,
	"collapsed":           ToolCollapsedDashboard,
	"palettable":          ToolPalette,
	"palette":             ToolPalette,
	"palette-tool":        ToolPalette,
	"palette_tool":        ToolPalette,
	"palettes":            ToolPalette,
	"frame-gallery":       ToolFrameGallery,
	"frame_gallery":       ToolFrameGallery,
	"framegallery":        ToolFrameGallery,
	"gallery":             ToolFrameGallery,
	"import-tool":         ToolImport,
	"import_tool":         ToolImport,
	"importer":            ToolImport,
	"import":              ToolImport,
	"unit-converter":      ToolUnitConverter,
	"unit_converter":      ToolUnitConverter,
	"converter":           ToolUnitConverter,
	"wayfall-game":        ToolGame,
	"wayfall_game":        ToolGame,
	"wayfall":             ToolGame,
	"game":                ToolGame,
	"liquid-glass":        ToolLiquidGlass,
	"liquid_glass":        ToolLiquidGlass,
	"liquidglass":         ToolLiquidGlass,
	"profile":             ToolProfile,
	"user-profile":        ToolProfile,
	"user_profile":        ToolProfile,
	"system":              ToolSystem,
	"unknown":             ToolUnknown,
	"unattributed":        ToolUnknown,
	"null":                ToolUnknown,
	"undefined":           ToolUnknown,
	"none":                ToolUnknown,
}

var toolLabels = map[string]string{
	ToolDashboard:          "Plugin Dashboard",
	ToolCollapsedDashboard: "Collapsed Dashboard",
	ToolPalette:            "Palette Tool",
	ToolFrameGallery:       "Frame Gallery",
	ToolImport:             "Import Tool",
	ToolUnitConverter:      "Unit Converter",
	ToolGame:               "Wayfall Mini Game",
	ToolLiquidGlass:        "Liquid Glass",
	ToolProfile:            "User Profile",
	ToolUnknown:            "Unattributed / Legacy",
	ToolSystem:             "System",
	"eps":                  "EPS Importer",
	"psd":                  "PSD Importer",
	"ai":                   "AI Importer",
}

// actionTools maps action keys and feature event types to the tool that
// emits them.
var actionTools = map[string]string{
	"toggle-profile":              ToolProfile,
	"toggle-game":                 ToolGame,
	"toggle-palette":              ToolPalette,
	"toggle-frame-gallery":        ToolFrameGallery,
	"toggle-import-tool":          ToolImport,
	"toggle-unit-converter":       ToolUnitConverter,
	"toggle-liquid-glass":         ToolLiquidGlass,
	"toggle-collapse":             ToolDashboard,
	"resize-expanded":             ToolDashboard,
	"resize-window":               ToolDashboard,
	"tool-collapsed":              ToolCollapsedDashboard,
	"palette-to-collapsed":        ToolCollapsedDashboard,
	"get-all-frames":              ToolFrameGallery,
	"export-frames-with-dpi":      ToolFrameGallery,
	"export-zip-with-password":    ToolFrameGallery,
	"toggle-manual-selection":     ToolFrameGallery,
	"clear-manual-selection":      ToolFrameGallery,
	"get-manual-selection-state":  ToolFrameGallery,
	"export-frame":                ToolFrameGallery,
	"convert-units":               ToolUnitConverter,
	"create-frame":                ToolUnitConverter,
	"apply-preset":                ToolUnitConverter,
	"save-preset":                 ToolUnitConverter,
	"delete-preset":               ToolUnitConverter,
	"load-presets":                ToolUnitConverter,
	"load-liked-presets":          ToolUnitConverter,
	"save-liked-presets":          ToolUnitConverter,
	"check-font-availability":     ToolImport,
	"import-svg-to-figma":         ToolImport,
	"get-font":                    ToolImport,
	"export-palette":              ToolPalette,
	"export-color-schemes":        ToolPalette,
	"export-selected-options":     ToolPalette,
	"start-eyedropper":            ToolPalette,
	"color-copied":                ToolPalette,
	"emailEntered":                ToolPalette,
	"oauth-token":                 ToolProfile,
	"open-auth-url":               ToolProfile,
	"copy-to-clipboard":           ToolProfile,
	"get-token":                   ToolProfile,
	"store-token":                 ToolProfile,
	"clear-token":                 ToolProfile,
	"get-session":                 ToolProfile,
	"store-session":               ToolProfile,
	"clear-session":               ToolProfile,
	"store-avatar":                ToolProfile,
	"avatar-selected":             ToolProfile,
	"lg-refresh":                  ToolLiquidGlass,
	"palette_export_performed":    ToolPalette,
	"import_file_selected":        ToolImport,
	"import_conversion_completed": ToolImport,
	"importer_favorite_changed":   ToolImport,
	"pdf_export_requested":        ToolFrameGallery,
	"pdf_merge_group_exported":    ToolFrameGallery,
	"pdf_individual_exported":     ToolFrameGallery,
	"pdf_export_completed":        ToolFrameGallery,
}

// substringTools is consulted in order after the exact actionTools lookup.
var substringTools = []struct {
	subs []string
	tool string
}{
	{[]string{"palette", "color", "eyedropper"}, ToolPalette},
	{[]string{"auth", "token", "session", "profile", "avatar"}, ToolProfile},
	{[]string{"frame", "pdf", "zip"}, ToolFrameGallery},
	{[]string{"import", "svg", "font"}, ToolImport},
	{[]string{"unit", "preset", "convert"}, ToolUnitConverter},
	{[]string{"wayfall", "game"}, ToolGame},
	{[]string{"liquid", "glass", "lg-"}, ToolLiquidGlass},
}

// lifecycleEventTypes are generic plugin-shell events that belong to the
// dashboard when nothing more specific is known.
var lifecycleEventTypes = map[string]bool{
	"plugin_session_started":      true,
	"plugin_session_ended":        true,
	"session_heartbeat":           true,
	"plugin_message":              true,
	"ui_session_started":          true,
	"ui_heartbeat":                true,
	"ui_before_unload":            true,
	"ui_visibility_change":        true,
	"ui_resize":                   true,
	"ui_state_snapshot":           true,
	"user_context_changed":        true,
	"ui_user_authenticated":       true,
	"ui_user_unauthenticated":     true,
	"analytics_transport_updated": true,
}

// NormalizeTool maps a raw tool hint onto its canonical id. Unlisted hints
// come back lowercased and trimmed with ok=false.
func NormalizeTool(raw string) (tool string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, found := toolAliases[key]; found {
		return canonical, true
	}
	return key, false
}

// InferTool resolves the canonical tool of an event. hints are explicit
// tool values in priority order (event, payload.uiTool, payload.tool,
// payload.element.toolId, envelope); the payload's action fields and the
// event type are used when no hint resolves.
func InferTool(hints []string, eventType string, payload map[string]any) string {
	for _, h := range hints {
		if tool, ok := NormalizeTool(h); ok && tool != ToolUnknown {
			return tool
		}
	}

	var actions []string
	for _, field := range []string{"action", "messageType", "type"} {
		if s := stringField(payload, field); s != "" {
			actions = append(actions, s)
		}
	}
	for _, a := range actions {
		if tool, ok := actionTools[a]; ok {
			return tool
		}
	}
	if tool, ok := actionTools[eventType]; ok {
		return tool
	}
	for _, a := range actions {
		lowered := strings.ToLower(a)
		for _, st := range substringTools {
			if containsAny(st.subs...)(lowered) {
				return st.tool
			}
		}
	}

	if lifecycleEventTypes[eventType] {
		return ToolDashboard
	}

	for _, h := range hints {
		if tool, _ := NormalizeTool(h); tool != "" && tool != ToolUnknown {
			return tool
		}
	}
	return ToolUnknown
}

// LabelTool returns the display label of a tool id.
func LabelTool(tool string) string {
	key := strings.ToLower(strings.TrimSpace(tool))
	if key == "" {
		return "Unknown Tool"
	}
	if canonical, ok := toolAliases[key]; ok {
		key = canonical
	}
	if label, ok := toolLabels[key]; ok {
		return label
	}
	return Humanize(key)
}

// KnownTools returns the canonical tool ids in sorted order.
func KnownTools() []string {
	seen := make(map[string]bool)
	for _, canonical := range toolAliases {
		seen[canonical] = true
	}
	return sortedKeys(seen)
}
