package analyzer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// Size bucket labels, smallest first.
const (
	BucketUnder5MB  = "<5MB"
	Bucket5To10MB   = "5-10MB"
	Bucket10To20MB  = "10-20MB"
	BucketOver20MB  = ">20MB"
	BucketUnknown   = "unknown"
	bytesPerMB      = 1024 * 1024
	collapsedToolID = taxonomy.ToolCollapsedDashboard
	expandedToolID  = taxonomy.ToolDashboard
)

var sizeBuckets = []string{BucketUnder5MB, Bucket5To10MB, Bucket10To20MB, BucketOver20MB, BucketUnknown}

var (
	dpiClasses         = []string{"72", "150", "300", "other"}
	compressionClasses = []string{"low", "medium", "high", "unknown"}
	colorModeClasses   = []string{"RGB", "CMYK", "UNKNOWN"}
)

// Feature event types.
const (
	paletteExportEvent     = "palette_export_performed"
	toolFavoriteEvent      = "tool_favorite_changed"
	importerFavoriteEvent  = "importer_favorite_changed"
	importFileEvent        = "import_file_selected"
	pdfExportRequestEvent  = "pdf_export_requested"
	pdfMergeGroupEvent     = "pdf_merge_group_exported"
	pdfExportCompleteEvent = "pdf_export_completed"
	toolTimeSpentEvent     = "tool_time_spent"
)

// SizeBucket classifies a byte count.
func SizeBucket(bytes float64) string {
	switch mb := bytes / bytesPerMB; {
	case bytes < 0:
		return BucketUnknown
	case mb < 5:
		return BucketUnder5MB
	case mb < 10:
		return Bucket5To10MB
	case mb < 20:
		return Bucket10To20MB
	default:
		return BucketOver20MB
	}
}

// sizeBucketOf reads a byte count from the first present bytes key, else a
// client-computed bucket label from the first present bucket key.
func sizeBucketOf(payload map[string]any, byteKeys, bucketKeys []string) string {
	for _, k := range byteKeys {
		if f, ok := toNumber(payload[k]); ok {
			return SizeBucket(f)
		}
	}
	for _, k := range bucketKeys {
		if b := normalizeBucketLabel(stringField(payload, k)); b != "" {
			return b
		}
	}
	return BucketUnknown
}

func normalizeBucketLabel(label string) string {
	compact := strings.ToUpper(strings.ReplaceAll(label, " ", ""))
	for _, b := range sizeBuckets {
		if strings.ToUpper(b) == compact {
			return b
		}
	}
	return ""
}

// DPIClass maps a DPI value onto 72, 150, 300 or other.
func DPIClass(v any) string {
	f, ok := toNumber(v)
	if !ok {
		return "other"
	}
	switch f {
	case 72, 150, 300:
		return strconv.Itoa(int(f))
	}
	return "other"
}

// CompressionClass maps a compression setting onto low, medium, high or
// unknown. "optimal" is reported as medium.
func CompressionClass(v any) string {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return "low"
	case "medium", "optimal":
		return "medium"
	case "high":
		return "high"
	}
	return "unknown"
}

// ColorModeClass maps a color mode onto RGB, CMYK or UNKNOWN.
func ColorModeClass(v any) string {
	s, _ := v.(string)
	switch m := strings.ToUpper(strings.TrimSpace(s)); m {
	case "RGB", "CMYK":
		return m
	}
	return "UNKNOWN"
}

// paletteKeys returns the export keys of a palette export event:
// "selected:<option>" per option of a multi-select export, else
// "<exportType>:<mode>".
func paletteKeys(payload map[string]any) []string {
	exportType := strings.ToLower(stringField(payload, "exportType"))
	if options, ok := payload["selectedOptions"].([]any); ok && len(options) > 0 {
		keys := make([]string, 0, len(options))
		for _, o := range options {
			if s, ok := o.(string); ok && strings.TrimSpace(s) != "" {
				keys = append(keys, "selected:"+strings.TrimSpace(s))
			}
		}
		if len(keys) > 0 {
			return keys
		}
	}
	if exportType == "selected" {
		if option := stringField(payload, "option"); option != "" {
			return []string{"selected:" + option}
		}
	}
	if exportType == "" {
		exportType = "unknown"
	}
	mode := stringField(payload, "mode")
	if mode == "" {
		mode = "unknown"
	}
	return []string{exportType + ":" + mode}
}

// favoriteChange reports whether e adds or removes a favorite and for which
// tool or importer. ok is false for events that are not favorite changes.
func favoriteChange(e event.Event, action string) (target string, add, ok bool) {
	lower := strings.ToLower(action)
	isFavorite := e.EventType == toolFavoriteEvent || e.EventType == importerFavoriteEvent ||
		strings.HasPrefix(lower, "favorite:") || strings.HasPrefix(lower, "importer-favorite:")
	if !isFavorite {
		return "", false, false
	}

	target = stringField(e.Payload, "toolId")
	if target == "" {
		target = stringField(e.Payload, "importerId")
	}
	if target == "" {
		target = e.Tool
	}

	// An add is a literal isFavorited true or an action ending in :add;
	// any other explicit flag or :remove suffix is a removal.
	flag, flagged := e.Payload["isFavorited"]
	switch {
	case flag == true || strings.HasSuffix(lower, ":add"):
		return target, true, true
	case flagged || strings.HasSuffix(lower, ":remove"):
		return target, false, true
	}
	return "", false, false
}

// mergePageCounts returns the page count of every merged PDF an event
// reports. Per-group events report one; export completion events may list
// several under mergeGroups.
func mergePageCounts(e event.Event) []int {
	switch e.EventType {
	case pdfMergeGroupEvent:
		if n, ok := toNumber(e.Payload["pageCount"]); ok && n > 0 {
			return []int{int(n)}
		}
	case pdfExportCompleteEvent:
		groups, _ := e.Payload["mergeGroups"].([]any)
		counts := make([]int, 0, len(groups))
		for _, g := range groups {
			var n float64
			var ok bool
			if obj, isObj := g.(map[string]any); isObj {
				n, ok = toNumber(obj["pageCount"])
			} else {
				n, ok = toNumber(g)
			}
			if ok && n > 0 {
				counts = append(counts, int(n))
			}
		}
		return counts
	}
	return nil
}

// BuildFeatures folds events into feature counters. The fold is
// order-independent except for tie-breaks in the ranked listings.
//
// Merge statistics count both per-group events and the mergeGroups list of
// completion events, so an export that emits both is counted twice.
func BuildFeatures(events []event.Event) Features {
	palettes := newCounter()
	favorites := newCounter()
	importBuckets := newCounter()
	exportBuckets := newCounter()
	dpi := newCounter()
	compression := newCounter()
	colorModes := newCounter()
	merges := make(map[int]int)

	var f Features
	kpis := &f.KPIs

	for _, e := range events {
		action := taxonomy.ResolveAction(e.EventType, e.Payload)

		if e.EventType == paletteExportEvent {
			kpis.PaletteExportEvents++
			for _, k := range paletteKeys(e.Payload) {
				palettes.add(k, 1)
			}
		}

		if target, add, ok := favoriteChange(e, action); ok {
			if add {
				kpis.FavoriteAdds++
				favorites.add(target, 1)
			} else {
				kpis.FavoriteRemoves++
			}
		}

		switch e.EventType {
		case importFileEvent:
			importBuckets.add(sizeBucketOf(e.Payload,
				[]string{"fileSizeBytes", "sizeBytes"},
				[]string{"fileSizeBucket"}), 1)

		case pdfExportRequestEvent:
			kpis.ExportRuns++
			if enabled, _ := boolField(e.Payload, "passwordEnabled"); enabled {
				kpis.PasswordEnabledRuns++
			} else {
				kpis.PasswordDisabledRuns++
			}
			dpi.add(DPIClass(e.Payload["dpi"]), 1)
			compression.add(CompressionClass(e.Payload["compression"]), 1)
			colorModes.add(ColorModeClass(e.Payload["colorMode"]), 1)

		case pdfExportCompleteEvent:
			exportBuckets.add(sizeBucketOf(e.Payload,
				[]string{"outputSizeBytes", "zipSizeBytes", "totalPdfSizeBytes"},
				[]string{"outputSizeBucket", "zipSizeBucket", "totalPdfSizeBucket"}), 1)

		case toolTimeSpentEvent:
			d := numberField(e.Payload, "durationMs")
			switch e.Tool {
			case collapsedToolID:
				kpis.CollapsedModeMs += d
			case expandedToolID:
				kpis.ExpandedModeMs += d
			}
		}

		for _, pages := range mergePageCounts(e) {
			kpis.MergedPDFGroups++
			kpis.MergedPagesTotal += pages
			kpis.MaxPagesPerMerge = max(kpis.MaxPagesPerMerge, pages)
			merges[pages]++
		}
	}

	kpis.CollapsedModeMs = round2(kpis.CollapsedModeMs)
	kpis.ExpandedModeMs = round2(kpis.ExpandedModeMs)
	kpis.AvgPagesPerMerge = round2(ratio(float64(kpis.MergedPagesTotal), float64(kpis.MergedPDFGroups)))
	f.ModeTime = ModeTime{CollapsedMs: kpis.CollapsedModeMs, ExpandedMs: kpis.ExpandedModeMs}

	f.PaletteExports = []PaletteCount{}
	for _, k := range palettes.ranked(0) {
		f.PaletteExports = append(f.PaletteExports, PaletteCount{Palette: k, Count: palettes.counts[k]})
	}
	if len(f.PaletteExports) > 0 {
		top := f.PaletteExports[0]
		kpis.TopPaletteExport = &top
	}

	f.FavoritedTools = []ToolCount{}
	for _, k := range favorites.ranked(0) {
		f.FavoritedTools = append(f.FavoritedTools, ToolCount{Tool: k, Count: favorites.counts[k]})
	}
	if len(f.FavoritedTools) > 0 {
		top := f.FavoritedTools[0]
		kpis.TopFavoritedTool = &top
	}

	f.ImportSizeBuckets = bucketCounts(importBuckets)
	f.ExportSizeBuckets = bucketCounts(exportBuckets)

	f.DPIBreakdown = make([]DPICount, 0, len(dpiClasses))
	for _, c := range dpiClasses {
		f.DPIBreakdown = append(f.DPIBreakdown, DPICount{DPI: c, Count: dpi.counts[c]})
	}
	f.CompressionBreakdown = make([]CompressionCount, 0, len(compressionClasses))
	for _, c := range compressionClasses {
		f.CompressionBreakdown = append(f.CompressionBreakdown, CompressionCount{Compression: c, Count: compression.counts[c]})
	}
	f.ColorModeBreakdown = make([]ColorModeCount, 0, len(colorModeClasses))
	for _, c := range colorModeClasses {
		f.ColorModeBreakdown = append(f.ColorModeBreakdown, ColorModeCount{ColorMode: c, Count: colorModes.counts[c]})
	}

	pages := make([]int, 0, len(merges))
	for p := range merges {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	f.MergeDistribution = make([]MergeCount, 0, len(pages))
	for _, p := range pages {
		f.MergeDistribution = append(f.MergeDistribution, MergeCount{Pages: p, Count: merges[p]})
	}

	return f
}

// bucketCounts lists every size bucket in size order, zeros included.
func bucketCounts(c *counter) []BucketCount {
	out := make([]BucketCount, 0, len(sizeBuckets))
	for _, b := range sizeBuckets {
		out = append(out, BucketCount{Bucket: b, Count: c.counts[b]})
	}
	return out
}
