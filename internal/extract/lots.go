package extract

// LotInfo is the searchable view of one procurement lot.
type LotInfo struct {
	Title string
	// FullText is title and description joined with a space, the haystack
	// for keyword matching.
	FullText string
}

// BuildLotIndex maps lot identifiers to their title and searchable text.
// Lots without a resolvable identifier cannot be referenced by any lot
// result and are not indexed.
func BuildLotIndex(root map[string]any) map[string]LotInfo {
	index := make(map[string]LotInfo)
	for _, lot := range Normalize(root["cac:ProcurementProjectLot"]) {
		lotID := textValue(lot["cbc:ID"])
		if lotID == "" {
			continue
		}
		project := childMap(lot, "cac:ProcurementProject")
		title := textValue(project["cbc:Name"])
		desc := textValue(project["cbc:Description"])
		index[lotID] = LotInfo{
			Title:    title,
			FullText: title + " " + desc,
		}
	}
	return index
}
