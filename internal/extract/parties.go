package extract

// BuildPartyIndex maps tendering-party identifiers to the organization
// identifiers of their members. A consortium bid lists several member
// organizations; member order and duplicates are kept as given, since
// deduplication only happens when result records are merged.
//
// Tendering parties sit directly under the EformsExtension or, on some
// notices, under efac:NoticeResult. Extension root wins, the locations are
// never merged.
func BuildPartyIndex(root map[string]any) map[string][]string {
	ext := extensionRoot(root)
	parties := Normalize(ext["efac:TenderingParty"])
	if len(parties) == 0 {
		parties = Normalize(childMap(ext, "efac:NoticeResult")["efac:TenderingParty"])
	}

	index := make(map[string][]string)
	for _, party := range parties {
		partyID := textValue(party["cbc:ID"])
		if partyID == "" {
			continue
		}
		var members []string
		for _, tenderer := range Normalize(party["efac:Tenderer"]) {
			if orgID := textValue(tenderer["cbc:ID"]); orgID != "" {
				members = append(members, orgID)
			}
		}
		index[partyID] = members
	}
	return index
}
