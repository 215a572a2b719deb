package extract

// Organization is one legal entity an award can resolve to.
type Organization struct {
	Name  string
	Email string
	Phone string
	City  string
}

// extensionRoot returns the efext:EformsExtension container when the notice
// wraps its payload in UBL extensions, or the document root otherwise. When
// several extensions are present only the first is considered.
func extensionRoot(root map[string]any) map[string]any {
	exts := Normalize(childMap(root, "ext:UBLExtensions")["ext:UBLExtension"])
	if len(exts) == 0 {
		return root
	}
	content := childMap(exts[0], "ext:ExtensionContent")
	if ef := childMap(content, "efext:EformsExtension"); ef != nil {
		return ef
	}
	return root
}

// BuildOrgIndex maps organization identifiers to contact records. Recent
// notices keep organizations under the EformsExtension, older ones at the
// document root; the first populated location wins, the two are never
// merged. Entries without a party identification are unreachable by any
// tendering party and are skipped. Contact fields default to "" so the
// resolver never handles nulls.
func BuildOrgIndex(root map[string]any) map[string]Organization {
	orgs := Normalize(childMap(extensionRoot(root), "efac:Organizations")["efac:Organization"])
	if len(orgs) == 0 {
		orgs = Normalize(childMap(root, "efac:Organizations")["efac:Organization"])
	}

	index := make(map[string]Organization)
	for _, org := range orgs {
		company := childMap(org, "efac:Company")
		orgID := textValue(childMap(company, "cac:PartyIdentification")["cbc:ID"])
		if orgID == "" {
			continue
		}
		contact := childMap(company, "cac:Contact")
		index[orgID] = Organization{
			Name:  textValue(childMap(company, "cac:PartyName")["cbc:Name"]),
			Email: textValue(contact["cbc:ElectronicMail"]),
			Phone: textValue(contact["cbc:Telephone"]),
			City:  textValue(childMap(company, "cac:PostalAddress")["cbc:CityName"]),
		}
	}
	return index
}
