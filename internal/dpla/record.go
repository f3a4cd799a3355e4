// Package dpla models aggregator catalog records and the clients that fetch
// them: the item API and the provider directory.
package dpla

import (
	"encoding/json"
	"fmt"
)

// Record is one catalog item as returned by the aggregator API. Only the
// handful of paths the pipeline actually reads are lifted into named fields;
// Raw retains the full document for audit storage. A Record is immutable
// after fetch except for SetDerivedManifest, which injects a discovered
// manifest URL back into the raw document for downstream reuse.
type Record struct {
	ID           string
	Raw          json.RawMessage
	Provider     string
	DataProvider string
	RightsURI    string
	IsShownAt    string
	MediaURLs    []string
	ManifestURL  string

	Title       string
	Creator     string
	Description string
	Date        string
	Identifier  string
}

// recordEnvelope mirrors the aggregator document shapes. Several fields are
// polymorphic across providers (string vs list vs object), so they are held
// as raw JSON and decoded through the flex helpers below.
type recordEnvelope struct {
	ID           string          `json:"id"`
	Rights       json.RawMessage `json:"rights"`
	Provider     json.RawMessage `json:"provider"`
	DataProvider json.RawMessage `json:"dataProvider"`
	IsShownAt    string          `json:"isShownAt"`
	MediaMaster  json.RawMessage `json:"mediaMaster"`
	IIIFManifest json.RawMessage `json:"iiifManifest"`
	SourceRes    struct {
		Title       json.RawMessage `json:"title"`
		Creator     json.RawMessage `json:"creator"`
		Description json.RawMessage `json:"description"`
		Date        json.RawMessage `json:"date"`
		Identifier  json.RawMessage `json:"identifier"`
		Rights      json.RawMessage `json:"rights"`
	} `json:"sourceResource"`
}

// ParseRecord decodes one aggregator document into a Record.
func ParseRecord(data []byte) (*Record, error) {
	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("dpla: parsing record: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("dpla: record has no id")
	}

	rec := &Record{
		ID:           env.ID,
		Raw:          json.RawMessage(append([]byte(nil), data...)),
		Provider:     flexName(env.Provider),
		DataProvider: flexName(env.DataProvider),
		RightsURI:    flexFirst(env.Rights),
		IsShownAt:    env.IsShownAt,
		MediaURLs:    flexList(env.MediaMaster),
		ManifestURL:  flexFirst(env.IIIFManifest),
		Title:        flexFirst(env.SourceRes.Title),
		Creator:      flexJoined(env.SourceRes.Creator),
		Description:  flexFirst(env.SourceRes.Description),
		Date:         flexDate(env.SourceRes.Date),
		Identifier:   flexFirst(env.SourceRes.Identifier),
	}
	if rec.RightsURI == "" {
		rec.RightsURI = flexFirst(env.SourceRes.Rights)
	}
	return rec, nil
}

// SetDerivedManifest records a manifest URL discovered by the eligibility
// probe, both on the typed field and inside the raw document so that the
// stored dpla-map.json side file reflects what the run actually used.
func (r *Record) SetDerivedManifest(url string) {
	r.ManifestURL = url

	var doc map[string]any
	if err := json.Unmarshal(r.Raw, &doc); err != nil {
		return
	}
	doc["iiifManifest"] = url
	patched, err := json.Marshal(doc)
	if err != nil {
		return
	}
	r.Raw = patched
}

// flexName extracts a display name from a value that may be a plain string,
// a {"name": ...} object, or a list of either.
func flexName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return flexName(list[0])
	}
	return ""
}

// flexFirst extracts a string from a value that may be a string or a list of
// strings, taking the first element.
func flexFirst(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// flexList extracts a string slice from a value that may be a single string
// or a list of strings.
func flexList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}

// flexJoined extracts all strings from a string-or-list value joined with
// "; ", used for multi-valued descriptive fields like creator.
func flexJoined(raw json.RawMessage) string {
	values := flexList(raw)
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		joined := values[0]
		for _, v := range values[1:] {
			joined += "; " + v
		}
		return joined
	}
}

// flexDate extracts a display date from a value that may be a string, a
// {"displayDate": ...} object, or a list of either.
func flexDate(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		DisplayDate string `json:"displayDate"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.DisplayDate != "" {
		return obj.DisplayDate
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return flexDate(list[0])
	}
	return ""
}
