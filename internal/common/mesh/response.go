package mesh

import (
	"encoding/json"
	"strings"
)

type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

// esummaryResponse keeps documents raw because their shape varies between records.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
	Error  string                     `json:"error"`
}

type summaryDoc struct {
	UID       string   `json:"uid"`
	MeshUI    string   `json:"ds_meshui"`
	MeshTerms []string `json:"ds_meshterms"`
	ScopeNote string   `json:"ds_scopenote"`
}

// docs returns the summary documents keyed by uid, skipping the "uids" index entry.
func (r esummaryResponse) docs() map[string]map[string]json.RawMessage {
	out := make(map[string]map[string]json.RawMessage, len(r.Result))
	for uid, raw := range r.Result {
		if uid == "uids" {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		out[uid] = fields
	}
	return out
}

func decodeSummaryDoc(fields map[string]json.RawMessage) summaryDoc {
	var d summaryDoc
	decodeField(fields, "uid", &d.UID)
	decodeField(fields, "ds_meshui", &d.MeshUI)
	decodeField(fields, "ds_meshterms", &d.MeshTerms)
	decodeField(fields, "ds_scopenote", &d.ScopeNote)
	d.ScopeNote = strings.TrimSpace(d.ScopeNote)
	return d
}

// decodeField ignores absent or mistyped fields.
func decodeField(fields map[string]json.RawMessage, key string, dst interface{}) {
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, dst)
	}
}

// treeNumberExtractor tries one known response shape.
type treeNumberExtractor func(fields map[string]json.RawMessage) []string

// treeNumberChain is tried in order; the first extractor returning values wins.
var treeNumberChain = []treeNumberExtractor{
	treeNumbersFromStringList,
	treeNumbersFromIndexLinks,
}

var treeNumberListKeys = []string{"ds_treenumbers", "treenumbers", "treeNumbers", "tree_numbers"}

var treeNumberLinkKeys = []string{"treenum", "treeNumber", "tree_number"}

func extractTreeNumbers(fields map[string]json.RawMessage) []string {
	for _, extract := range treeNumberChain {
		if nums := extract(fields); len(nums) > 0 {
			return nums
		}
	}
	return []string{}
}

func treeNumbersFromStringList(fields map[string]json.RawMessage) []string {
	for _, key := range treeNumberListKeys {
		var nums []string
		decodeField(fields, key, &nums)
		if nums = cleanTreeNumbers(nums); len(nums) > 0 {
			return nums
		}
	}
	return nil
}

func treeNumbersFromIndexLinks(fields map[string]json.RawMessage) []string {
	var links []map[string]json.RawMessage
	decodeField(fields, "ds_idxlinks", &links)

	var nums []string
	for _, link := range links {
		for _, key := range treeNumberLinkKeys {
			var num string
			decodeField(link, key, &num)
			if num != "" {
				nums = append(nums, num)
				break
			}
		}
	}
	return cleanTreeNumbers(nums)
}

func cleanTreeNumbers(nums []string) []string {
	seen := make(map[string]bool, len(nums))
	out := make([]string, 0, len(nums))
	for _, n := range nums {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
