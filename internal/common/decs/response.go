package decs

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// oneOrMany decodes a field that the service emits as a single value, an array,
// an empty string or null.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte(`""`)):
		*o = nil
		return nil
	case data[0] == '[':
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	default:
		var one T
		if err := json.Unmarshal(data, &one); err != nil {
			// scalar placeholder where an object was expected
			if data[0] != '{' {
				*o = nil
				return nil
			}
			return err
		}
		*o = oneOrMany[T]{one}
		return nil
	}
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(string(data))
	return nil
}

// langText is a language-tagged value, either {"@lang": "pt", "#text": "..."} or a bare string.
type langText struct {
	Lang string
	Text string
}

func (l *langText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &l.Text)
	}
	var raw struct {
		Lang  string `json:"@lang"`
		Text  string `json:"#text"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Lang = strings.ToLower(strings.TrimSpace(raw.Lang))
	l.Text = strings.TrimSpace(raw.Text)
	if l.Text == "" {
		l.Text = strings.TrimSpace(raw.Value)
	}
	return nil
}

// wrapped decodes list containers such as {"descriptor": [...]}: the single
// non-attribute key holds one-or-many T. Any non-object value is an empty list.
type wrapped[T any] struct {
	Items oneOrMany[T]
}

func (w *wrapped[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	w.Items = nil
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !strings.HasPrefix(k, "@") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return json.Unmarshal(m[keys[0]], &w.Items)
}

type envelope struct {
	Response oneOrMany[decswsResponse] `json:"decsws_response"`
}

type decswsResponse struct {
	TreeID     flexString      `json:"tree_id"`
	RecordList wrapped[record] `json:"record_list"`
}

type record struct {
	MFN            flexString          `json:"@mfn"`
	DecsCode       flexString          `json:"decs_code"`
	DescriptorList wrapped[langText]   `json:"descriptor_list"`
	SynonymList    wrapped[langText]   `json:"synonym_list"`
	DefinitionList wrapped[langText]   `json:"definition_list"`
	TreeIDList     wrapped[flexString] `json:"tree_id_list"`
}

// flatRecord is a record together with the tree id of the response that carried it.
type flatRecord struct {
	record
	responseTreeID string
}

func decodeRecords(body []byte) ([]flatRecord, error) {
	var envs oneOrMany[envelope]
	if err := json.Unmarshal(body, &envs); err != nil {
		return nil, err
	}

	var out []flatRecord
	for _, env := range envs {
		for _, resp := range env.Response {
			for _, rec := range resp.RecordList.Items {
				out = append(out, flatRecord{record: rec, responseTreeID: string(resp.TreeID)})
			}
		}
	}
	return out, nil
}

// ownTreeIDs lists the tree ids carried by the record itself.
func (r flatRecord) ownTreeIDs() []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range r.TreeIDList.Items {
		s := strings.TrimSpace(string(id))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// treeIDs falls back to the response tree id for tree numbers only; it never
// identifies a record.
func (r flatRecord) treeIDs() []string {
	out := r.ownTreeIDs()
	if len(out) == 0 && r.responseTreeID != "" {
		out = append(out, r.responseTreeID)
	}
	return out
}

// byLanguage groups language-tagged values. Untagged values go to fallbackLang.
func byLanguage(values []langText, fallbackLang string) map[string][]string {
	out := map[string][]string{}
	for _, v := range values {
		if v.Text == "" {
			continue
		}
		lang := v.Lang
		if lang == "" {
			lang = fallbackLang
		}
		out[lang] = append(out[lang], v.Text)
	}
	return out
}
