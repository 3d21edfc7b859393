package manifest

import (
	"bytes"
	"encoding/json"
)

// keySet describes the fields an object may carry, matched case-sensitively.
// A nil *keySet accepts any value. each, when set, applies to the value of
// every key of an object whose keys are free-form.
type keySet struct {
	keys map[string]*keySet
	each *keySet
}

var repositoryKeys = &keySet{keys: map[string]*keySet{"type": nil, "url": nil}}

var manifestKeys = &keySet{keys: map[string]*keySet{
	"$schema":      nil,
	"version":      nil,
	"description":  nil,
	"proposedName": nil,
	"repository":   repositoryKeys,
	"source": {keys: map[string]*keySet{
		"shasum": nil,
		"location": {keys: map[string]*keySet{
			"npm": {keys: map[string]*keySet{
				"filePath":    nil,
				"iconPath":    nil,
				"packageName": nil,
				"registry":    nil,
			}},
		}},
		"files":   nil,
		"locales": nil,
	}},
	"initialConnections": nil,
	"initialPermissions": nil,
	"manifestVersion":    nil,
	"platformVersion":    nil,
}}

var localizationKeys = &keySet{keys: map[string]*keySet{
	"locale": nil,
	"messages": {each: &keySet{keys: map[string]*keySet{
		"message":     nil,
		"description": nil,
	}}},
}}

// checkKeys walks the objects of data described by ks and rejects keys that
// are unknown or repeated. encoding/json folds case when matching struct
// fields and keeps the last duplicate, so "proposedname" would otherwise
// silently replace "proposedName". Values that are not objects are left to
// the typed decode to report.
func checkKeys(data []byte, ks *keySet, prefix string, fail func(string, string, ...any) error) error {
	if ks == nil {
		return nil
	}
	fields, order, ok := objectFields(data)
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(order))
	for _, key := range order {
		field := key
		if prefix != "" {
			field = prefix + "." + key
		}
		if seen[key] {
			return fail(field, "Expected a field to appear once, but received it more than once")
		}
		seen[key] = true

		child := ks.each
		if ks.keys != nil {
			var known bool
			if child, known = ks.keys[key]; !known {
				return fail(field, "Expected a known field, but received an unknown one")
			}
		}
		if err := checkKeys(fields[key], child, field, fail); err != nil {
			return err
		}
	}
	return nil
}

// objectFields splits a JSON object into its raw member values and the keys
// in document order, duplicates included. ok is false when data is not a
// single well-formed object.
func objectFields(data []byte) (map[string]json.RawMessage, []string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, nil, false
	}

	fields := map[string]json.RawMessage{}
	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, false
		}
		key, isKey := tok.(string)
		if !isKey {
			return nil, nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, false
		}
		fields[key] = value
		order = append(order, key)
	}
	return fields, order, true
}
