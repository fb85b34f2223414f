// Package jsonschema sanitizes tool-parameter JSON schemas for providers
// that mandate strict mode (every object requires additionalProperties:false
// and every declared property marked required), per spec §6.1.
package jsonschema

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SanitizeStrict walks a JSON-schema document and, recursively for every
// object schema, sets "additionalProperties": false and lists every key
// under "properties" in "required". It returns the sanitized document; the
// input is left unmodified.
func SanitizeStrict(schemaJSON []byte) ([]byte, error) {
	return sanitizeValue(schemaJSON, "")
}

func sanitizeValue(doc []byte, path string) ([]byte, error) {
	root := pathOrRoot(path)
	node := gjson.GetBytes(doc, root)
	if !node.Exists() {
		return doc, nil
	}

	var err error
	if node.Get("type").String() == "object" {
		doc, err = setAtPath(doc, path, "additionalProperties", false)
		if err != nil {
			return nil, err
		}

		props := node.Get("properties")
		if props.Exists() {
			var required []string
			props.ForEach(func(key, _ gjson.Result) bool {
				required = append(required, key.String())
				return true
			})
			doc, err = setAtPath(doc, path, "required", required)
			if err != nil {
				return nil, err
			}

			props.ForEach(func(key, _ gjson.Result) bool {
				childPath := joinPath(path, "properties", key.String())
				doc, err = sanitizeValue(doc, childPath)
				return err == nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	if items := node.Get("items"); items.Exists() {
		doc, err = sanitizeValue(doc, joinPath(path, "items"))
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func pathOrRoot(path string) string {
	if path == "" {
		return "@this"
	}
	return path
}

func joinPath(base string, segments ...string) string {
	p := base
	for _, s := range segments {
		if p == "" {
			p = s
		} else {
			p = p + "." + s
		}
	}
	return p
}

func setAtPath(doc []byte, path, key string, value any) ([]byte, error) {
	full := key
	if path != "" {
		full = path + "." + key
	}
	return sjson.SetBytes(doc, full, value)
}
