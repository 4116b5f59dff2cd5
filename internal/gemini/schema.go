package gemini

import (
	"fmt"
	"math"
	"sort"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

// Conform checks that raw is a JSON document matching schema. Required
// properties must be present and every present value must carry the
// declared type; arrays are checked item by item.
func Conform(raw []byte, schema *genai.Schema) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: response is not valid JSON", ErrSchemaMismatch)
	}
	if schema == nil {
		return nil
	}
	return conform(gjson.ParseBytes(raw), schema, "$")
}

func conform(v gjson.Result, s *genai.Schema, path string) error {
	if s == nil {
		return nil
	}

	if v.Type == gjson.Null {
		if s.Nullable != nil && *s.Nullable {
			return nil
		}
		return mismatch(path, "is null")
	}

	switch s.Type {
	case genai.TypeObject:
		if !v.IsObject() {
			return mismatch(path, "must be an object")
		}
		fields := v.Map()
		for _, name := range s.Required {
			if _, ok := fields[name]; !ok {
				return mismatch(path+"."+name, "is required")
			}
		}
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fv, ok := fields[name]
			if !ok {
				continue
			}
			if err := conform(fv, s.Properties[name], path+"."+name); err != nil {
				return err
			}
		}

	case genai.TypeArray:
		if !v.IsArray() {
			return mismatch(path, "must be an array")
		}
		for i, item := range v.Array() {
			if err := conform(item, s.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case genai.TypeString:
		if v.Type != gjson.String {
			return mismatch(path, "must be a string")
		}

	case genai.TypeNumber:
		if v.Type != gjson.Number {
			return mismatch(path, "must be a number")
		}

	case genai.TypeInteger:
		if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
			return mismatch(path, "must be an integer")
		}

	case genai.TypeBoolean:
		if v.Type != gjson.True && v.Type != gjson.False {
			return mismatch(path, "must be a boolean")
		}
	}

	return nil
}

func mismatch(path, problem string) error {
	return fmt.Errorf("%w: %s %s", ErrSchemaMismatch, path, problem)
}

// Object builds an object schema whose listed properties are all required
func Object(properties map[string]*genai.Schema) *genai.Schema {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	sort.Strings(required)
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

// String builds a string schema with a description
func String(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

// Integer builds an integer schema with a description
func Integer(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: description}
}

// ArrayOf builds an array schema
func ArrayOf(items *genai.Schema, description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items, Description: description}
}
