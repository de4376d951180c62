package nomis

import (
	"strconv"

	"github.com/tidwall/gjson"

	"ukcensusapi/internal/core"
)

// KeyFamily is the dataset definition returned by a dataset search.
type KeyFamily struct {
	// ID is the service's internal table id, e.g. "NM_618_1".
	ID          string
	Description string
	// Dimensions lists the concept reference of every dimension field.
	Dimensions []string
}

// Code is one entry of a code list: an area or category code and its label.
type Code struct {
	Value int
	Label string
}

const (
	keyFamiliesPath = "structure.keyfamilies"
	codeListPath    = "structure.codelists.codelist.0.code"
)

// ParseKeyFamily extracts the first key family from a dataset search response.
// A response without key families yields a not_found error.
func ParseKeyFamily(raw []byte) (*KeyFamily, error) {
	if !gjson.ValidBytes(raw) {
		return nil, core.NewUnexpectedTypeError("$", "valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.Get("structure").Exists() {
		return nil, core.NewMissingFieldError("structure")
	}

	families := doc.Get(keyFamiliesPath)
	kf := families.Get("keyfamily.0")
	if !families.Exists() || families.Type == gjson.Null || !kf.Exists() {
		return nil, core.NewNotFoundError("no matching dataset")
	}

	id, err := stringAt(kf, "id")
	if err != nil {
		return nil, err
	}
	desc, err := stringAt(kf, "name.value")
	if err != nil {
		return nil, err
	}

	dims := kf.Get("components.dimension")
	if !dims.Exists() {
		return nil, core.NewMissingFieldError("components.dimension")
	}
	if !dims.IsArray() {
		return nil, core.NewUnexpectedTypeError("components.dimension", "an array")
	}

	family := &KeyFamily{ID: id, Description: desc}
	for _, dim := range dims.Array() {
		ref, err := stringAt(dim, "conceptref")
		if err != nil {
			return nil, err
		}
		family.Dimensions = append(family.Dimensions, ref)
	}
	return family, nil
}

// ParseCodeList extracts the codes of the first code list in a definition
// response. Every code value must be an integer.
func ParseCodeList(raw []byte) ([]Code, error) {
	codes, skipped, err := ParseCodeListLenient(raw)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		return nil, core.NewUnexpectedTypeError("value", "an integer")
	}
	return codes, nil
}

// ParseCodeListLenient is ParseCodeList for lists that mix integer codes with
// others (FREQ uses letters, for example). Entries whose value is present but
// not an integer are left out and their raw values returned in skipped. A
// missing value or label is still an error.
func ParseCodeListLenient(raw []byte) (codes []Code, skipped []string, err error) {
	if !gjson.ValidBytes(raw) {
		return nil, nil, core.NewUnexpectedTypeError("$", "valid JSON")
	}
	list := gjson.GetBytes(raw, codeListPath)
	if !list.Exists() {
		return nil, nil, core.NewMissingFieldError(codeListPath)
	}
	if !list.IsArray() {
		return nil, nil, core.NewUnexpectedTypeError(codeListPath, "an array")
	}

	entries := list.Array()
	codes = make([]Code, 0, len(entries))
	for _, entry := range entries {
		label, err := stringAt(entry, "description.value")
		if err != nil {
			return nil, nil, err
		}
		value, err := intAt(entry, "value")
		if core.IsKind(err, core.KindUnexpectedType) {
			skipped = append(skipped, entry.Get("value").String())
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, Code{Value: value, Label: label})
	}
	return codes, skipped, nil
}

func stringAt(r gjson.Result, path string) (string, error) {
	v := r.Get(path)
	switch v.Type {
	case gjson.String:
		return v.Str, nil
	case gjson.Number:
		return v.Raw, nil
	}
	if !v.Exists() {
		return "", core.NewMissingFieldError(path)
	}
	return "", core.NewUnexpectedTypeError(path, "a string")
}

// intAt accepts numbers and numeric strings; code values round-trip through
// text formats as either.
func intAt(r gjson.Result, path string) (int, error) {
	v := r.Get(path)
	switch v.Type {
	case gjson.Number:
		if n, err := strconv.Atoi(v.Raw); err == nil {
			return n, nil
		}
	case gjson.String:
		if n, err := strconv.Atoi(v.Str); err == nil {
			return n, nil
		}
	}
	if !v.Exists() {
		return 0, core.NewMissingFieldError(path)
	}
	return 0, core.NewUnexpectedTypeError(path, "an integer")
}
