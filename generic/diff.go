package generic

import (
	"fmt"
	"strconv"
)

// =============================================================================
// FIELD SNAPSHOTS - Serialized view of a record's editable fields
// =============================================================================

// FieldValue is one editable field rendered to its serialized form.
// List-valued fields (deposits) keep their elements so a diff can name
// the index that changed instead of the whole field.
type FieldValue struct {
	Name   string
	Value  string
	List   []string
	IsList bool
}

func ScalarField(name, value string) FieldValue {
	return FieldValue{Name: name, Value: value}
}

func ListField(name string, values []string) FieldValue {
	return FieldValue{Name: name, List: values, IsList: true}
}

func BoolString(b bool) string { return strconv.FormatBool(b) }

// FieldChange is one differing value between two snapshots.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// IndexedField names one element of a list field: deposits[2].
func IndexedField(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}

// Diff compares two snapshots field by field, in the order of before.
// Fields present only in after are reported with an empty old value.
// List fields are compared element by element; a grown or shrunk list
// reports the added or removed indexes with "" on the missing side.
func Diff(before, after []FieldValue) []FieldChange {
	afterByName := make(map[string]FieldValue, len(after))
	for _, f := range after {
		afterByName[f.Name] = f
	}
	seen := make(map[string]bool, len(before))

	var changes []FieldChange
	for _, b := range before {
		seen[b.Name] = true
		a, ok := afterByName[b.Name]
		if !ok {
			a = FieldValue{Name: b.Name, IsList: b.IsList}
		}
		changes = append(changes, diffField(b, a)...)
	}
	for _, a := range after {
		if seen[a.Name] {
			continue
		}
		changes = append(changes, diffField(FieldValue{Name: a.Name, IsList: a.IsList}, a)...)
	}
	return changes
}

func diffField(b, a FieldValue) []FieldChange {
	if !b.IsList && !a.IsList {
		if b.Value == a.Value {
			return nil
		}
		return []FieldChange{{Field: b.Name, OldValue: b.Value, NewValue: a.Value}}
	}

	n := len(b.List)
	if len(a.List) > n {
		n = len(a.List)
	}
	var changes []FieldChange
	for i := 0; i < n; i++ {
		var oldV, newV string
		if i < len(b.List) {
			oldV = b.List[i]
		}
		if i < len(a.List) {
			newV = a.List[i]
		}
		if oldV != newV {
			changes = append(changes, FieldChange{Field: IndexedField(b.Name, i), OldValue: oldV, NewValue: newV})
		}
	}
	return changes
}
