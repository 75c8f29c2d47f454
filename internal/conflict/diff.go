package conflict

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"

	"github.com/iudanet/booksync/internal/models"
)

// Diff compares local and remote field maps against an optional base.
// Without a base every differing field is reported as changed on both sides.
func Diff(local, remote, base map[string]json.RawMessage) []models.FieldConflict {
	names := fieldNames(local, remote, base)

	var out []models.FieldConflict
	for _, name := range names {
		l, r := local[name], remote[name]
		if valuesEqual(l, r) {
			continue
		}

		fc := models.FieldConflict{
			Field:       name,
			LocalValue:  l,
			RemoteValue: r,
		}

		switch {
		case base == nil:
			fc.Kind = models.FieldBothChanged
		case valuesEqual(l, base[name]):
			fc.Kind = models.FieldRemoteChanged
			fc.BaseValue = base[name]
		case valuesEqual(r, base[name]):
			fc.Kind = models.FieldLocalChanged
			fc.BaseValue = base[name]
		default:
			fc.Kind = models.FieldBothChanged
			fc.BaseValue = base[name]
		}
		out = append(out, fc)
	}
	return out
}

// Merge performs a three-way merge. It returns the merged fields and the names of fields
// both sides changed to different values; when that list is not empty the merge failed.
func Merge(local, remote, base map[string]json.RawMessage) (map[string]json.RawMessage, []string) {
	merged := make(map[string]json.RawMessage, len(remote))
	for k, v := range remote {
		merged[k] = v
	}

	var unresolved []string
	for _, fc := range Diff(local, remote, base) {
		switch fc.Kind {
		case models.FieldLocalChanged:
			if fc.LocalValue == nil {
				delete(merged, fc.Field)
			} else {
				merged[fc.Field] = fc.LocalValue
			}
		case models.FieldRemoteChanged:
			// remote value is already in merged
		default:
			unresolved = append(unresolved, fc.Field)
		}
	}
	return merged, unresolved
}

func fieldNames(maps ...map[string]json.RawMessage) []string {
	seen := make(map[string]struct{})
	for _, m := range maps {
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// valuesEqual compares two JSON values semantically; nil means the field is absent.
func valuesEqual(a, b json.RawMessage) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if bytes.Equal(a, b) {
		return true
	}

	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
