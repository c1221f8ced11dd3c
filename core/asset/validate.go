package asset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goto/pulumi-marmot/core/validator"
)

// Validate checks the struct rules and that no two environments share a
// path. All failures are reported together in an InvalidError.
func (a Asset) Validate() error {
	var fields []validator.FieldError

	if err := validator.ValidateStruct(a); err != nil {
		var verrs validator.Errors
		if !errors.As(err, &verrs) {
			return err
		}
		fields = append(fields, verrs...)
	}

	keys := make([]string, 0, len(a.Environments))
	for k := range a.Environments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	owners := make(map[string]string, len(keys))
	for _, k := range keys {
		path := a.Environments[k].Path
		if path == "" {
			continue
		}
		if owner, ok := owners[path]; ok {
			fields = append(fields, validator.FieldError{
				Field:   fmt.Sprintf("environments[%s].path", k),
				Rule:    "unique",
				Message: fmt.Sprintf("path %q is already used by environment %q", path, owner),
			})
			continue
		}
		owners[path] = k
	}

	if len(fields) > 0 {
		return InvalidError{AssetID: a.ID, Fields: fields}
	}
	return nil
}
