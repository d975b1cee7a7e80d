package engine

import (
	"sort"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/types"
)

// BindParams binds supplied values to the declared params in declaration
// order. A declared param resolves to the supplied value, else its default;
// a required param with neither is an error. Supplied values are conformed
// to the declared type. Undeclared supplied names are errors only in strict
// mode.
func BindParams(decls []*ast.ParamDefinition, supplied map[string]interface{}, strict bool) (map[string]interface{}, []*ParamError) {
	bound := make(map[string]interface{}, len(decls))
	var errs []*ParamError

	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.Name] = true

		raw, ok := supplied[d.Name]
		switch {
		case ok:
			v, err := types.Conform(d.Type, raw)
			if err != nil {
				errs = append(errs, &ParamError{Param: d.Name, Kind: ParamTypeMismatch, Message: err.Error()})
				continue
			}
			bound[d.Name] = v
		case d.HasDefault:
			v, err := types.Conform(d.Type, d.Default)
			if err != nil {
				errs = append(errs, &ParamError{Param: d.Name, Kind: ParamTypeMismatch, Message: "default: " + err.Error()})
				continue
			}
			bound[d.Name] = v
		case d.Required:
			errs = append(errs, &ParamError{Param: d.Name, Kind: ParamRequired, Message: "required param not supplied"})
		}
	}

	if strict {
		var unknown []string
		for name := range supplied {
			if !declared[name] {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		for _, name := range unknown {
			errs = append(errs, &ParamError{Param: name, Kind: ParamUnknown, Message: "param is not declared"})
		}
	}
	return bound, errs
}
