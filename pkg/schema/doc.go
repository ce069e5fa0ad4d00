// Package schema provides the small type system used to declare and validate
// tool arguments.
//
// Types are built programmatically or parsed from short names:
//
//	params := schema.Parameters{
//	    "city": {Type: schema.String(), Description: "City to look up"},
//	    "days": {Type: schema.Int(), Default: 1},
//	}
//
//	args, err := params.Resolve(map[string]any{"city": "Lisbon"})
//	// args == {"city": "Lisbon", "days": 1}
//
// Parameters also render themselves as JSON Schema so oracles can be told what
// a tool expects. Failures are returned as an AggregateError of ValidationError
// values, ordered by field name.
package schema
