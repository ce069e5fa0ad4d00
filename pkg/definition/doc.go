// Package definition parses declarative agent definitions (YAML or JSON) and
// compiles them into the steps, tools and flows the engine runs.
//
// A definition may live in a single file:
//
//	name: clock
//	start: start
//	steps:
//	  - id: start
//	    description: Help the user with the time.
//	    routes: [end]
//	    tools: [get_time]
//	  - id: end
//	    description: Say goodbye.
//	tools:
//	  - name: get_time
//	    kind: process
//	    command: date
//
// or be split across a manifest and one document per step, served by a
// ports.DefinitionLoader such as the Loam adapter.
package definition
