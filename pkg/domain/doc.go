/*
Package domain contains the core domain models of the stepwise engine.

It defines the entities the execution loop works on: Steps and their Routes, the
Decision an oracle returns, the tagged History of a conversation and the Snapshot
used to persist a session between turns. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Step: A unit of agent behaviour with outgoing Routes and available tools.
  - Route: A conditional edge to another Step, described in natural language.
  - Decision: The structured output produced by the oracle for one attempt.
  - History: Append-only sequence of Message, Summary and StepIdentifier entries.
  - Snapshot: The persisted state of a session (current step, history, counters, flows).
*/
package domain
