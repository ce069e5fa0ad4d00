/*
Package ports defines the driven ports (interfaces) for the stepwise engine.

These interfaces decouple the core logic from external implementations, allowing
agents to run against various storage backends and definition sources.

# Key Interfaces

  - DefinitionLoader: Retrieves raw agent manifests and step definitions (e.g., from Loam or Memory).
  - SnapshotStore: Persists and loads session snapshots.
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - StatelessAgent: The surface transports (HTTP, MCP, runner) drive; state lives outside it.

Adapters verify themselves with RunSnapshotStoreContract and RunDefinitionLoaderContract.
*/
package ports
