/*
Package runner drives a conversation from an input stream to an output stream.

It is the bridge between a stepwise agent and a terminal or a pipe: user lines
are sanitized, turned into agent turns through a session.Manager (which also
persists every snapshot) and the results are written back through a pluggable
IOHandler.

# Key Components

  - Runner: the loop. It reads input only when the agent asked or answered,
    and keeps turning without input after tool calls and moves.
  - TextHandler: plain text for interactive use, with an optional renderer.
  - JSONHandler: JSON Lines for scripting and headless hosts.
  - SanitizeInput: size, UTF-8 and control character checks shared with the
    HTTP and MCP adapters.

# Usage

	mgr := session.NewManager(agent, memory.NewStore())
	r := runner.NewRunner(
		runner.WithManager(mgr),
		runner.WithSessionID("user-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
