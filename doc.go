/*
Package stepwise is an engine for multi-step conversational agents.

An agent is a set of steps. At every turn a language model (the oracle) is
shown the current step, the conversation history and a JSON Schema of the
actions that step allows: ask the user, answer, end the conversation, call
one of the step's tools, or move to one of its routes. The engine validates
the decision against the schema, dispatches it and records the outcome. Bad
decisions and failing tools are written into the history and retried until
the error or iteration budget runs out.

Steps can be grouped into flows. A flow is entered at one of its entry steps,
left from one of its exit steps, and carries components (such as Memory, which
summarizes the flow's messages on exit) whose results are handed to the next
flow.

# Usage

Agents are built in Go, from a definition document, or from a directory of
Markdown steps:

	agent, err := stepwise.Open("./support", openai.New(client))
	if err != nil {
		log.Fatal(err)
	}

	sess, err := agent.NewSession(stepwise.NewSessionID())
	if err != nil {
		log.Fatal(err)
	}

	res, err := sess.Next(ctx, "Where is my invoice?")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Decision.ResponseText())

Servers that keep no state between requests use Turn, which resumes a
snapshot, runs one turn and returns the new snapshot:

	res, snap, err := agent.Turn(ctx, snap, input)
*/
package stepwise
