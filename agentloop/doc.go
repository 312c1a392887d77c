// Package agentloop runs the conversation between a user, a model and the
// local tools.
//
// An Agent holds configuration only. Conversation state lives in a Session:
// the message history sent to the model, the chat log shown to the user and
// the tool round counter. Each user message triggers rounds of model calls
// and tool executions until the model answers without tool calls or the
// round limit is reached.
//
// ProcessUserMessage runs a message to completion and returns the chat
// entries it produced. ProcessUserMessageStream delivers the same progress
// as StreamChunks on a channel that always ends with one ChunkDone; Session
// Cancel stops it between model events and between tool calls.
//
//	agent := agentloop.NewAgent(client, dispatcher, agentloop.WithSystemPrompt(prompt))
//	session := agent.NewSession()
//	for chunk := range agent.ProcessUserMessageStream(ctx, session, "list the go files") {
//		if chunk.Type == agentloop.ChunkContent {
//			fmt.Print(chunk.Content)
//		}
//	}
package agentloop
