package chat

// noContextFallback stands in for the document context when retrieval
// finds nothing relevant
const noContextFallback = "No relevant documents found for this query."

// systemPromptPrefix instructs the model to stay grounded in the
// provided excerpts
const systemPromptPrefix = `You are a helpful assistant that answers questions based on the provided document context.

Use ONLY the information from the documents below to answer. When you use information from a document, cite it by name. If the documents do not contain enough information to answer the question, say so clearly instead of guessing.

Document context:

`
