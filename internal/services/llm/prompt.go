package llm

// DocumentPrompt instructs the model to turn a transcript or extracted text
// into a structured markdown document.
const DocumentPrompt = `You convert raw transcripts and extracted text into a structured markdown document.

Produce:
- A short title line.
- A "Summary" section of two to four sentences.
- A "Key Points" section as a bullet list.
- A "Details" section that preserves the substance of the source in readable prose.

Use only information present in the source text. Respond with markdown only.`
