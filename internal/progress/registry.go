package progress

// Stage identifiers shared by the pipeline, the event stream, and consumers.
const (
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageDocument   = "document"
	StageEmbeddings = "embeddings"
)

// StageConfig carries the static display metadata for one pipeline stage.
// Benefit and Sublabel are presentation copy, never server-provided.
type StageConfig struct {
	Label    string
	Benefit  string
	Sublabel string
}

var stageConfigs = map[string]StageConfig{
	StageExtract: {
		Label:    "Preparing media",
		Benefit:  "Readies your file for processing",
		Sublabel: "Extracting audio and text",
	},
	StageTranscribe: {
		Label:    "Transcribing",
		Benefit:  "Makes every word searchable",
		Sublabel: "Converting speech to text",
	},
	StageDocument: {
		Label:    "Generating document",
		Benefit:  "Summarizes the recording into notes",
		Sublabel: "Writing the structured document",
	},
	StageEmbeddings: {
		Label:    "Indexing",
		Benefit:  "Powers semantic search across your library",
		Sublabel: "Generating embeddings",
	},
}

// jobTypeToStage maps backend job-type identifiers onto user-facing stage ids.
// Identifiers with no entry map to themselves, so the reducer never produces
// an undefined stage id for a job type added server-side later.
var jobTypeToStage = map[string]string{
	"extract_audio":       StageExtract,
	"extract_text":        StageExtract,
	"transcription":       StageTranscribe,
	"generate_document":   StageDocument,
	"doc_generation":      StageDocument,
	"generate_embeddings": StageEmbeddings,
}

// StageConfigFor looks up display metadata for a job type. Unknown job types
// return ok=false; callers fall back to the raw identifier as the label so new
// server-side job types degrade gracefully instead of breaking consumers.
func StageConfigFor(jobType string) (StageConfig, bool) {
	cfg, ok := stageConfigs[MapJobTypeToStageID(jobType)]
	return cfg, ok
}

// MapJobTypeToStageID resolves a job type to its stage id, returning the
// input unchanged when no explicit mapping exists.
func MapJobTypeToStageID(jobType string) string {
	if mapped, ok := jobTypeToStage[jobType]; ok {
		return mapped
	}
	return jobType
}

// PipelineFor returns the ordered stage ids for a content type. Text-bearing
// content skips transcription entirely, which keeps the auto-advance heuristic
// from predicting a stage the pipeline will never run.
func PipelineFor(contentType string) []string {
	switch contentType {
	case "document", "text":
		return []string{StageExtract, StageDocument, StageEmbeddings}
	default:
		return []string{StageExtract, StageTranscribe, StageDocument, StageEmbeddings}
	}
}
