package language

// Supported language tags
const (
	Arabic  = "ar"
	English = "en"
)

// Upstream model identifiers
const (
	transcriptionModel = "nova-2"
	completionModel    = "anthropic/claude-3-haiku"
	multilingualModel  = "eleven_multilingual_v2"
	monolingualModel   = "eleven_monolingual_v1"
)

// ElevenLabs voice IDs
const (
	VoiceAdam   = "pNInz6obpgDQGcFmaJgB" // Adam - Arabic male
	VoiceBella  = "EXAVITQu4vr4xnSDxMaL" // Bella - can do Arabic
	VoiceRachel = "21m00Tcm4TlvDq8ikWAM" // Rachel - multilingual
	VoiceJosh   = "TxGEqnHWrfWFTfGW9XjX" // Josh - English male
)

// Bundle groups the per-language upstream service configuration.
// One bundle exists per supported language; bundles are constructed once
// at package init and never mutated.
type Bundle struct {
	Tag string

	// Transcription (Deepgram)
	TranscriptionModel string
	SampleRate         int
	Encoding           string
	ChunkSize          int

	// Completion
	CompletionModel string
	Temperature     float64
	MaxTokens       int
	SystemPrompt    string

	// Synthesis (ElevenLabs)
	SynthesisModel  string
	VoiceID         string
	Stability       float64
	SimilarityBoost float64

	// Fallback is the fixed reply returned when turn generation fails
	Fallback string
}

var arabicBundle = Bundle{
	Tag:                Arabic,
	TranscriptionModel: transcriptionModel,
	SampleRate:         16000,
	Encoding:           "linear16",
	ChunkSize:          6400,
	CompletionModel:    completionModel,
	Temperature:        0.7,
	MaxTokens:          150, // Keep responses short for voice
	SystemPrompt:       arabicSystemPrompt,
	SynthesisModel:     multilingualModel, // Best for Arabic
	VoiceID:            VoiceAdam,
	Stability:          0.5,
	SimilarityBoost:    0.75,
	Fallback:           "عذراً، حدث خطأ. هل يمكنك تكرار ذلك؟",
}

var englishBundle = Bundle{
	Tag:                English,
	TranscriptionModel: transcriptionModel,
	SampleRate:         16000,
	Encoding:           "linear16",
	ChunkSize:          6400,
	CompletionModel:    completionModel,
	Temperature:        0.7,
	MaxTokens:          150,
	SystemPrompt:       englishSystemPrompt,
	SynthesisModel:     monolingualModel, // Fast for English
	VoiceID:            VoiceRachel,
	Stability:          0.5,
	SimilarityBoost:    0.75,
	Fallback:           "Sorry, an error occurred. Can you repeat that?",
}

// Select returns the bundle for the given language tag.
// Selection is total: anything other than an exact match on a supported
// tag resolves to the Arabic bundle.
func Select(tag string) Bundle {
	if tag == English {
		return englishBundle
	}
	return arabicBundle
}

// Supported lists the recognized language tags
func Supported() []string {
	return []string{Arabic, English}
}

// Voices returns the static per-language voice catalog
func Voices() map[string]map[string]string {
	return map[string]map[string]string{
		"arabic": {
			"adam":  VoiceAdam,
			"bella": VoiceBella,
		},
		"english": {
			"rachel": VoiceRachel,
			"josh":   VoiceJosh,
			"bella":  VoiceBella,
		},
	}
}
