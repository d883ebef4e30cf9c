package model

// ================ Config ================

type DecisionModelConfig struct {
	Model       string  `envconfig:"DECISION_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"DECISION_MAX_TOKENS" default:"500"`
	Temperature float32 `envconfig:"DECISION_TEMPERATURE" default:"0.3"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"500"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.7"`
}

type EmbeddingConfig struct {
	Model string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
}

type ConfidenceConfig struct {
	High float64 `envconfig:"CONFIDENCE_HIGH" default:"0.75"`
	Low  float64 `envconfig:"CONFIDENCE_LOW" default:"0.5"`
}

type RAGConfig struct {
	TopK             int     `envconfig:"RAG_TOP_K" default:"8"`
	ScoreThreshold   float64 `envconfig:"RAG_SCORE_THRESHOLD" default:"0.6"`
	SimilarityWeight float64 `envconfig:"RAG_SIMILARITY_WEIGHT" default:"0.6"`
	RecencyWeight    float64 `envconfig:"RAG_RECENCY_WEIGHT" default:"0.2"`
	QualityWeight    float64 `envconfig:"RAG_QUALITY_WEIGHT" default:"0.2"`
	RecencyHalfLife  float64 `envconfig:"RAG_RECENCY_HALF_LIFE_DAYS" default:"90"`
	ConflictSpread   float64 `envconfig:"RAG_CONFLICT_SPREAD" default:"0.3"`
	ChunkSize        int     `envconfig:"RAG_CHUNK_SIZE" default:"600"`
	ChunkOverlap     int     `envconfig:"RAG_CHUNK_OVERLAP" default:"100"`
	Collection       string  `envconfig:"RAG_COLLECTION" default:"knowledge"`
}

type ConversationConfig struct {
	TTL           string `envconfig:"CONVERSATION_TTL" default:"24h"`
	HistoryLimit  int    `envconfig:"CONVERSATION_HISTORY_LIMIT" default:"10"`
	DecisionTurns int    `envconfig:"CONVERSATION_DECISION_TURNS" default:"5"`
	ComposeTurns  int    `envconfig:"CONVERSATION_COMPOSE_TURNS" default:"3"`
}

type SchedulerConfig struct {
	FollowupIntervalMinutes int `envconfig:"FOLLOWUP_INTERVAL_MINUTES" default:"30"`
	FollowupAfterDays       int `envconfig:"FOLLOWUP_AFTER_DAYS" default:"7"`
}
