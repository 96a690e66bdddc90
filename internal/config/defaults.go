package config

const (
	// DefaultTemperature matches the sampling temperature the assistant was tuned with.
	DefaultTemperature = 0.7

	// DefaultDirective is the persona sent as the system message on every turn.
	DefaultDirective = `You are a friendly assistant answering questions about the document the user uploaded.
Instructions:
1. Answer in a natural, human tone.
2. Keep answers short unless the question needs detail.
3. Use the past chat and the document context you are given; say so when the context does not contain the answer.`
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "/usr/local/var/tanya/data"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "ai_knowledge_base"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/tanya/data/models/all-MiniLM-L6-v2.onnx"
	}
	// Remote providers report their own dimension unless one is requested.
	if cfg.Embedding.Dimensions == 0 && (cfg.Embedding.Provider == "onnx" || cfg.Embedding.Provider == "hash") {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
		if cfg.Embedding.APIKeyEnv == "" {
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "gemini":
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "gemini-embedding-001"
		}
		if cfg.Embedding.APIKeyEnv == "" {
			cfg.Embedding.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 600
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 100
	}
	if cfg.Suggest.MaxDistance == 0 {
		cfg.Suggest.MaxDistance = 2
	}
	if cfg.Suggest.MinFrequency == 0 {
		cfg.Suggest.MinFrequency = 1
	}
	if cfg.Suggest.MaxSuggestions == 0 {
		cfg.Suggest.MaxSuggestions = 5
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 1
	}
	if cfg.Retrieval.HistoryWindow == 0 {
		cfg.Retrieval.HistoryWindow = 8
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "groq"
	}
	switch cfg.Generator.Provider {
	case "groq":
		if cfg.Generator.BaseURL == "" {
			cfg.Generator.BaseURL = "https://api.groq.com/openai/v1"
		}
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "llama3-70b-8192"
		}
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "GROQ_API_KEY"
		}
	case "openai":
		if cfg.Generator.BaseURL == "" {
			cfg.Generator.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gpt-4o-mini"
		}
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "gemini":
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gemini-2.5-flash"
		}
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.Chat.Directive == "" {
		cfg.Chat.Directive = DefaultDirective
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt", ".md", ".rst", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
