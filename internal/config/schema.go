package config

// Config holds the annotation pipeline configuration.
// Stored at: config.yaml (or the path given with --config).
type Config struct {
	Oracle     OracleCfg     `mapstructure:"oracle" yaml:"oracle"`
	Pipeline   PipelineCfg   `mapstructure:"pipeline" yaml:"pipeline"`
	Normalizer NormalizerCfg `mapstructure:"normalizer" yaml:"normalizer"`
	Segmenter  SegmenterCfg  `mapstructure:"segmenter" yaml:"segmenter"`
	Store      StoreCfg      `mapstructure:"store" yaml:"store"`
}

// OracleCfg configures the text-generation provider.
type OracleCfg struct {
	Provider          string  `mapstructure:"provider" yaml:"provider"` // "gemini", "mock"
	Model             string  `mapstructure:"model" yaml:"model"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	RequestsPerMinute int     `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxWaitSeconds    int     `mapstructure:"max_wait_seconds" yaml:"max_wait_seconds"` // queue wait before quota error
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
}

// PipelineCfg bounds the tag-critique-refine loop and its concurrency.
type PipelineCfg struct {
	MaxAttempts      int  `mapstructure:"max_attempts" yaml:"max_attempts"`
	TransportRetries int  `mapstructure:"transport_retries" yaml:"transport_retries"`
	RetryDelayMs     int  `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	Concurrency      int  `mapstructure:"concurrency" yaml:"concurrency"`
	Resume           bool `mapstructure:"resume" yaml:"resume"`
	MinUnitRunes     int  `mapstructure:"min_unit_runes" yaml:"min_unit_runes"` // units shorter than this skip the oracle
}

// NormalizerCfg tunes the OCR duplication-repair heuristics.
type NormalizerCfg struct {
	PairDominance float64 `mapstructure:"pair_dominance" yaml:"pair_dominance"`
	MaxRepeatUnit int     `mapstructure:"max_repeat_unit" yaml:"max_repeat_unit"`
}

// SegmenterCfg sets the minimum size of an admissible sentence.
type SegmenterCfg struct {
	MinWords    int `mapstructure:"min_words" yaml:"min_words"`
	MinEthiopic int `mapstructure:"min_ethiopic" yaml:"min_ethiopic"`
}

// StoreCfg locates the record database.
type StoreCfg struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Oracle: OracleCfg{
			Provider:          "gemini",
			Model:             "gemini-2.5-flash",
			APIKey:            "${GEMINI_API_KEY}",
			RequestsPerMinute: 60,
			TimeoutSeconds:    60,
			MaxWaitSeconds:    30,
			Temperature:       0.1,
		},
		Pipeline: PipelineCfg{
			MaxAttempts:      3,
			TransportRetries: 3,
			RetryDelayMs:     500,
			Concurrency:      4,
			Resume:           true,
			MinUnitRunes:     20,
		},
		Normalizer: NormalizerCfg{
			PairDominance: 0.5,
			MaxRepeatUnit: 3,
		},
		Segmenter: SegmenterCfg{
			MinWords:    5,
			MinEthiopic: 10,
		},
		Store: StoreCfg{
			Path: "tigrinya.db",
		},
	}
}
