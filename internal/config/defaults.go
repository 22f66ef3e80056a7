package config

// Default returns the built-in configuration values applied before a config
// file is decoded on top.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/songmill",
			WorkDir: "~/.cache/songmill/work",
			LogDir:  "~/.local/share/songmill/logs",
		},
		Storage: Storage{
			Bucket: "songmill",
			Region: "us-east-1",
			UseSSL: true,
		},
		Fal: Fal{
			BaseURL:            "https://queue.fal.run/fal-ai/audio-enhance",
			CeilingSeconds:     190,
			OverlapSeconds:     2,
			ChunkParallelism:   3,
			PollIntervalMS:     2000,
			RequestTimeoutSecs: 120,
		},
		Quansic: Quansic{
			BaseURL:        "https://api.quansic.com/api/v1",
			TimeoutSeconds: 30,
		},
		MusicBrainz: MusicBrainz{
			BaseURL:        "https://musicbrainz.org/ws/2",
			UserAgent:      "songmill/1.0",
			TimeoutSeconds: 30,
		},
		Whisper: Whisper{
			Model:          "large-v3",
			TimeoutSeconds: 300,
		},
		Demucs: Demucs{
			TwoStem:        true,
			TimeoutSeconds: 600,
		},
		LLM: LLM{
			BaseURL:        "https://openrouter.ai/api/v1/chat/completions",
			TimeoutSeconds: 15,
		},
		Match: Match{
			Threshold:       0.6,
			ConfidenceFloor: 0.5,
		},
		Workflow: Workflow{
			Workers:          4,
			PollIntervalSecs: 5,
			ErrorRetrySecs:   10,
			RetryLimit:       3,
			RetryBackoffSecs: 60,
			StaleTimeoutSecs: 1800,
			HeartbeatSecs:    30,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
