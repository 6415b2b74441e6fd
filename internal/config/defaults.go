package config

// Default returns the built-in configuration. Directory defaults are relative
// to the working directory so a fresh checkout works without a config file.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectsDir: "projects",
			QueueDir:    "queue",
			ChannelsDir: "channels",
			LogDir:      "logs",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Gemini: Gemini{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 60,
		},
		Suno: Suno{
			BaseURL:             "https://api.sunoapi.org",
			Model:               "V4_5ALL",
			TimeoutSeconds:      30,
			PollIntervalSeconds: 10,
			PollTimeoutSeconds:  600,
		},
		YouTube: YouTube{
			BaseURL:        "https://www.googleapis.com/youtube/v3",
			UploadURL:      "https://www.googleapis.com/upload/youtube/v3",
			TimeoutSeconds: 300,
		},
		Media: Media{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Retry: Retry{
			MaxAttempts:      3,
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  60,
		},
		Limits: Limits{
			MaxProjectAttempts: 3,
			MaxTrackAttempts:   2,
			VariantsPerJob:     2,
		},
		QC: QC{
			MinTrackSeconds:          60,
			MaxLeadingSilenceSeconds: 3,
		},
		Video: Video{
			Width:  1920,
			Height: 1080,
			FPS:    30,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
	}
}
