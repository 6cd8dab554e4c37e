package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed naming.yaml
var namingYAML []byte

type Config struct {
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Ollama     OllamaConfig
	Detect     DetectConfig
	Diarize    DiarizeConfig
	ASR        ASRConfig
	Database   DatabaseConfig
	Processing ProcessingConfig
	Tracking   TrackingConfig
	Fusion     FusionConfig
	Naming     NamingConfig
	Log        LogConfig
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3
}

// DetectConfig points at the face detection server (InsightFace/MediaPipe
// behind HTTP). Detection is mandatory for video processing.
type DetectConfig struct {
	URL           string  // defaults to http://localhost:8100
	MinConfidence float64 // minimum detection score, default 0.5
	MaxFaces      int     // per-frame cap, default 10
}

// DiarizeConfig points at the diarization server (pyannote behind HTTP).
type DiarizeConfig struct {
	URL                string  // defaults to http://localhost:8200
	MaxSpeakers        int     // upper bound passed to the diarizer, default 10
	MinSegmentDuration float64 // segments shorter than this are dropped, default 0.5s
}

// ASRConfig points at the speech recognition server (faster-whisper behind
// HTTP), used when no transcript file is supplied.
type ASRConfig struct {
	URL      string // defaults to http://localhost:8300
	Model    string // whisper model size hint, default "base"
	Language string // optional language code, empty = auto
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty = file-backed store
	MaxOpenConns int    // default 25
	MaxIdleConns int    // default 5
}

type ProcessingConfig struct {
	TempDir     string // scratch space for extracted audio/frames
	OutputDir   string // labeled SRT/JSON output
	UploadDir   string // web upload destination
	FrameRate   int    // sampled frames per second for face detection, default 3
	CleanupTemp bool   // remove scratch files after a run, default true
}

// TrackingConfig holds the face tracker tunables. The IoU threshold and the
// 1s recency window were tuned by eye on real meeting footage, not derived.
type TrackingConfig struct {
	IoUThreshold  float64 // match acceptance, strict greater-than, default 0.3
	ActiveWindow  float64 // seconds a track stays matchable, default 1.0
	MinFaceSize   float64 // minimum box height relative to frame height, default 0.05
	LipWindowSize int     // lip distance history length, default 5
}

// FusionConfig holds the audio-visual fusion tunables. ScoreDivisor is the
// "ideal score" calibration constant, also empirically tuned.
type FusionConfig struct {
	AlignmentTolerance   float64 // seconds, default 0.5
	DiarizationThreshold float64 // default 0.6
	AVAlignmentThreshold float64 // default 0.5
	ScoreDivisor         float64 // default 3.0
}

type NamingConfig struct {
	MaxIntroTime     float64 // seconds, introductions only searched before this, default 300
	MinIntroDuration float64 // seconds, default 2.0
	Rules            NamingRules
}

// NamingRules is the data-driven vocabulary for name extraction, loaded from
// the embedded naming.yaml or from NAMING_RULES_PATH.
type NamingRules struct {
	IntroPhrases []string `yaml:"intro_phrases"`
	NamePatterns []string `yaml:"name_patterns"`
	Stoplist     []string `yaml:"stoplist"`
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative
// float. Returns the default value if unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean with a fallback.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func loadNamingRules() (NamingRules, error) {
	data := namingYAML
	if path := os.Getenv("NAMING_RULES_PATH"); path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return NamingRules{}, fmt.Errorf("reading naming rules from %s: %w", path, err)
		}
		data = fileData
	}

	var rules NamingRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return NamingRules{}, fmt.Errorf("parsing naming rules: %w", err)
	}
	return rules, nil
}

func Load() (*Config, error) {
	rules, err := loadNamingRules()
	if err != nil {
		return nil, err
	}

	return &Config{
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		Detect: DetectConfig{
			URL:           envString("DETECT_URL", "http://localhost:8100"),
			MinConfidence: envFloat("DETECT_MIN_CONFIDENCE", 0.5),
			MaxFaces:      envInt("DETECT_MAX_FACES", 10),
		},
		Diarize: DiarizeConfig{
			URL:                envString("DIARIZE_URL", "http://localhost:8200"),
			MaxSpeakers:        envInt("DIARIZE_MAX_SPEAKERS", 10),
			MinSegmentDuration: envFloat("DIARIZE_MIN_SEGMENT_DURATION", 0.5),
		},
		ASR: ASRConfig{
			URL:      envString("ASR_URL", "http://localhost:8300"),
			Model:    envString("ASR_MODEL", "base"),
			Language: os.Getenv("ASR_LANGUAGE"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Processing: ProcessingConfig{
			TempDir:     envString("TEMP_DIR", "./temp"),
			OutputDir:   envString("OUTPUT_DIR", "./output"),
			UploadDir:   envString("UPLOAD_DIR", "./uploads"),
			FrameRate:   envInt("FRAME_RATE", 3),
			CleanupTemp: envBool("CLEANUP_TEMP", true),
		},
		Tracking: TrackingConfig{
			IoUThreshold:  envFloat("TRACK_IOU_THRESHOLD", 0.3),
			ActiveWindow:  envFloat("TRACK_ACTIVE_WINDOW", 1.0),
			MinFaceSize:   envFloat("TRACK_MIN_FACE_SIZE", 0.05),
			LipWindowSize: envInt("TRACK_LIP_WINDOW", 5),
		},
		Fusion: FusionConfig{
			AlignmentTolerance:   envFloat("FUSION_ALIGNMENT_TOLERANCE", 0.5),
			DiarizationThreshold: envFloat("FUSION_DIARIZATION_THRESHOLD", 0.6),
			AVAlignmentThreshold: envFloat("FUSION_AV_THRESHOLD", 0.5),
			ScoreDivisor:         envFloat("FUSION_SCORE_DIVISOR", 3.0),
		},
		Naming: NamingConfig{
			MaxIntroTime:     envFloat("NAMING_MAX_INTRO_TIME", 300),
			MinIntroDuration: envFloat("NAMING_MIN_INTRO_DURATION", 2.0),
			Rules:            rules,
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}, nil
}
