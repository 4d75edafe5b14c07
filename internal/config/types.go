package config

// Config is the on-disk configuration. JSON or YAML (by extension), decoded
// strictly: unknown keys are rejected.
//
// Durations are Go duration strings ("250ms", "30s").
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage is optional; nil disables saves and the journal.
	Storage *StorageConfig `json:"storage,omitempty"`
	Save    SaveConfig     `json:"save"`

	Engine  EngineConfig  `json:"engine"`
	Catalog CatalogConfig `json:"catalog"`

	Scheduler  SchedulerConfig   `json:"scheduler"`
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`

	HTTP HTTPConfig `json:"http"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	// SamplePerSec caps per-tick debug lines. 0 means the default.
	SamplePerSec int `json:"sample_per_sec,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence backend.
//
//	"storage": { "driver": "sqlite", "path": "./data/idlecraft.sqlite" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file | sqlite | badger | none
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SaveConfig struct {
	Slot string `json:"slot,omitempty"` // default "main"
	// Autosave is a schedule string ("30s", "@every 1m", "*/5 * * * *").
	// Empty means "@every 30s"; "off" disables periodic saves.
	Autosave string `json:"autosave,omitempty"`
	// FlushOnFinish saves after every settled action, run, or window.
	FlushOnFinish bool `json:"flush_on_finish"`
	// Backup writes the "backup" slot daily at HH:MM. Empty disables it.
	Backup string `json:"backup,omitempty"`
}

// EngineConfig tunes the production scheduler. Omitted fields keep defaults.
type EngineConfig struct {
	PollInterval    string `json:"poll_interval,omitempty"`
	MinAction       string `json:"min_action,omitempty"`
	MinTick         string `json:"min_tick,omitempty"`
	TomeCancelGrace string `json:"tome_cancel_grace,omitempty"`
	AFKWindow       string `json:"afk_window,omitempty"`
	AutoCookWindow  string `json:"autocook_window,omitempty"`
	AutoCookEvery   string `json:"autocook_every,omitempty"`
}

type CatalogConfig struct {
	// Path to a YAML catalog. Empty uses the built-in one.
	Path string `json:"path,omitempty"`
}

type SchedulerConfig struct {
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls the background executor for save flushes.
//
// Enabled is a pointer so an omitted key defaults to true.
type TaskEngineConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8088"
	// StartRate limits action and AFK start requests per second.
	StartRate  float64 `json:"start_rate,omitempty"`
	StartBurst int     `json:"start_burst,omitempty"`
	// Token, when set, is required as "Authorization: Bearer <token>" or
	// ?token=. A non-loopback addr without a token refuses to start.
	Token string `json:"token,omitempty"`
	// Pprof mounts net/http/pprof under /debug/pprof/ on the same listener.
	Pprof bool `json:"pprof,omitempty"`
}
