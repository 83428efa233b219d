package config

// Config is the fanoutd configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Secrets may be left empty in the file and supplied through FANOUT_*
// environment variables; see Secrets.
type Config struct {
	Logging   LoggingConfig     `json:"logging"`
	Storage   StorageConfig     `json:"storage"`
	Selector  SelectorConfig    `json:"selector"`
	Dispatch  DispatchConfig    `json:"dispatch"`
	Channels  ChannelsConfig    `json:"channels"`
	Templates map[string]string `json:"templates,omitempty"`
	HTTP      HTTPConfig        `json:"http"`
	ReportLog ReportLogConfig   `json:"report_log"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the recipient/report store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/fanout.sqlite" }
type StorageConfig struct {
	Driver      string      `json:"driver"`
	Path        string      `json:"path,omitempty"`
	BusyTimeout string      `json:"busy_timeout,omitempty"` // sqlite
	DSN         string      `json:"dsn,omitempty"`          // postgres (secret)
	MaxConns    int32       `json:"max_conns,omitempty"`    // postgres
	Redis       RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr      string `json:"addr,omitempty"`
	Password  string `json:"password,omitempty"` // secret
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// SelectorConfig controls proximity selection.
//
// Defaults: radius_km 5, timeout "3s".
type SelectorConfig struct {
	RadiusKm float64 `json:"radius_km,omitempty"`
	Timeout  string  `json:"timeout,omitempty"`
}

// DispatchConfig controls the dispatch worker pool.
//
// Defaults: workers 4, send_timeout "10s".
type DispatchConfig struct {
	Workers     int    `json:"workers,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

type ChannelsConfig struct {
	Email EmailChannelConfig `json:"email"`
	SMS   SMSChannelConfig   `json:"sms"`
	Push  PushChannelConfig  `json:"push"`
}

// Throttle is an optional per-channel token bucket. rate_per_sec 0 disables it.
type Throttle struct {
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// EmailChannelConfig drivers: "smtp", "log".
type EmailChannelConfig struct {
	Enabled  bool       `json:"enabled"`
	Driver   string     `json:"driver"`
	Throttle Throttle   `json:"throttle"`
	SMTP     SMTPConfig `json:"smtp"`
}

type SMTPConfig struct {
	Host            string `json:"host,omitempty"`
	Port            int    `json:"port,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"` // secret
	From            string `json:"from,omitempty"`
	DisableStartTLS bool   `json:"disable_starttls,omitempty"`
}

// SMSChannelConfig drivers: "http", "log".
type SMSChannelConfig struct {
	Enabled  bool          `json:"enabled"`
	Driver   string        `json:"driver"`
	Throttle Throttle      `json:"throttle"`
	HTTP     HTTPSMSConfig `json:"http"`
}

type HTTPSMSConfig struct {
	URL     string `json:"url,omitempty"`
	Token   string `json:"token,omitempty"` // secret
	Sender  string `json:"sender,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// PushChannelConfig drivers: "webpush", "telegram", "log".
type PushChannelConfig struct {
	Enabled  bool           `json:"enabled"`
	Driver   string         `json:"driver"`
	Throttle Throttle       `json:"throttle"`
	WebPush  WebPushConfig  `json:"webpush"`
	Telegram TelegramConfig `json:"telegram"`
}

type WebPushConfig struct {
	VAPIDPublicKey  string `json:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string `json:"vapid_private_key,omitempty"` // secret
	Subject         string `json:"subject,omitempty"`
	TTL             string `json:"ttl,omitempty"`
	Topic           string `json:"topic,omitempty"`
}

type TelegramConfig struct {
	Token   string `json:"token,omitempty"` // secret
	Timeout string `json:"timeout,omitempty"`
}

// HTTPConfig controls the ops API. An empty addr disables it.
type HTTPConfig struct {
	Addr              string `json:"addr"`
	ReadHeaderTimeout string `json:"read_header_timeout,omitempty"`
	// AnnounceTimeout bounds one POST /api/announce end to end.
	AnnounceTimeout string      `json:"announce_timeout,omitempty"`
	Pprof           PprofConfig `json:"pprof"`
}

// PprofConfig mounts net/http/pprof under /debug/pprof/ on the ops API.
// On a non-loopback addr a token is required unless allow_insecure is set.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Token         string `json:"token,omitempty"` // secret
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// ReportLogConfig controls persistence of dispatch reports.
//
// Defaults: prune_schedule "@daily", retention "720h", buffer 64.
type ReportLogConfig struct {
	Enabled       bool   `json:"enabled"`
	Retention     string `json:"retention,omitempty"`
	PruneSchedule string `json:"prune_schedule,omitempty"`
	Buffer        int    `json:"buffer,omitempty"`
}
