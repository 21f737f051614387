package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen         = ":8080"
	defaultHealthPath         = "/healthz"
	defaultReadyPath          = "/readyz"
	defaultObservationPath    = "/observations"
	defaultProbePath          = "/probes"
	defaultMaxBodyBytes       = 1 << 20
	defaultNATSURL            = "nats://127.0.0.1:4222"
	defaultObservationSubject = "noc.observations"
	defaultObservationStream  = "NOC_OBSERVATIONS"
	defaultProbeSubject       = "noc.probes"
	defaultProbeStream        = "NOC_PROBES"
	defaultNATSConsumerPrefix = "nocalert"
	defaultNATSDeliverGroup   = "nocalert-workers"
	defaultNATSIngestWorkers  = 1
	defaultNATSAckWaitSec     = 30
	defaultNATSNackDelayMS    = 1000
	defaultNATSMaxDeliver     = -1
	defaultNATSMaxAckPending  = 2048
	defaultReloadSeconds      = 5
	defaultTickSeconds        = 10
	defaultSweepSeconds       = 3600

	defaultCooldownSeconds     = 300
	defaultDedupWindowSeconds  = 60
	defaultSweepMaxAgeHours    = 24
	defaultFlapThreshold       = 3
	defaultFlapWindowSeconds   = 300
	defaultFlapHistoryCap      = 100
	defaultFlapStabilitySec    = 300
	defaultOfflineThreshold    = 3
	defaultRecoveryThreshold   = 2
	defaultEscCriticalMaxMin   = 5
	defaultEscHighMaxMin       = 15
	defaultEscMediumMaxMin     = 60
	defaultNotifyRetryInitMS   = 500
	defaultNotifyRetryMaxMS    = 30000
	defaultNotifyRetryAttempts = 5
	defaultWebhookTimeoutSec   = 10
)

// Config holds service runtime settings and alerting policy.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service      ServiceConfig      `toml:"service"`
	Log          LogConfig          `toml:"log"`
	Ingest       IngestConfig       `toml:"ingest"`
	Cooldown     CooldownConfig     `toml:"cooldown"`
	Flapping     FlappingConfig     `toml:"flapping"`
	Reachability ReachabilityConfig `toml:"reachability"`
	Routing      RoutingConfig      `toml:"routing"`
	Escalation   EscalationConfig   `toml:"escalation"`
	Contacts     ContactsConfig     `toml:"contacts"`
	Notify       NotifyConfig       `toml:"notify"`
}

// rawConfig mirrors the TOML model before runtime normalization.
// Params: decoded sections from one TOML source.
// Returns: raw rule tables keyed by rule name.
type rawConfig struct {
	Service      ServiceConfig       `toml:"service"`
	Log          LogConfig           `toml:"log"`
	Ingest       IngestConfig        `toml:"ingest"`
	Cooldown     CooldownConfig      `toml:"cooldown"`
	Flapping     FlappingConfig      `toml:"flapping"`
	Reachability ReachabilityConfig  `toml:"reachability"`
	Routing      rawRoutingConfig    `toml:"routing"`
	Escalation   rawEscalationConfig `toml:"escalation"`
	Contacts     ContactsConfig      `toml:"contacts"`
	Notify       NotifyConfig        `toml:"notify"`
}

// ServiceConfig holds top-level service runtime controls.
// Params: name plus reload and periodic loop intervals.
// Returns: service behavior options.
type ServiceConfig struct {
	Name              string `toml:"name"`
	ReloadEnabled     bool   `toml:"reload_enabled"`
	ReloadIntervalSec int    `toml:"reload_interval_sec"`
	TickIntervalSec   int    `toml:"tick_interval_sec"`
	SweepIntervalSec  int    `toml:"sweep_interval_sec"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// IngestConfig defines inbound observation interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP ingest endpoints.
// Params: enable flag, listen address, paths, and body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled         bool   `toml:"enabled"`
	Listen          string `toml:"listen"`
	HealthPath      string `toml:"health_path"`
	ReadyPath       string `toml:"ready_path"`
	ObservationPath string `toml:"observation_path"`
	ProbePath       string `toml:"probe_path"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion.
// Params: connection and worker/ack policy; subjects are runtime-fixed.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// NATSStreamConfig carries fixed JetStream settings for one inbound stream.
// Params: subject, stream, consumer, and deliver group names.
// Returns: subscription wiring derived from runtime config.
type NATSStreamConfig struct {
	Subject      string
	Stream       string
	ConsumerName string
	DeliverGroup string
}

// DeriveObservationStream builds fixed observation stream settings.
// Params: full runtime configuration snapshot.
// Returns: JetStream wiring for the observation subject.
func DeriveObservationStream(cfg Config) NATSStreamConfig {
	return NATSStreamConfig{
		Subject:      defaultObservationSubject,
		Stream:       defaultObservationStream,
		ConsumerName: defaultNATSConsumerPrefix + "-observations",
		DeliverGroup: defaultNATSDeliverGroup,
	}
}

// DeriveProbeStream builds fixed probe stream settings.
// Params: full runtime configuration snapshot.
// Returns: JetStream wiring for the probe subject.
func DeriveProbeStream(cfg Config) NATSStreamConfig {
	return NATSStreamConfig{
		Subject:      defaultProbeSubject,
		Stream:       defaultProbeStream,
		ConsumerName: defaultNATSConsumerPrefix + "-probes",
		DeliverGroup: defaultNATSDeliverGroup,
	}
}

// CooldownConfig controls alert suppression windows.
// Params: default window, dedup window, sweep age, and per-type overrides.
// Returns: cooldown store setup options.
type CooldownConfig struct {
	DefaultSeconds     int            `toml:"default_seconds"`
	DedupWindowSeconds int            `toml:"dedup_window_seconds"`
	SweepMaxAgeHours   int            `toml:"sweep_max_age_hours"`
	Periods            map[string]int `toml:"periods"`
}

// FlappingConfig controls flap detection thresholds.
// Params: transition threshold, window, history cap, and stability period.
// Returns: flap detector setup options.
type FlappingConfig struct {
	Threshold          int `toml:"threshold"`
	WindowSeconds      int `toml:"window_seconds"`
	HistoryCap         int `toml:"history_cap"`
	StabilityPeriodSec int `toml:"stability_period_sec"`
}

// ReachabilityConfig controls the connectivity hysteresis thresholds.
// Params: consecutive failure and success thresholds.
// Returns: reachability tracker setup options.
type ReachabilityConfig struct {
	OfflineThreshold  int `toml:"offline_threshold"`
	RecoveryThreshold int `toml:"recovery_threshold"`
}

// NotifyConfig holds outbound delivery channels.
// Params: per-channel transport settings.
// Returns: delivery channel configuration.
type NotifyConfig struct {
	Telegram TelegramNotifier `toml:"telegram"`
	Webhook  WebhookNotifier  `toml:"webhook"`
	Voice    VoiceNotifier    `toml:"voice"`
}

// NotifyRetry configures outbound delivery retries.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy for notifications.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// TelegramNotifier defines Telegram channel settings.
// Params: enabled flag, bot token, chat id, API base URL, and retry policy.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	APIBase  string      `toml:"api_base"`
	Retry    NotifyRetry `toml:"retry"`
}

// WebhookNotifier defines a generic outbound HTTP endpoint.
// Params: URL, method, timeout, optional static headers, and retry policy.
// Returns: webhook sender configuration.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
	Retry      NotifyRetry       `toml:"retry"`
}

// VoiceNotifier defines the voice-call gateway endpoint.
// Params: enabled flag, gateway URL, timeout, and retry policy.
// Returns: voice sender configuration.
type VoiceNotifier struct {
	Enabled    bool        `toml:"enabled"`
	URL        string      `toml:"url"`
	TimeoutSec int         `toml:"timeout_sec"`
	Retry      NotifyRetry `toml:"retry"`
}

// ConfigSource selects one configuration input.
// Params: exactly one of file path or directory path.
// Returns: load mode descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds a normalized source from command line inputs.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile reads and decodes one TOML file.
// Params: file path.
// Returns: normalized config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var raw rawConfig
	decoder := toml.NewDecoder(bytes.NewReader(body)).EnableUnmarshalerInterface()
	if err := decoder.Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	cfg, err := normalizeRawConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// mergeConfig overlays one fragment onto the destination.
// Params: destination config and next fragment, sections replace wholesale.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if hasIngestConfig(src.Ingest) {
		dst.Ingest = src.Ingest
	}
	if hasCooldownConfig(src.Cooldown) {
		dst.Cooldown = src.Cooldown
	}
	if src.Flapping != (FlappingConfig{}) {
		dst.Flapping = src.Flapping
	}
	if src.Reachability != (ReachabilityConfig{}) {
		dst.Reachability = src.Reachability
	}
	if len(src.Routing.DefaultChannels) > 0 || src.Routing.Presets {
		dst.Routing.DefaultChannels = src.Routing.DefaultChannels
		dst.Routing.Presets = src.Routing.Presets
	}
	if len(src.Routing.Rules) > 0 {
		dst.Routing.Rules = append(dst.Routing.Rules, src.Routing.Rules...)
	}
	if src.Escalation.Enabled || src.Escalation.Defaults ||
		src.Escalation.Buckets != (EscalationBuckets{}) {
		dst.Escalation.Enabled = src.Escalation.Enabled
		dst.Escalation.Defaults = src.Escalation.Defaults
		dst.Escalation.Buckets = src.Escalation.Buckets
	}
	if len(src.Escalation.Rules) > 0 {
		dst.Escalation.Rules = append(dst.Escalation.Rules, src.Escalation.Rules...)
	}
	mergeContactsConfig(&dst.Contacts, src.Contacts)
	if hasNotifyConfig(src.Notify) {
		dst.Notify = src.Notify
	}
}

// applyDefaults fills unset values with runtime defaults.
// Params: loaded configuration.
// Returns: defaulted configuration side-effect.
func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "nocalert"
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSeconds
	}
	if cfg.Service.TickIntervalSec <= 0 {
		cfg.Service.TickIntervalSec = defaultTickSeconds
	}
	if cfg.Service.SweepIntervalSec <= 0 {
		cfg.Service.SweepIntervalSec = defaultSweepSeconds
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if cfg.Ingest.HTTP.Listen == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Ingest.HTTP.HealthPath == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if cfg.Ingest.HTTP.ReadyPath == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if cfg.Ingest.HTTP.ObservationPath == "" {
		cfg.Ingest.HTTP.ObservationPath = defaultObservationPath
	}
	if cfg.Ingest.HTTP.ProbePath == "" {
		cfg.Ingest.HTTP.ProbePath = defaultProbePath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = []string{defaultNATSURL}
	}
	cfg.Ingest.NATS.URL = normalizeNATSURLs(cfg.Ingest.NATS.URL)
	if cfg.Ingest.NATS.Workers <= 0 {
		cfg.Ingest.NATS.Workers = defaultNATSIngestWorkers
	}
	if cfg.Ingest.NATS.AckWaitSec <= 0 {
		cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.Ingest.NATS.NackDelayMS <= 0 {
		cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.Ingest.NATS.MaxDeliver == 0 {
		cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
	}
	if cfg.Ingest.NATS.MaxAckPending <= 0 {
		cfg.Ingest.NATS.MaxAckPending = defaultNATSMaxAckPending
	}

	if cfg.Cooldown.DefaultSeconds <= 0 {
		cfg.Cooldown.DefaultSeconds = defaultCooldownSeconds
	}
	if cfg.Cooldown.DedupWindowSeconds <= 0 {
		cfg.Cooldown.DedupWindowSeconds = defaultDedupWindowSeconds
	}
	if cfg.Cooldown.SweepMaxAgeHours <= 0 {
		cfg.Cooldown.SweepMaxAgeHours = defaultSweepMaxAgeHours
	}

	if cfg.Flapping.Threshold <= 0 {
		cfg.Flapping.Threshold = defaultFlapThreshold
	}
	if cfg.Flapping.WindowSeconds <= 0 {
		cfg.Flapping.WindowSeconds = defaultFlapWindowSeconds
	}
	if cfg.Flapping.HistoryCap <= 0 {
		cfg.Flapping.HistoryCap = defaultFlapHistoryCap
	}
	if cfg.Flapping.StabilityPeriodSec <= 0 {
		cfg.Flapping.StabilityPeriodSec = defaultFlapStabilitySec
	}

	if cfg.Reachability.OfflineThreshold <= 0 {
		cfg.Reachability.OfflineThreshold = defaultOfflineThreshold
	}
	if cfg.Reachability.RecoveryThreshold <= 0 {
		cfg.Reachability.RecoveryThreshold = defaultRecoveryThreshold
	}

	if len(cfg.Routing.DefaultChannels) == 0 {
		cfg.Routing.DefaultChannels = []string{"telegram"}
	}
	for i := range cfg.Routing.Rules {
		if cfg.Routing.Rules[i].Enabled == nil {
			enabled := true
			cfg.Routing.Rules[i].Enabled = &enabled
		}
	}

	if cfg.Escalation.Buckets.CriticalMaxMinutes <= 0 {
		cfg.Escalation.Buckets.CriticalMaxMinutes = defaultEscCriticalMaxMin
	}
	if cfg.Escalation.Buckets.HighMaxMinutes <= 0 {
		cfg.Escalation.Buckets.HighMaxMinutes = defaultEscHighMaxMin
	}
	if cfg.Escalation.Buckets.MediumMaxMinutes <= 0 {
		cfg.Escalation.Buckets.MediumMaxMinutes = defaultEscMediumMaxMin
	}
	for i := range cfg.Escalation.Rules {
		rule := &cfg.Escalation.Rules[i]
		if rule.RepeatCount <= 0 {
			rule.RepeatCount = 1
		}
		if rule.RepeatIntervalMinutes <= 0 {
			rule.RepeatIntervalMinutes = 30
		}
		if rule.Enabled == nil {
			enabled := true
			rule.Enabled = &enabled
		}
	}

	fillNotifyRetryDefaults(&cfg.Notify.Telegram.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Webhook.Retry)
	fillNotifyRetryDefaults(&cfg.Notify.Voice.Retry)
	if cfg.Notify.Webhook.Method == "" {
		cfg.Notify.Webhook.Method = "POST"
	}
	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultWebhookTimeoutSec
	}
	if cfg.Notify.Voice.TimeoutSec <= 0 {
		cfg.Notify.Voice.TimeoutSec = defaultWebhookTimeoutSec
	}
}

// fillNotifyRetryDefaults fills one retry policy with defaults.
// Params: retry config to default in place.
// Returns: nothing.
func fillNotifyRetryDefaults(retry *NotifyRetry) {
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = defaultNotifyRetryInitMS
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = defaultNotifyRetryMaxMS
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultNotifyRetryAttempts
	}
}

// validateConfig checks cross-field consistency of one snapshot.
// Params: defaulted configuration.
// Returns: first validation error found.
func validateConfig(cfg Config) error {
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		return errors.New("at least one ingest interface must be enabled")
	}
	if cfg.Ingest.NATS.Enabled && len(cfg.Ingest.NATS.URL) == 0 {
		return errors.New("ingest.nats.url must not be empty")
	}
	for alertType, seconds := range cfg.Cooldown.Periods {
		if seconds <= 0 {
			return fmt.Errorf("cooldown.periods[%s] must be positive", alertType)
		}
	}
	if err := validateRoutingConfig(cfg.Routing); err != nil {
		return err
	}
	if err := validateEscalationConfig(cfg.Escalation); err != nil {
		return err
	}
	if err := validateContactsConfig(cfg.Contacts); err != nil {
		return err
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token must be set")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id must be set")
		}
	}
	if cfg.Notify.Webhook.Enabled && strings.TrimSpace(cfg.Notify.Webhook.URL) == "" {
		return errors.New("notify.webhook.url must be set")
	}
	if cfg.Notify.Voice.Enabled && strings.TrimSpace(cfg.Notify.Voice.URL) == "" {
		return errors.New("notify.voice.url must be set")
	}
	return nil
}

// hasIngestConfig reports whether any ingest field was set.
// Params: ingest fragment.
// Returns: presence flag for section-level merge.
func hasIngestConfig(cfg IngestConfig) bool {
	return cfg.HTTP != (HTTPIngestConfig{}) ||
		cfg.NATS.Enabled || len(cfg.NATS.URL) > 0 || cfg.NATS.Workers != 0
}

// hasCooldownConfig reports whether any cooldown field was set.
// Params: cooldown fragment.
// Returns: presence flag for section-level merge.
func hasCooldownConfig(cfg CooldownConfig) bool {
	return cfg.DefaultSeconds != 0 || cfg.DedupWindowSeconds != 0 ||
		cfg.SweepMaxAgeHours != 0 || len(cfg.Periods) > 0
}

// hasNotifyConfig reports whether any notify channel was configured.
// Params: notify fragment.
// Returns: presence flag for section-level merge.
func hasNotifyConfig(cfg NotifyConfig) bool {
	return cfg.Telegram.Enabled || cfg.Telegram.BotToken != "" ||
		cfg.Webhook.Enabled || cfg.Webhook.URL != "" ||
		cfg.Voice.Enabled || cfg.Voice.URL != ""
}

// normalizeNATSURLs trims and deduplicates NATS server URLs.
// Params: raw URL list.
// Returns: cleaned list preserving order.
func normalizeNATSURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}
