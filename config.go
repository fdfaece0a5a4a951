package accelade

import (
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pthm/accelade/lib/expression"
	"github.com/pthm/accelade/lib/extension"
	"github.com/pthm/accelade/lib/globalstore"
	"github.com/pthm/accelade/lib/sandbox"
	"github.com/pthm/accelade/lib/storage"
	"github.com/pthm/accelade/lib/store"
	"github.com/pthm/accelade/lib/syncer"
)

// Config is the file-loadable part of a Runtime's configuration.
type Config struct {
	UpdateURL        string         `yaml:"update_url"`
	BatchUpdateURL   string         `yaml:"batch_update_url"`
	CSRFToken        string         `yaml:"csrf_token"`
	Debounce         time.Duration  `yaml:"debounce"`
	Framework        string         `yaml:"framework"`
	ExpressionEngine string         `yaml:"expression_engine"`
	LocalStoragePath string         `yaml:"local_storage_path"`
	SealKey          string         `yaml:"seal_key"`
	ScriptTimeout    time.Duration  `yaml:"script_timeout"`
	Flash            map[string]any `yaml:"flash"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		UpdateURL:        syncer.DefaultUpdateURL,
		BatchUpdateURL:   syncer.DefaultBatchUpdateURL,
		Debounce:         syncer.DefaultDebounce,
		Framework:        store.Vanilla,
		ExpressionEngine: expression.EngineExpr,
		ScriptTimeout:    sandbox.DefaultTimeout,
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
//
//	update_url: /api/accelade/update
//	debounce: 500ms
//	framework: vue
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("accelade: read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	if c.Framework != "" && !slices.Contains(store.Frameworks, c.Framework) {
		return fmt.Errorf("%w: framework %q", ErrInvalidConfig, c.Framework)
	}
	switch c.ExpressionEngine {
	case "", expression.EngineExpr, expression.EngineCEL:
	default:
		return fmt.Errorf("%w: expression engine %q", ErrInvalidConfig, c.ExpressionEngine)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("%w: negative debounce", ErrInvalidConfig)
	}
	return nil
}

// Navigator backs the $navigate script capability.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

// Option configures a Runtime.
type Option func(*options)

type options struct {
	cfg       Config
	logger    *zap.Logger
	client    *http.Client
	navigator Navigator
	features  []extension.Feature
	globals   *globalstore.Registry
	session   storage.Storage
	local     storage.Storage
}

// WithConfig replaces the whole file-loadable configuration. Options after
// it still apply on top.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithUpdateURL sets the single-property sync endpoint.
func WithUpdateURL(url string) Option {
	return func(o *options) {
		o.cfg.UpdateURL = url
	}
}

// WithBatchUpdateURL sets the batch sync endpoint.
func WithBatchUpdateURL(url string) Option {
	return func(o *options) {
		o.cfg.BatchUpdateURL = url
	}
}

// WithCSRFToken sets the token sent with every sync and non-GET load.
func WithCSRFToken(token string) Option {
	return func(o *options) {
		o.cfg.CSRFToken = token
	}
}

// WithDebounce sets the single-property sync debounce.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.cfg.Debounce = d
	}
}

// WithFramework sets the default framework for roots that do not name one.
func WithFramework(framework string) Option {
	return func(o *options) {
		o.cfg.Framework = framework
	}
}

// WithExpressionEngine selects "expr" or "cel" for general expressions.
func WithExpressionEngine(name string) Option {
	return func(o *options) {
		o.cfg.ExpressionEngine = name
	}
}

// WithSealKey enables data-accelade-sealed state.
func WithSealKey(key string) Option {
	return func(o *options) {
		o.cfg.SealKey = key
	}
}

// WithScriptTimeout bounds each script execution.
func WithScriptTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.ScriptTimeout = d
	}
}

// WithFlash sets the page's flash data.
func WithFlash(flash map[string]any) Option {
	return func(o *options) {
		o.cfg.Flash = flash
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithHTTPClient sets the client used for sync and deferred loads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithNavigator backs $navigate.
func WithNavigator(n Navigator) Option {
	return func(o *options) {
		o.navigator = n
	}
}

// WithFeatures replaces the extension set. Defaults to extension.Defaults().
func WithFeatures(features ...extension.Feature) Option {
	return func(o *options) {
		o.features = features
	}
}

// WithGlobalStore shares a global store registry between runtimes.
func WithGlobalStore(r *globalstore.Registry) Option {
	return func(o *options) {
		o.globals = r
	}
}

// WithSessionStorage sets the storage behind data-accelade-session.
// Defaults to an in-memory store owned by the runtime.
func WithSessionStorage(s storage.Storage) Option {
	return func(o *options) {
		o.session = s
	}
}

// WithLocalStorage sets the storage behind data-accelade-local, overriding
// Config.LocalStoragePath.
func WithLocalStorage(s storage.Storage) Option {
	return func(o *options) {
		o.local = s
	}
}
