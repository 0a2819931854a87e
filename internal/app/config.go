package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ghconfig "github.com/cli/go-gh/v2/pkg/config"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/swfz/gh-repos/internal/api"
	"github.com/swfz/gh-repos/internal/models"
	"github.com/swfz/gh-repos/internal/parser"
	"github.com/swfz/gh-repos/internal/storage"
)

const (
	// ConfigFileName is the config file looked up in the gh config directory
	ConfigFileName = "gh-repos.yml"

	defaultTimeout = 30 * time.Second
	maxPerPage     = 100
)

// Rename is a local rename requested on the command line
type Rename struct {
	ID   int64
	Name string
}

// Config holds the application configuration
type Config struct {
	Query    string        // Search term
	PerPage  int           // Items per page
	Sort     *models.Sort  // Requested sort (nil = keep persisted)
	Storage  string        // Storage backend (bolt, sqlite, memory)
	DBPath   string        // Storage file path
	Host     string        // GitHub host
	BaseURL  string        // REST API base URL override (empty = derived from Host)
	Token    string        // Explicit token (empty = gh auth)
	Timeout  time.Duration // HTTP timeout
	MaxRepos int           // List cap (0 = unbounded)
	Pages    int           // Pages to load in one-shot mode

	RequestRate rate.Limit // Search requests per second (0 = API quota based)

	Renames []Rename // One-shot renames
	Deletes []int64  // One-shot deletions
	Reset   bool     // Reset before anything else

	NoInteractive bool // Print table and exit
	Plain         bool // Line prompt instead of TUI
	RateLimit     bool // Print API quota and exit

	Verbose bool   // Enable debug logging
	LogFile string // Log destination (empty = stderr, or discarded in the TUI)

	ConfigPath string // Config file that was loaded, if any
}

// fileConfig is the YAML config file layout. Every field is optional.
type fileConfig struct {
	Query             string        `yaml:"query"`
	PerPage           int           `yaml:"per_page"`
	Sort              string        `yaml:"sort"`
	Storage           string        `yaml:"storage"`
	DBPath            string        `yaml:"db"`
	Host              string        `yaml:"host"`
	APIURL            string        `yaml:"api_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRepos          int           `yaml:"max_repos"`
	Pages             int           `yaml:"pages"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Verbose           bool          `yaml:"verbose"`
	LogFile           string        `yaml:"log_file"`
}

// DefaultConfig returns the configuration used when nothing is specified
func DefaultConfig() *Config {
	return &Config{
		Query:   api.DefaultQuery,
		PerPage: api.DefaultPerPage,
		Storage: storage.BackendBolt,
		Host:    api.DefaultHost,
		Timeout: defaultTimeout,
		Pages:   1,
	}
}

// DefaultConfigPath returns the config file location inside the gh config directory
func DefaultConfigPath() string {
	return filepath.Join(ghconfig.ConfigDir(), ConfigFileName)
}

// DefaultDBPath returns the storage file location for backend inside the gh state directory
func DefaultDBPath(backend string) string {
	name := "repos.db"
	if backend == storage.BackendSQLite {
		name = "repos.sqlite"
	}
	return filepath.Join(ghconfig.StateDir(), "gh-repos", name)
}

// ParseConfig parses command-line flags, merges the optional config file and
// validates the result. Flags given explicitly win over the config file.
func ParseConfig(args []string, stderr io.Writer) (*Config, error) {
	fs := pflag.NewFlagSet("gh-repos", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		sortSpec   string
		renames    []string
		flagCfg    = DefaultConfig()
	)

	fs.StringVar(&configPath, "config", "", "Config file (default "+DefaultConfigPath()+")")
	fs.StringVarP(&flagCfg.Query, "query", "q", flagCfg.Query, "Search term")
	fs.IntVar(&flagCfg.PerPage, "per-page", flagCfg.PerPage, "Repositories per page (1-100)")
	fs.StringVarP(&sortSpec, "sort", "s", "", "Sort as field[:order], e.g. name:asc (fields: stars, name, updated)")
	fs.StringVar(&flagCfg.Storage, "storage", flagCfg.Storage, "Storage backend: bolt, sqlite or memory")
	fs.StringVar(&flagCfg.DBPath, "db", "", "Storage file path (default under the gh state directory)")
	fs.StringVar(&flagCfg.Host, "hostname", flagCfg.Host, "GitHub host")
	fs.StringVar(&flagCfg.Token, "token", "", "GitHub token (default: gh auth token)")
	fs.DurationVar(&flagCfg.Timeout, "timeout", flagCfg.Timeout, "HTTP request timeout")
	fs.IntVar(&flagCfg.MaxRepos, "max-repos", 0, "Maximum repositories kept in the list (0 = unlimited)")
	fs.IntVar(&flagCfg.Pages, "pages", flagCfg.Pages, "Pages to load with --no-interactive")
	fs.StringArrayVar(&renames, "rename", nil, "Rename a repository locally, as id=name (repeatable)")
	fs.Int64SliceVar(&flagCfg.Deletes, "delete", nil, "Remove a repository locally by id (repeatable)")
	fs.BoolVar(&flagCfg.Reset, "reset", false, "Restore the default sort and clear stored repositories")
	fs.BoolVar(&flagCfg.NoInteractive, "no-interactive", false, "Print the repository table and exit")
	fs.BoolVar(&flagCfg.Plain, "plain", false, "Use a line prompt instead of the full-screen UI")
	fs.BoolVar(&flagCfg.RateLimit, "rate-limit", false, "Show API rate limits and exit")
	fs.BoolVarP(&flagCfg.Verbose, "verbose", "v", false, "Enable verbose output")
	fs.StringVar(&flagCfg.LogFile, "log-file", "", "Write logs to this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	config := DefaultConfig()

	// Config file first, then explicit flags on top
	file, path, err := loadConfigFile(configPath, fs.Changed("config"))
	if err != nil {
		return nil, err
	}
	if file != nil {
		config.ConfigPath = path
		if err := config.applyFile(file); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	config.applyFlags(fs, flagCfg)

	if fs.Changed("sort") {
		sort, err := parser.ParseSort(sortSpec, models.DefaultSort())
		if err != nil {
			return nil, err
		}
		config.Sort = &sort
	}

	for _, r := range renames {
		rename, err := parseRename(r)
		if err != nil {
			return nil, err
		}
		config.Renames = append(config.Renames, rename)
	}

	if config.DBPath == "" && config.Storage != storage.BackendMemory {
		config.DBPath = DefaultDBPath(config.Storage)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadConfigFile reads the config file. A missing default file is not an
// error; a missing explicit file is.
func loadConfigFile(path string, explicit bool) (*fileConfig, string, error) {
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, "", nil
		}
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, path, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &file, path, nil
}

func (c *Config) applyFile(f *fileConfig) error {
	if f.Query != "" {
		c.Query = f.Query
	}
	if f.PerPage != 0 {
		c.PerPage = f.PerPage
	}
	if f.Sort != "" {
		sort, err := parser.ParseSort(f.Sort, models.DefaultSort())
		if err != nil {
			return err
		}
		c.Sort = &sort
	}
	if f.Storage != "" {
		c.Storage = f.Storage
	}
	if f.DBPath != "" {
		c.DBPath = f.DBPath
	}
	if f.Host != "" {
		c.Host = f.Host
	}
	if f.APIURL != "" {
		c.BaseURL = f.APIURL
	}
	if f.RequestsPerMinute < 0 {
		return errors.New("requests_per_minute must be >= 0")
	}
	if f.RequestsPerMinute > 0 {
		c.RequestRate = rate.Limit(float64(f.RequestsPerMinute) / 60)
	}
	if f.Timeout != 0 {
		c.Timeout = f.Timeout
	}
	if f.MaxRepos != 0 {
		c.MaxRepos = f.MaxRepos
	}
	if f.Pages != 0 {
		c.Pages = f.Pages
	}
	if f.Verbose {
		c.Verbose = true
	}
	if f.LogFile != "" {
		c.LogFile = f.LogFile
	}
	return nil
}

// applyFlags copies the explicitly set flags from parsed
func (c *Config) applyFlags(fs *pflag.FlagSet, parsed *Config) {
	if fs.Changed("query") {
		c.Query = parsed.Query
	}
	if fs.Changed("per-page") {
		c.PerPage = parsed.PerPage
	}
	if fs.Changed("storage") {
		c.Storage = parsed.Storage
	}
	if fs.Changed("db") {
		c.DBPath = parsed.DBPath
	}
	if fs.Changed("hostname") {
		c.Host = parsed.Host
	}
	if fs.Changed("timeout") {
		c.Timeout = parsed.Timeout
	}
	if fs.Changed("max-repos") {
		c.MaxRepos = parsed.MaxRepos
	}
	if fs.Changed("pages") {
		c.Pages = parsed.Pages
	}
	if fs.Changed("verbose") {
		c.Verbose = parsed.Verbose
	}
	if fs.Changed("log-file") {
		c.LogFile = parsed.LogFile
	}

	// Flag-only settings
	c.Token = parsed.Token
	c.Deletes = parsed.Deletes
	c.Reset = parsed.Reset
	c.NoInteractive = parsed.NoInteractive
	c.Plain = parsed.Plain
	c.RateLimit = parsed.RateLimit
}

// Validate checks value ranges and conflicting modes
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Query) == "" {
		return errors.New("--query must not be empty")
	}

	if c.PerPage < 1 || c.PerPage > maxPerPage {
		return fmt.Errorf("--per-page must be between 1 and %d", maxPerPage)
	}

	if c.Pages < 1 {
		return errors.New("--pages must be >= 1")
	}

	if c.MaxRepos < 0 {
		return errors.New("--max-repos must be >= 0")
	}

	if c.Timeout <= 0 {
		return errors.New("--timeout must be positive")
	}

	switch c.Storage {
	case storage.BackendBolt, storage.BackendSQLite, storage.BackendMemory:
	default:
		return fmt.Errorf("--storage must be one of bolt, sqlite, memory (got %q)", c.Storage)
	}

	if c.Plain && c.NoInteractive {
		return errors.New("cannot specify both --plain and --no-interactive")
	}

	return nil
}

// parseRename parses "id=name"
func parseRename(s string) (Rename, error) {
	idPart, name, ok := strings.Cut(s, "=")
	if !ok {
		return Rename{}, fmt.Errorf("invalid --rename %q (expected id=name)", s)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil {
		return Rename{}, fmt.Errorf("invalid --rename id %q", idPart)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Rename{}, fmt.Errorf("invalid --rename %q: empty name", s)
	}

	return Rename{ID: id, Name: name}, nil
}
