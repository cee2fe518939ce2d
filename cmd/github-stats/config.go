package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sternrassler/github-stats/pkg/collector"
	"github.com/Sternrassler/github-stats/pkg/logging"
)

// Config is the command configuration after merging flags, environment
// variables and the optional config file.
type Config struct {
	Token             string
	Actor             string
	Excluded          []string
	ExcludedLangs     []string
	ExcludeForked     bool
	DetailedBreakdown bool
	OutputDir         string
	LogLevel          logging.LogLevel
	LogPretty         bool
	MetricsFile       string
	RequestsPerSecond float64
}

// Keys double as environment variable names once upper-cased.
const (
	keyToken             = "access_token"
	keyActor             = "github_actor"
	keyExcluded          = "excluded"
	keyOmitRepos         = "omit_repos"
	keyExcludedLangs     = "excluded_langs"
	keyExcludeForked     = "exclude_forked_repos"
	keyDetailedBreakdown = "detailed_breakdown"
	keyOutputDir         = "output_dir"
	keyLogLevel          = "log_level"
	keyLogPretty         = "log_pretty"
	keyMetricsFile       = "metrics_file"
	keyRequestsPerSecond = "requests_per_second"
)

const defaultOutputDir = "generated"

var errTokenRequired = errors.New("ACCESS_TOKEN is required")

// LoadConfig parses args and resolves the configuration. Flags win over
// environment variables, which win over the config file.
func LoadConfig(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("github-stats", pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "optional YAML config file")
	fs.String("actor", "", "login to collect statistics for (default: token owner)")
	fs.StringP("output-dir", "o", defaultOutputDir, "directory for generated images")
	fs.Bool("detailed-breakdown", false, "collect per-repository details and write breakdown.html")
	fs.Bool("exclude-forked-repos", false, "skip repositories only contributed to")
	fs.String("log-level", string(logging.LevelInfo), "debug, info, warn or error")
	fs.Bool("log-pretty", false, "human-readable log output")
	fs.String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	fs.Float64("requests-per-second", 0, "pace requests client-side (0 disables)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault(keyOutputDir, defaultOutputDir)
	v.SetDefault(keyLogLevel, string(logging.LevelInfo))
	v.AutomaticEnv()

	bindings := map[string]string{
		keyActor:             "actor",
		keyOutputDir:         "output-dir",
		keyDetailedBreakdown: "detailed-breakdown",
		keyExcludeForked:     "exclude-forked-repos",
		keyLogLevel:          "log-level",
		keyLogPretty:         "log-pretty",
		keyMetricsFile:       "metrics-file",
		keyRequestsPerSecond: "requests-per-second",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	level, err := logging.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Token:             strings.TrimSpace(v.GetString(keyToken)),
		Actor:             strings.TrimSpace(v.GetString(keyActor)),
		Excluded:          union(listValue(v, keyExcluded), listValue(v, keyOmitRepos)),
		ExcludedLangs:     union(listValue(v, keyExcludedLangs)),
		ExcludeForked:     v.GetBool(keyExcludeForked),
		DetailedBreakdown: v.GetBool(keyDetailedBreakdown),
		OutputDir:         v.GetString(keyOutputDir),
		LogLevel:          level,
		LogPretty:         v.GetBool(keyLogPretty),
		MetricsFile:       v.GetString(keyMetricsFile),
		RequestsPerSecond: v.GetFloat64(keyRequestsPerSecond),
	}

	if cfg.Token == "" {
		return nil, errTokenRequired
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, errors.New("requests per second must be >= 0")
	}

	return cfg, nil
}

// Options converts the configuration into run options.
func (c *Config) Options() collector.Options {
	opts := collector.DefaultOptions()
	opts.ExcludeRepositories = c.Excluded
	opts.ExcludeLanguages = c.ExcludedLangs
	opts.IgnoreForkedContributions = c.ExcludeForked
	opts.CollectDetailedBreakdown = c.DetailedBreakdown
	opts.RequestsPerSecond = c.RequestsPerSecond
	return opts
}

// listValue reads key as either a comma-separated string (environment)
// or a list (config file).
func listValue(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return strings.Split(raw, ",")
	}
	return v.GetStringSlice(key)
}

// union trims, de-duplicates and sorts the given lists, dropping empty
// entries.
func union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, item := range list {
			item = strings.TrimSpace(item)
			if item != "" {
				seen[item] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for item := range seen {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
