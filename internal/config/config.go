// Package config loads resolver settings from .env files, the environment
// and command line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	resolverv1alpha1 "github.com/pulseengine/component-resolver/api/v1alpha1"
	"github.com/pulseengine/component-resolver/internal/remote"
	"github.com/pulseengine/component-resolver/internal/tree"
)

// Source names used in remote references.
const (
	SourceRegistry = "registry"
	SourceMirror   = "mirror"
	SourceS3       = "s3"
)

type Config struct {
	CacheDir      string
	WorkDir       string
	ProfilePolicy resolverv1alpha1.ProfilePolicy
	ImportPolicy  resolverv1alpha1.ImportPolicy
	LinkMode      resolverv1alpha1.LinkMode

	DefaultSource string
	RegistryAddr  string
	MirrorDir     string
	S3            S3Config

	Tools Tools
}

type S3Config struct {
	Enabled bool
	remote.S3Config
}

// Tools are the external executables, looked up on PATH unless absolute.
type Tools struct {
	WitBindgen string
	Wac        string
	WasmTools  string
}

// Load reads .env (or the given files) and the environment. Missing .env
// files are ignored.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = os.TempDir()
	}

	cfg := &Config{
		CacheDir:      firstNonEmpty(env("RESOLVER_CACHE_DIR"), filepath.Join(cacheRoot, "component-resolver")),
		WorkDir:       firstNonEmpty(env("RESOLVER_WORK_DIR"), ".resolver"),
		ProfilePolicy: resolverv1alpha1.ProfilePolicy(firstNonEmpty(env("RESOLVER_PROFILE_POLICY"), string(resolverv1alpha1.ProfilePolicyLenient))),
		ImportPolicy:  resolverv1alpha1.ImportPolicy(firstNonEmpty(env("RESOLVER_IMPORT_POLICY"), string(resolverv1alpha1.ImportPolicyPassthrough))),
		LinkMode:      resolverv1alpha1.LinkMode(firstNonEmpty(env("RESOLVER_LINK_MODE"), string(resolverv1alpha1.LinkModeLink))),
		RegistryAddr:  env("RESOLVER_REGISTRY_ADDR"),
		MirrorDir:     env("RESOLVER_MIRROR_DIR"),
		S3:            loadS3Config(),
		Tools: Tools{
			WitBindgen: firstNonEmpty(env("RESOLVER_WIT_BINDGEN"), "wit-bindgen"),
			Wac:        firstNonEmpty(env("RESOLVER_WAC"), "wac"),
			WasmTools:  firstNonEmpty(env("RESOLVER_WASM_TOOLS"), "wasm-tools"),
		},
	}
	cfg.DefaultSource = env("RESOLVER_DEFAULT_SOURCE")
	return cfg, cfg.Complete()
}

func loadS3Config() S3Config {
	endpoint := env("RESOLVER_S3_ENDPOINT")
	return S3Config{
		Enabled: endpoint != "",
		S3Config: remote.S3Config{
			Endpoint:  endpoint,
			Region:    firstNonEmpty(env("RESOLVER_S3_REGION"), "us-east-1"),
			AccessKey: firstNonEmpty(env("RESOLVER_S3_ACCESS_KEY"), env("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(env("RESOLVER_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD")),
			Bucket:    firstNonEmpty(env("RESOLVER_S3_BUCKET"), "components"),
			Prefix:    env("RESOLVER_S3_PREFIX"),
			UseSSL:    parseBool(env("RESOLVER_S3_USE_SSL"), true),
		},
	}
}

// inferDefaultSource picks the only configured source, if there is exactly one.
func (c *Config) inferDefaultSource() string {
	var configured []string
	if c.RegistryAddr != "" {
		configured = append(configured, SourceRegistry)
	}
	if c.MirrorDir != "" {
		configured = append(configured, SourceMirror)
	}
	if c.S3.Enabled {
		configured = append(configured, SourceS3)
	}
	if len(configured) == 1 {
		return configured[0]
	}
	return ""
}

// Complete fills settings derived from others and validates the result.
// Call it again after flags were parsed.
func (c *Config) Complete() error {
	if c.DefaultSource == "" {
		c.DefaultSource = c.inferDefaultSource()
	}
	return c.Validate()
}

// BindFlags registers flags overriding the loaded values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.CacheDir, "cache-dir", c.CacheDir, "Directory for downloaded remote components.")
	fs.StringVar(&c.WorkDir, "work-dir", c.WorkDir, "Directory for assembled trees and composer staging.")
	fs.StringVar((*string)(&c.ProfilePolicy), "profile-policy", string(c.ProfilePolicy), "Missing profile handling: lenient or strict.")
	fs.StringVar((*string)(&c.ImportPolicy), "import-policy", string(c.ImportPolicy), "Unmatched import handling: passthrough or strict.")
	fs.StringVar((*string)(&c.LinkMode), "link-mode", string(c.LinkMode), "How trees reference files: link or copy.")
	fs.StringVar(&c.DefaultSource, "default-source", c.DefaultSource, "Source for remote references without one.")
	fs.StringVar(&c.RegistryAddr, "registry-addr", c.RegistryAddr, "Address of the component registry service.")
	fs.StringVar(&c.MirrorDir, "mirror-dir", c.MirrorDir, "Directory mirror of remote components.")
	fs.StringVar(&c.Tools.WitBindgen, "wit-bindgen", c.Tools.WitBindgen, "Binding generator executable.")
	fs.StringVar(&c.Tools.Wac, "wac", c.Tools.Wac, "Composer executable.")
	fs.StringVar(&c.Tools.WasmTools, "wasm-tools", c.Tools.WasmTools, "Component inspector executable.")
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.ProfilePolicy {
	case resolverv1alpha1.ProfilePolicyLenient, resolverv1alpha1.ProfilePolicyStrict:
	default:
		return fmt.Errorf("invalid profile policy %q (want lenient or strict)", c.ProfilePolicy)
	}
	switch c.ImportPolicy {
	case resolverv1alpha1.ImportPolicyPassthrough, resolverv1alpha1.ImportPolicyStrict:
	default:
		return fmt.Errorf("invalid import policy %q (want passthrough or strict)", c.ImportPolicy)
	}
	if _, err := c.Strategy(); err != nil {
		return err
	}
	return nil
}

// Strategy is the tree link strategy for LinkMode.
func (c *Config) Strategy() (tree.Strategy, error) {
	return tree.ParseStrategy(string(c.LinkMode))
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
