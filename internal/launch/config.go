package launch

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// Names of the environment variables in the contract.
const (
	EnvTranslateHost   = "TRANSLATE_HOST"
	EnvTranslatePort   = "TRANSLATE_PORT"
	EnvOllamaHost      = "OLLAMA_HOST"
	EnvOllamaPort      = "OLLAMA_PORT"
	EnvOllamaURL       = "OLLAMA_URL"
	EnvForgeHost       = "FORGE_HOST"
	EnvForgePort       = "FORGE_PORT"
	EnvTranslateModel  = "TRANSLATE_MODEL"
	EnvTranslatePrompt = "TRANSLATE_PROMPT"
	EnvStoragePath     = "STORAGE_PATH"
)

// A documented environment variable.
type Var struct {
	Name        string // Environment variable name.
	Default     string // Value used when the variable is unset or blank.
	Description string // What the variable configures.
}

// The contract, in documentation order. OLLAMA_URL defaults to a value
// derived from OLLAMA_HOST and OLLAMA_PORT and is therefore listed without
// a literal default.
var Vars = []Var{
	{EnvTranslateHost, "0.0.0.0", "listen host of the proxied service"},
	{EnvTranslatePort, "8091", "listen port of the proxied service"},
	{EnvOllamaHost, "127.0.0.1", "text-generation backend host"},
	{EnvOllamaPort, "11434", "text-generation backend port"},
	{EnvOllamaURL, "", "full text-generation backend URL, overrides host and port"},
	{EnvForgeHost, "127.0.0.1", "image-generation backend host"},
	{EnvForgePort, "7865", "image-generation backend port"},
	{EnvTranslateModel, "brxce/stable-diffusion-prompt-generator:latest", "model loaded by the text backend"},
	{EnvTranslatePrompt, "Translate the following Japanese text to danbooru English optimized for Stable Diffusion prompts: {text}", "prompt template, {text} is replaced with the input"},
	{EnvStoragePath, "/app/data", "directory where generated artifacts persist"},
}

// Resolved runtime configuration.
type Config struct {
	TranslateHost   string // Listen host.
	TranslatePort   int    // Listen port.
	OllamaHost      string // Text backend host.
	OllamaPort      int    // Text backend port.
	OllamaURL       string // Text backend base URL.
	ForgeHost       string // Image backend host.
	ForgePort       int    // Image backend port.
	TranslateModel  string // Text backend model.
	TranslatePrompt string // Prompt template.
	StoragePath     string // Artifact directory.
}

// Returns the documented defaults keyed by variable name.
func Defaults() map[string]string {
	d := make(map[string]string, len(Vars))
	for _, v := range Vars {
		d[v.Name] = v.Default
	}
	return d
}

// Resolves every contract variable from env, falling back to its default.
//
// Unknown keys in env are ignored. Errors wrap [ErrConfigInvalid] and name
// the offending variable.
func Resolve(env map[string]string) (*Config, error) {
	get := func(name string) string {
		if v := strings.TrimSpace(env[name]); v != "" {
			return v
		}
		return defaultOf(name)
	}

	var errs []string
	port := func(name string) int {
		p, err := parsePort(get(name))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		return p
	}

	cfg := &Config{
		TranslateHost:   get(EnvTranslateHost),
		TranslatePort:   port(EnvTranslatePort),
		OllamaHost:      get(EnvOllamaHost),
		OllamaPort:      port(EnvOllamaPort),
		ForgeHost:       get(EnvForgeHost),
		ForgePort:       port(EnvForgePort),
		TranslateModel:  get(EnvTranslateModel),
		TranslatePrompt: get(EnvTranslatePrompt),
		StoragePath:     get(EnvStoragePath),
	}

	cfg.OllamaURL = get(EnvOllamaURL)
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = "http://" + joinHostPort(cfg.OllamaHost, cfg.OllamaPort)
	} else if err := checkURL(cfg.OllamaURL); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", EnvOllamaURL, err))
	}

	if !filepath.IsAbs(cfg.StoragePath) {
		errs = append(errs, fmt.Sprintf("%s: %q is not an absolute path", EnvStoragePath, cfg.StoragePath))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Returns the configuration as KEY=value pairs, one per contract variable.
func (c *Config) Environ() []string {
	return []string{
		EnvTranslateHost + "=" + c.TranslateHost,
		EnvTranslatePort + "=" + strconv.Itoa(c.TranslatePort),
		EnvOllamaHost + "=" + c.OllamaHost,
		EnvOllamaPort + "=" + strconv.Itoa(c.OllamaPort),
		EnvOllamaURL + "=" + c.OllamaURL,
		EnvForgeHost + "=" + c.ForgeHost,
		EnvForgePort + "=" + strconv.Itoa(c.ForgePort),
		EnvTranslateModel + "=" + c.TranslateModel,
		EnvTranslatePrompt + "=" + c.TranslatePrompt,
		EnvStoragePath + "=" + c.StoragePath,
	}
}

// Returns the address the service listens on.
func (c *Config) ListenAddr() string {
	return joinHostPort(c.TranslateHost, c.TranslatePort)
}

// Returns the prompt for text, filling the template placeholder.
func (c *Config) Prompt(text string) string {
	return strings.ReplaceAll(c.TranslatePrompt, "{text}", text)
}

func defaultOf(name string) string {
	for _, v := range Vars {
		if v.Name == name {
			return v.Default
		}
	}
	return ""
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a port number", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}

func checkURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", s)
	}
	return nil
}

func joinHostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}
