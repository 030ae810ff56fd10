package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds all render settings. The arena size and recursion depth
// are the only tunables affecting the core; the rest shapes the output.
type Config struct {
	// Paths; "-" means stdin/stdout.
	Scene  string `json:"scene"`
	Output string `json:"output"`

	// Output format: ppm, png, webp or tga. Empty means derive from the
	// output filename, falling back to ppm.
	Format string `json:"format"`

	// Render settings
	MemKB       int `json:"mem_kb"`
	MaxDepth    int `json:"max_depth"`
	Supersample int `json:"supersample"`
	Width       int `json:"width"`
	Height      int `json:"height"`
}

// parseHeadroomKB is the arena space budgeted for scene structures and
// buffer growth on top of the frame buffer itself.
const parseHeadroomKB = 512

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Scene != "" {
		c.Scene = flags.Scene
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.MemKB > 0 {
		c.MemKB = flags.MemKB
	}
	if flags.MaxDepth > 0 {
		c.MaxDepth = flags.MaxDepth
	}
	if flags.Supersample > 0 {
		c.Supersample = flags.Supersample
	}
	if flags.Width > 0 {
		c.Width = flags.Width
	}
	if flags.Height > 0 {
		c.Height = flags.Height
	}

	// Defaults
	if c.Scene == "" {
		c.Scene = "-"
	}
	if c.Output == "" {
		c.Output = "-"
	}
	if c.Format == "" {
		c.Format = detectFormat(c.Output)
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 4
	}
	if c.Supersample <= 0 {
		c.Supersample = 1
	}
	if c.Width <= 0 {
		c.Width = 800
	}
	if c.Height <= 0 {
		c.Height = 600
	}
	if c.MemKB <= 0 {
		// The frame buffer lives inside the arena, so the default region
		// must hold the supersampled pixel array plus parse headroom.
		pixels := c.Width * c.Supersample * c.Height * c.Supersample * 3
		c.MemKB = pixels/1024 + parseHeadroomKB
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Scene       string
	Output      string
	Format      string
	MemKB       int
	MaxDepth    int
	Supersample int
	Width       int
	Height      int
}

func detectFormat(output string) string {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".png":
		return "png"
	case ".webp":
		return "webp"
	case ".tga":
		return "tga"
	default:
		return "ppm"
	}
}
