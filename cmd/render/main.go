package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"os"

	"crt-renderer/internal/arena"
	"crt-renderer/internal/config"
	"crt-renderer/internal/postprocess"
	"crt-renderer/internal/raster"
	"crt-renderer/internal/scene"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	sceneFile := flag.String("scene", "", "Scene description file (default: stdin)")
	output := flag.String("o", "", "Output image file (default: stdout)")
	format := flag.String("format", "", "Output format: ppm, png, webp or tga (default: from extension)")
	mem := flag.Int("mem", 0, "Arena size in KiB (default: sized for the output dimensions)")
	depth := flag.Int("depth", 0, "Maximum ray recursion depth (default: 4)")
	supersample := flag.Int("supersample", 0, "Supersampling factor, 2 traces 4 rays per pixel (default: 1)")
	width := flag.Int("width", 0, "Image width in pixels (default: 800)")
	height := flag.Int("height", 0, "Image height in pixels (default: 600)")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		Scene:       *sceneFile,
		Output:      *output,
		Format:      *format,
		MemKB:       *mem,
		MaxDepth:    *depth,
		Supersample: *supersample,
		Width:       *width,
		Height:      *height,
	})

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run owns the arena buffer for the whole render: the buffer is created
// once, sized by config, and never grows.
func run(cfg config.Config) error {
	text, err := readScene(cfg.Scene)
	if err != nil {
		return err
	}

	a := arena.New(make([]byte, cfg.MemKB*1024))
	model, err := scene.Parse(a, text)
	if err != nil {
		return err
	}

	fb, err := raster.NewFrameBuffer(a, cfg.Width*cfg.Supersample, cfg.Height*cfg.Supersample)
	if err != nil {
		return err
	}
	raster.Render(model, fb, cfg.MaxDepth)

	img := postprocess.Downsample(fb.NRGBA(), cfg.Width, cfg.Height)
	return writeImage(cfg.Output, cfg.Format, img)
}

func readScene(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading scene from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading scene: %w", err)
	}
	return string(data), nil
}

func writeImage(path, format string, img *image.NRGBA) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("writing image: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := raster.Encode(w, format, img); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return nil
}
