package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vitaminmoo/geniusdl/internal/commands"
	"github.com/vitaminmoo/geniusdl/internal/config"
	"github.com/vitaminmoo/geniusdl/internal/logging"
	"github.com/vitaminmoo/geniusdl/internal/store"
	"github.com/vitaminmoo/geniusdl/internal/tui"
)

// CLI is the root command structure for geniusdl.
type CLI struct {
	Verbose    bool          `short:"v" help:"Enable verbose debug output"`
	LogLevel   string        `name:"log-level" help:"Log level (debug, info, warn, error)"`
	ConfigFile string        `name:"config" short:"c" type:"path" help:"Config file (default ~/.config/geniusdl/config.yaml)"`
	Address    string        `help:"Connect to this device address instead of matching by name"`
	Timeout    time.Duration `help:"Response timeout per command"`
	StoreDir   string        `name:"store" type:"path" help:"Dive store directory"`

	Scan     ScanCmd     `cmd:"" help:"Scan for Mares dive computers"`
	Info     InfoCmd     `cmd:"" help:"Show model, PCB number and dive count"`
	Objects  ObjectsCmd  `cmd:"" help:"Read diagnostic objects"`
	SetClock SetClockCmd `cmd:"" name:"set-clock" help:"Set the device clock"`
	Download DownloadCmd `cmd:"" help:"Download new dives into the store"`
	Parse    ParseCmd    `cmd:"" help:"Decode a directory of raw dive objects"`
	Store    StoreCmd    `cmd:"" help:"Dive store"`
	Config   ConfigCmd   `cmd:"" help:"Configuration file"`
}

// setup loads the configuration, applies flag overrides and starts logging.
func (c *CLI) setup() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.ConfigFile != "" {
		cfg, err = config.Load(c.ConfigFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	level := c.LogLevel
	if level == "" && c.Verbose {
		level = "debug"
	}
	if level == "" {
		level = cfg.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return nil, err
	}

	if c.Address != "" {
		cfg.Device.Address = c.Address
	}
	if c.Timeout > 0 {
		cfg.Protocol.CommandTimeout = c.Timeout
	}
	if c.StoreDir != "" {
		cfg.StoreDir = c.StoreDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// --- Device Commands ---

type ScanCmd struct {
	All       bool `help:"List every named device, not only Mares ones"`
	Enumerate bool `help:"Connect to each device and list its GATT services"`
}

func (c *ScanCmd) Run(globals *CLI, ctx context.Context) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	return commands.Scan(ctx, cfg, c.All, c.Enumerate)
}

type InfoCmd struct {
	JSON bool `help:"Print as JSON"`
}

func (c *InfoCmd) Run(globals *CLI, ctx context.Context) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	return commands.Info(ctx, cfg, c.JSON)
}

type ObjectsCmd struct {
	Addresses []string `arg:"" optional:"" help:"Objects to read as index/sub, e.g. 0x2000/4 (default: diagnostic objects)"`
}

func (c *ObjectsCmd) Run(globals *CLI, ctx context.Context) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	return commands.Objects(ctx, cfg, c.Addresses)
}

type SetClockCmd struct {
	Time string `arg:"" optional:"" help:"Local time as 'YYYY-MM-DD HH:MM:SS' (default: now)"`
}

func (c *SetClockCmd) Run(globals *CLI, ctx context.Context) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	var t time.Time
	if c.Time != "" {
		t, err = time.ParseInLocation(time.DateTime, c.Time, time.Local)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", c.Time, err)
		}
	}
	return commands.SetClock(ctx, cfg, t)
}

// --- Download Commands ---

type DownloadCmd struct {
	SaveRaw  string `name:"save-raw" type:"path" placeholder:"DIR" help:"Also write raw header/profile objects to DIR"`
	NoTUI    bool   `name:"no-tui" help:"Print plain progress lines instead of the interactive screen"`
	Export   string `type:"path" placeholder:"FILE" help:"Export the dives downloaded in this run"`
	Format   string `enum:"json,csv" default:"json" help:"Export format (json, csv)"`
	SetClock bool   `name:"set-clock" help:"Set the device clock before downloading"`
}

func (c *DownloadCmd) Run(globals *CLI, ctx context.Context) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	if c.SetClock {
		cfg.Download.SetClock = true
	}
	return commands.Download(ctx, cfg, commands.DownloadOptions{
		RawDir: c.SaveRaw,
		NoTUI:  c.NoTUI,
		Export: c.Export,
		Format: c.Format,
	})
}

type ParseCmd struct {
	Dir    string `arg:"" type:"existingdir" help:"Directory written by download --save-raw"`
	Import bool   `help:"Add the decoded dives to the store"`
	Export string `type:"path" placeholder:"FILE" help:"Export the decoded dives"`
	Format string `enum:"json,csv" default:"json" help:"Export format (json, csv)"`
}

func (c *ParseCmd) Run(globals *CLI) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	return commands.Parse(cfg, c.Dir, commands.ParseOptions{
		Import: c.Import,
		Export: c.Export,
		Format: c.Format,
	})
}

// --- Store Commands ---

type StoreCmd struct {
	List   StoreListCmd   `cmd:"" help:"List stored dives"`
	Show   StoreShowCmd   `cmd:"" help:"Show details of a stored dive"`
	Export StoreExportCmd `cmd:"" help:"Export stored dives to a file"`
	Path   StorePathCmd   `cmd:"" help:"Print the store directory"`
}

type StoreListCmd struct{}

func (c *StoreListCmd) Run(globals *CLI) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	s, err := commands.OpenStore(cfg)
	if err != nil {
		return err
	}

	entries, err := s.List()
	if err != nil {
		return fmt.Errorf("failed to list dives: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No dives in store.")
		fmt.Println("Download dives with: geniusdl download")
		return nil
	}

	styles := tui.DefaultStyles()
	fmt.Printf("Found %d dive(s):\n\n", len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %5d  %s  %8s  %5.1f m  %-6s %4d samples",
			e.Key,
			e.Identity.Number,
			e.Identity.Time,
			time.Duration(e.DurationSeconds)*time.Second,
			e.MaxDepthM,
			e.Mode,
			e.Samples)
		if e.Partial {
			line += "  " + styles.Warning.Render("partial")
		}
		fmt.Println(line)
	}
	return nil
}

type StoreShowCmd struct {
	Ref  string `arg:"" help:"Dive key, number (e.g. 42 or #42) or key prefix"`
	JSON bool   `help:"Print the decoded dive as JSON"`
}

func (c *StoreShowCmd) Run(globals *CLI) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	s, err := commands.OpenStore(cfg)
	if err != nil {
		return err
	}

	key, err := s.Resolve(c.Ref)
	if err != nil {
		return err
	}
	rec, err := s.Get(key)
	if err != nil {
		return err
	}
	if c.JSON {
		return commands.PrintJSON(rec)
	}
	meta, err := s.GetMetadata(key)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	styles := tui.DefaultStyles()
	h := rec.Header
	fmt.Println(styles.Title.Render(fmt.Sprintf("Dive #%d", rec.Identity.Number)))
	fmt.Println()
	fmt.Println(styles.Field("Date", rec.Identity.Time.String()))
	fmt.Println(styles.Field("Mode", h.Mode.String()))
	fmt.Println(styles.Field("Duration", (time.Duration(h.DurationSeconds()) * time.Second).String()))
	fmt.Println(styles.Field("Max depth", fmt.Sprintf("%.1f m", h.MaxDepthMeters())))
	fmt.Println(styles.Field("Temperature", fmt.Sprintf("%.1f to %.1f °C", float64(h.TemperatureMin)/10, float64(h.TemperatureMax)/10)))
	fmt.Println(styles.Field("Salinity", h.Salinity.String()))
	fmt.Println(styles.Field("Samples", fmt.Sprint(len(rec.Samples()))))
	for i, g := range h.GasMixes {
		if g.Used() {
			fmt.Println(styles.Field(fmt.Sprintf("Gas %d", i+1), fmt.Sprintf("O2 %d%% He %d%%", g.O2, g.He)))
		}
	}
	if rec.Partial {
		fmt.Println(styles.Field("Partial", fmt.Sprintf("%d invalid records", rec.InvalidRecords)))
		for _, p := range rec.Problems {
			fmt.Println("  " + styles.Warning.Render(p))
		}
	}
	fmt.Println(styles.Field("Content hash", store.ShortHash(meta.ContentHash)))

	fmt.Println()
	fmt.Println(styles.Subtitle.Render("Sources"))
	for _, src := range meta.Sources {
		from := src.DeviceDir()
		if src.Filename != "" {
			from = src.Filename
		}
		fmt.Printf("  %s  %-8s  %s  index %d\n", src.Timestamp.Format(time.DateTime), src.Method, from, src.Index)
	}
	return nil
}

type StoreExportCmd struct {
	Output string   `short:"o" required:"" type:"path" help:"Output file (CSV writes one file per dive next to it)"`
	Format string   `enum:"json,csv" default:"json" help:"Export format (json, csv)"`
	Refs   []string `arg:"" optional:"" help:"Dives to export (default: all)"`
}

func (c *StoreExportCmd) Run(globals *CLI) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	s, err := commands.OpenStore(cfg)
	if err != nil {
		return err
	}

	recs, err := s.Records()
	if err != nil {
		return err
	}
	if len(c.Refs) > 0 {
		recs = nil
		for _, ref := range c.Refs {
			key, err := s.Resolve(ref)
			if err != nil {
				return err
			}
			rec, err := s.Get(key)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 {
		return fmt.Errorf("no dives to export")
	}

	files, err := store.ExportFile(c.Output, c.Format, recs)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println("Exported " + f)
	}
	return nil
}

type StorePathCmd struct{}

func (c *StorePathCmd) Run(globals *CLI) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	dir, err := cfg.ResolveStoreDir()
	if err != nil {
		return err
	}
	fmt.Println(dir)
	return nil
}

// --- Config Commands ---

type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration"`
	Init ConfigInitCmd `cmd:"" help:"Write a config file with the defaults"`
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(globals *CLI) error {
	cfg, err := globals.setup()
	if err != nil {
		return err
	}
	return config.Write(os.Stdout, cfg)
}

type ConfigInitCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run(globals *CLI) error {
	path := globals.ConfigFile
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Println("Wrote " + path)
	return nil
}
