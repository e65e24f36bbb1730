package config

import "flag"

// Flags are the command line overrides of a Config. Only the flags given on
// the command line are applied.
type Flags struct {
	set *flag.FlagSet

	Config     string
	Debug      bool
	LogFile    string
	Assets     string
	Watch      bool
	Async      bool
	Workers    int
	FPS        int
	Frames     int
	Clip       string
	Folder     string
	SmoothSize int
}

// BindFlags registers the overrides on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{set: fs}
	fs.StringVar(&f.Config, "config", "", "path to the config file")
	fs.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "also write logs to this rotating file")
	fs.StringVar(&f.Assets, "assets", "", "assets root directory")
	fs.BoolVar(&f.Watch, "watch", false, "reload assets when they change on disk")
	fs.BoolVar(&f.Async, "async", false, "evaluate the model on the job system")
	fs.IntVar(&f.Workers, "workers", 0, "number of job system workers")
	fs.IntVar(&f.FPS, "fps", 0, "player frame rate")
	fs.IntVar(&f.Frames, "frames", 0, "number of frames to play, 0 plays until interrupted")
	fs.StringVar(&f.Clip, "clip", "", "clip driving the player")
	fs.StringVar(&f.Folder, "out", "", "export folder")
	fs.IntVar(&f.SmoothSize, "smooth", 0, "Savitzky-Golay window applied before export")
	return f
}

func (f *Flags) apply(cfg *Config) {
	f.set.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			if f.Debug {
				cfg.Log.Level = "debug"
			}
		case "log-file":
			cfg.Log.File = f.LogFile
		case "assets":
			cfg.Assets.Root = f.Assets
		case "watch":
			cfg.Assets.Watch = f.Watch
		case "async":
			cfg.Node.Async = f.Async
		case "workers":
			cfg.Jobs.Workers = f.Workers
		case "fps":
			cfg.Play.FPS = f.FPS
		case "frames":
			cfg.Play.Frames = f.Frames
		case "clip":
			cfg.Play.Clip = f.Clip
		case "out":
			cfg.Export.Folder = f.Folder
		case "smooth":
			cfg.Export.SmoothWindow = f.SmoothSize
		}
	})
}
