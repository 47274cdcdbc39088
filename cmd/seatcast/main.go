package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/robfig/cron/v3"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	_ "modernc.org/sqlite"

	"github.com/flightyield/seatcast/internal/api"
	"github.com/flightyield/seatcast/internal/batch"
	"github.com/flightyield/seatcast/internal/forecast"
	"github.com/flightyield/seatcast/internal/ingest"
	"github.com/flightyield/seatcast/internal/insight"
	"github.com/flightyield/seatcast/internal/store"
)

type CLI struct {
	DB           string   `env:"SEATCAST_DB" default:"data/seatcast.db" help:"Path to the SQLite database."`
	Listen       string   `env:"SEATCAST_LISTEN" default:"8080" help:"HTTP listen port."`
	Timezone     string   `env:"SEATCAST_TZ" default:"Australia/Melbourne" help:"Timezone for schedules and display."`
	WeekendDays  []string `env:"SEATCAST_WEEKEND_DAYS" default:"Saturday,Sunday" help:"Departure days treated as weekend."`
	Workers      int      `env:"SEATCAST_WORKERS" default:"0" help:"Backtest workers per flight (0 = one per CPU)."`
	AssessWindow int      `env:"SEATCAST_ASSESS_WINDOW" default:"30" help:"Preferred backtest window in days."`
	Cron         string   `env:"SEATCAST_CRON" default:"0 3 * * *" help:"Nightly batch schedule."`
	Model        string   `env:"SEATCAST_NARRATIVE_MODEL" help:"Narrative model name (empty = service default)."`

	Serve ServeCmd `cmd:"" help:"Run the nightly scheduler and the HTTP server."`
	Batch BatchCmd `cmd:"" help:"Run one batch (refresh summaries, forecast every flight) and exit."`
	Load  LoadCmd  `cmd:"" help:"Archive local snapshot CSV drops and refresh curves."`
	Fetch FetchCmd `cmd:"" help:"Fetch new snapshot drops from the FTP endpoint."`
}

// FTPConfig points at the revenue system's drop directory. An empty Addr
// means FTP sync is not configured.
type FTPConfig struct {
	Addr     string `env:"SEATCAST_FTP_ADDR" help:"FTP host:port for snapshot drops."`
	User     string `env:"SEATCAST_FTP_USER" default:"anonymous" help:"FTP username."`
	Password string `env:"SEATCAST_FTP_PASSWORD" help:"FTP password."`
	Dir      string `env:"SEATCAST_FTP_DIR" default:"/" help:"Remote drop directory."`
}

func (f FTPConfig) fetcher() *ingest.DropFetcher {
	if f.Addr == "" {
		return nil
	}
	return ingest.NewDropFetcher(f.Addr, f.User, f.Password, f.Dir)
}

type ServeCmd struct {
	FTP FTPConfig `embed:"" prefix:"ftp-"`
}

type BatchCmd struct {
	FTP FTPConfig `embed:"" prefix:"ftp-"`
}

type LoadCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Snapshot CSV drops (hist_*.csv, fcst_*.csv)."`
}

type FetchCmd struct {
	FTP     FTPConfig `embed:"" prefix:"ftp-"`
	Refresh bool      `default:"true" negatable:"" help:"Refresh curves after fetching."`
}

func (c *CLI) location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("load timezone %s: %v, using UTC", c.Timezone, err)
		return time.UTC
	}
	return loc
}

func (c *CLI) openStore() (*store.Store, func(), error) {
	db, err := sql.Open("sqlite", c.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, c.location())
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

func (c *CLI) newRunner(st *store.Store) (*batch.Runner, error) {
	weekend, err := ingest.ParseWeekendSet(c.WeekendDays)
	if err != nil {
		return nil, err
	}
	engine := forecast.NewEngine(c.AssessWindow, c.Workers)
	return batch.NewRunner(st, engine, weekend), nil
}

// newCompiler builds the narrative compiler, or nil when the generation
// service is not configured. Everything else works without it.
func (c *CLI) newCompiler(st *store.Store) *insight.Compiler {
	gen, err := insight.NewGenerator(c.Model)
	if err != nil {
		log.Printf("narratives disabled: %v", err)
		return nil
	}
	compiler, err := insight.NewCompiler(gen.Generate, st)
	if err != nil {
		log.Printf("narratives disabled: %v", err)
		return nil
	}
	return compiler
}

func (s *ServeCmd) Run(cli *CLI) error {
	if _, err := cron.ParseStandard(cli.Cron); err != nil {
		return fmt.Errorf("parse cron spec %q: %w", cli.Cron, err)
	}

	st, closeDB, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	runner, err := cli.newRunner(st)
	if err != nil {
		return err
	}
	compiler := cli.newCompiler(st)
	if compiler != nil {
		runner.SetCompiler(compiler)
	}
	if f := s.FTP.fetcher(); f != nil {
		runner.SetFetcher(f)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loc := cli.location()
	scheduler := batch.NewScheduler(runner, cli.Cron, loc)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Printf("scheduler: %v", err)
			cancel()
		}
	}()

	server := api.NewServer(st, cli.Listen, loc)
	if compiler != nil {
		server.SetCompiler(compiler)
	}
	return server.Run(ctx)
}

func (b *BatchCmd) Run(cli *CLI) error {
	st, closeDB, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	runner, err := cli.newRunner(st)
	if err != nil {
		return err
	}
	if compiler := cli.newCompiler(st); compiler != nil {
		runner.SetCompiler(compiler)
	}
	if f := b.FTP.fetcher(); f != nil {
		runner.SetFetcher(f)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return runner.RunAll(ctx, "cli")
}

func (l *LoadCmd) Run(cli *CLI) error {
	st, closeDB, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	for _, file := range l.Files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		name := filepath.Base(file)
		stored, err := st.StoreSnapshotFile(name, ingest.DatasetFromFilename(name), data)
		if err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
		if stored {
			log.Printf("load: archived %s (%d bytes)", name, len(data))
		} else {
			log.Printf("load: %s already archived, skipping", name)
		}
	}

	runner, err := cli.newRunner(st)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return runner.Refresh(ctx)
}

func (f *FetchCmd) Run(cli *CLI) error {
	fetcher := f.FTP.fetcher()
	if fetcher == nil {
		return fmt.Errorf("--ftp-addr is required")
	}

	st, closeDB, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stored, err := fetcher.FetchDrops(ctx, st)
	if err != nil {
		return err
	}
	log.Printf("fetch: %d new drops archived", stored)

	if !f.Refresh || stored == 0 {
		return nil
	}
	runner, err := cli.newRunner(st)
	if err != nil {
		return err
	}
	return runner.Refresh(ctx)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("seatcast"),
		kong.Description("Booking-curve forecasting for scheduled flights."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		log.Fatalf("%s: %v", ctx.Command(), err)
	}
}
