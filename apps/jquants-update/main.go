// Copyright 2026 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/jquants/db"
	"github.com/stockparfait/jquants/jq"
	"github.com/stockparfait/jquants/notify"
	"github.com/stockparfait/jquants/tsdb"
	"github.com/stockparfait/jquants/update"
	"github.com/stockparfait/logging"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	ConfigPath string // default: ~/.stockparfait/jquants/config.toml
	LogLevel   logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("jquants-update", flag.ExitOnError)
	fs.StringVar(&flags.ConfigPath, "conf",
		filepath.Join(os.Getenv("HOME"), ".stockparfait", "jquants", "config.toml"),
		"configuration file path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	return &flags, err
}

type StoreConfig struct {
	Backend string `toml:"backend"` // "local" (default) or "s3"
	Dir     string `toml:"dir"`     // local: data directory
	Bucket  string `toml:"bucket"`  // s3: bucket name
	Prefix  string `toml:"prefix"`  // s3: key prefix
	Region  string `toml:"region"`  // s3: optional region override
}

type NotifyConfig struct {
	DiscordWebhook string `toml:"discord_webhook"`
	LineToken      string `toml:"line_token"`
}

type Config struct {
	MailAddress  string       `toml:"mailaddress"`
	Password     string       `toml:"password"`
	Plan         string       `toml:"plan"`          // light (default), standard or premium
	Symbol       string       `toml:"symbol"`        // symbol tag of stored rows
	InitialStart string       `toml:"initial_start"` // first date when a table is empty
	CutoffHour   *int         `toml:"cutoff_hour"`   // hour before which today is excluded; 0 for midnight
	Location     string       `toml:"location"`      // IANA name; default Asia/Tokyo
	Tables       []string     `toml:"tables"`        // default: list, price, topix
	DryRun       bool         `toml:"dry_run"`       // fetch and merge, but do not upload
	Store        StoreConfig  `toml:"store"`
	Notify       NotifyConfig `toml:"notify"`
}

func parseConfig(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			sample := `mailaddress = "you@example.com"
password = "YourJQuantsPassword"
plan = "light"
tables = ["list", "price", "topix"]

[store]
backend = "local"
dir = "/var/lib/jquants"
`
			err = errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, sample)
			return nil, err
		} else {
			return nil, errors.Annotate(err,
				"cannot check config file for existence: '%s'", filePath)
		}
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	if c.MailAddress == "" || c.Password == "" {
		return nil, errors.Reason("config %s must set mailaddress and password", filePath)
	}
	return &c, nil
}

func newStore(ctx context.Context, c StoreConfig) (tsdb.Store, error) {
	switch c.Backend {
	case "", "local":
		dir := c.Dir
		if dir == "" {
			dir = filepath.Join(os.Getenv("HOME"), ".stockparfait", "jquants", "data")
		}
		return tsdb.NewLocalStore(dir), nil
	case "s3":
		if c.Bucket == "" {
			return nil, errors.Reason("s3 store requires a bucket")
		}
		opts := []func(*awsconfig.LoadOptions) error{}
		if c.Region != "" {
			opts = append(opts, awsconfig.WithRegion(c.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, errors.Annotate(err, "failed to load AWS config")
		}
		return tsdb.NewS3Store(s3.NewFromConfig(cfg), c.Bucket, c.Prefix), nil
	}
	return nil, errors.Reason("unknown store backend '%s'; expected local or s3", c.Backend)
}

func newNotifier(c NotifyConfig) notify.Notifier {
	if c.DiscordWebhook == "" {
		return notify.Log{}
	}
	return &notify.Discord{WebhookURL: c.DiscordWebhook, LineToken: c.LineToken}
}

func run(ctx context.Context, flags *Flags) error {
	config, err := parseConfig(flags.ConfigPath)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	plan, err := jq.PlanFromString(config.Plan)
	if config.Plan != "" && err != nil {
		return err
	}
	var initialStart db.Date
	if config.InitialStart != "" {
		if initialStart, err = db.NewDateFromString(config.InitialStart); err != nil {
			return errors.Annotate(err, "invalid initial_start")
		}
	}
	tables := update.DefaultTables()
	if len(config.Tables) > 0 {
		tables = nil
		for _, name := range config.Tables {
			t, err := update.TableByName(name)
			if err != nil {
				return err
			}
			tables = append(tables, t)
		}
	}
	store, err := newStore(ctx, config.Store)
	if err != nil {
		return errors.Annotate(err, "failed to create store")
	}
	if config.DryRun {
		logging.Warningf(ctx, "dry run: no data will be uploaded")
		store = tsdb.ReadOnly(store)
	}
	var location *time.Location
	if config.Location != "" {
		if location, err = time.LoadLocation(config.Location); err != nil {
			return errors.Annotate(err, "invalid location '%s'", config.Location)
		}
	}

	p := &update.Pipeline{
		Store:        store,
		Notifier:     newNotifier(config.Notify),
		Symbol:       config.Symbol,
		InitialStart: initialStart,
		CutoffHour:   config.CutoffHour,
		Location:     location,
	}
	creds := jq.Credentials{MailAddress: config.MailAddress, Password: config.Password}
	ctx = jq.UseClient(ctx, creds, plan)

	f := func(t update.Table) error { return p.Run(ctx, t) }
	pm := iterator.ParallelMap(ctx, len(tables), iterator.FromSlice(tables), f)
	defer iterator.Flush(pm)

	errs := []error{}
	for err, ok := pm.Next(); ok; err, ok = pm.Next() {
		if err != nil {
			logging.Errorf(ctx, err.Error())
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Reason("%d out of %d tables failed to update", len(errs), len(tables))
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
