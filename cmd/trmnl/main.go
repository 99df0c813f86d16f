package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/bodgit/trmnl"
	"github.com/bodgit/trmnl/bitmap"
	"github.com/bodgit/trmnl/config"
	"github.com/bodgit/trmnl/crypt"
	"github.com/bodgit/trmnl/secret"
	"github.com/urfave/cli/v2"
)

const defaultDB = "trmnl.db"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

var keyFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "key",
		Aliases: []string{"k"},
		EnvVars: []string{"TRMNL_KEY"},
		Usage:   "encryption key as 64 hex characters",
	},
	&cli.StringFlag{
		Name:    "key-file",
		EnvVars: []string{"TRMNL_KEY_FILE"},
		Usage:   "read the hex encoded key from `FILE`, \"-\" for stdin",
	},
}

var dbFlag = &cli.StringFlag{
	Name:    "db",
	EnvVars: []string{"TRMNL_DB"},
	Usage:   "path to screen catalog",
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if !c.IsSet("config") {
		return new(config.Config), nil
	}
	return config.Load(c.String("config"))
}

func loadKey(c *cli.Context, cfg *config.Config) (*secret.Buffer, error) {
	keyFile := c.String("key-file")
	if keyFile == "" {
		keyFile = cfg.KeyFile
	}
	return trmnl.LoadKey(c.String("key"), keyFile)
}

func openDB(c *cli.Context, cfg *config.Config) (*trmnl.ScreenDB, error) {
	file := c.String("db")
	if file == "" {
		file = cfg.DB
	}
	if file == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(cwd, defaultDB)
	}
	return trmnl.NewScreenDB(file)
}

// arg returns the nth argument, falling back to def when it's missing.
func arg(c *cli.Context, n int, def string) string {
	if c.NArg() > n {
		return c.Args().Get(n)
	}
	return def
}

func requireArgs(c *cli.Context, args ...string) {
	for _, a := range args {
		if a == "" {
			cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
		}
	}
}

// withKey runs fn with the key, zeroing it afterwards.
func withKey(c *cli.Context, cfg *config.Config, fn func([]byte) error) error {
	key, err := loadKey(c, cfg)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer key.Close()

	if err := fn(key.Bytes()); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func check(c *cli.Context) error {
	requireArgs(c, arg(c, 0, ""))

	m := trmnl.New(nil, newLogger(c))

	p, err := m.Validate(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("%s: OK (%s)\n", c.Args().First(), p)

	return nil
}

func cryptAction(decrypt bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		input, output := arg(c, 0, ""), arg(c, 1, "")
		requireArgs(c, input, output)

		cfg, err := loadConfig(c)
		if err != nil {
			return cli.Exit(err, 1)
		}

		m := trmnl.New(nil, newLogger(c))

		return withKey(c, cfg, func(key []byte) error {
			if decrypt {
				return m.Decrypt(key, input, output)
			}
			return m.Encrypt(key, input, output)
		})
	}
}

func buildManifest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	dir, output := arg(c, 0, cfg.Images), arg(c, 1, cfg.Manifest)
	requireArgs(c, dir, output)

	refreshRate := c.Int("refresh-rate")
	if !c.IsSet("refresh-rate") && cfg.RefreshRate != 0 {
		refreshRate = cfg.RefreshRate
	}

	m := trmnl.New(nil, newLogger(c))

	return withKey(c, cfg, func(key []byte) error {
		return m.BuildManifest(key, dir, output, refreshRate, c.Bool("debug"))
	})
}

func inspect(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	file := arg(c, 0, cfg.Manifest)
	requireArgs(c, file)

	m := trmnl.New(nil, newLogger(c))

	return withKey(c, cfg, func(key []byte) error {
		manifest, err := m.Inspect(key, file)
		if err != nil {
			return err
		}

		fmt.Printf("Version:      %d\n", manifest.Version)
		fmt.Printf("Refresh rate: %ds\n", manifest.RefreshRate)
		fmt.Printf("Updated at:   %s\n", manifest.UpdatedAt)

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFILENAME\tSIZE")
		for _, s := range manifest.Screens {
			fmt.Fprintf(w, "%s\t%s\t%d\n", s.Name, s.Filename, s.Size)
		}
		return w.Flush()
	})
}

func keygen(c *cli.Context) error {
	key, err := crypt.GenerateKey()
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer secret.Zero(key)

	fmt.Println(crypt.FormatKey(key))
	if c.Bool("header") {
		fmt.Println(crypt.CHeader(key))
	}

	return nil
}

func pattern(c *cli.Context) error {
	output := arg(c, 0, "")
	requireArgs(c, output)

	m := trmnl.New(nil, newLogger(c))

	if err := m.WritePattern(output); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func convert(c *cli.Context) error {
	input, output := arg(c, 0, ""), arg(c, 1, "")
	requireArgs(c, input, output)

	p := bitmap.Standard
	if c.Bool("reversed") {
		p = bitmap.Reversed
	}

	m := trmnl.New(nil, newLogger(c))

	if err := m.Convert(input, output, p); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func publish(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	source, dir := arg(c, 0, ""), arg(c, 1, cfg.Images)
	requireArgs(c, source, dir)

	info, err := os.Stat(source)
	if err != nil {
		return cli.Exit(err, 1)
	}

	db, err := openDB(c, cfg)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer db.Close()

	m := trmnl.New(db, newLogger(c))

	return withKey(c, cfg, func(key []byte) error {
		if info.IsDir() {
			return m.PublishAll(key, source, dir)
		}
		return m.Publish(key, source, dir)
	})
}

func shortDigest(d string) string {
	if len(d) > 16 {
		return d[:16]
	}
	return d
}

func list(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 1)
	}

	db, err := openDB(c, cfg)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer db.Close()

	records, err := db.Screens()
	if err != nil {
		return cli.Exit(err, 1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPOLARITY\tSIZE\tENCRYPTED\tPUBLISHED\tDIGEST")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", r.Name, r.Polarity, r.Size, r.EncryptedSize, r.PublishedAt.UTC().Format("2006-01-02 15:04:05"), shortDigest(r.Digest))
	}

	if err := w.Flush(); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "trmnl"
	app.Usage = "TRMNL e-ink display content utility"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"TRMNL_CONFIG"},
			Usage:   "load defaults from YAML `FILE`",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "check",
			Usage:     "Check a bitmap can be rendered by the display",
			ArgsUsage: "FILE",
			Action:    check,
		},
		{
			Name:      "encrypt",
			Usage:     "Encrypt a file",
			ArgsUsage: "INPUT OUTPUT",
			Flags:     keyFlags,
			Action:    cryptAction(false),
		},
		{
			Name:      "decrypt",
			Usage:     "Decrypt a file",
			ArgsUsage: "INPUT OUTPUT",
			Flags:     keyFlags,
			Action:    cryptAction(true),
		},
		{
			Name:        "manifest",
			Usage:       "Build the encrypted manifest of screens",
			Description: "Every file ending in .enc in DIRECTORY is listed in the manifest, sorted by filename.",
			ArgsUsage:   "DIRECTORY OUTPUT",
			Flags: append([]cli.Flag{
				&cli.IntFlag{
					Name:    "refresh-rate",
					Aliases: []string{"r"},
					Value:   1800,
					Usage:   "display refresh rate in seconds",
				},
				&cli.BoolFlag{
					Name:  "debug",
					Usage: "also write the plaintext manifest",
				},
			}, keyFlags...),
			Action: buildManifest,
		},
		{
			Name:      "inspect",
			Usage:     "Decrypt and print a manifest",
			ArgsUsage: "FILE",
			Flags:     keyFlags,
			Action:    inspect,
		},
		{
			Name:  "keygen",
			Usage: "Generate a new encryption key",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "header",
					Usage: "also print the key as a C array",
				},
			},
			Action: keygen,
		},
		{
			Name:      "pattern",
			Usage:     "Write a checkerboard test bitmap",
			ArgsUsage: "OUTPUT",
			Action:    pattern,
		},
		{
			Name:      "convert",
			Usage:     "Convert a GIF, JPEG or PNG image to a display bitmap",
			ArgsUsage: "INPUT OUTPUT",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "reversed",
					Usage: "write the reversed color table",
				},
			},
			Action: convert,
		},
		{
			Name:        "publish",
			Usage:       "Validate, encrypt and catalog bitmaps",
			Description: "SOURCE may be a single bitmap or a directory of bitmaps. Bitmaps unchanged since they were last published are skipped.",
			ArgsUsage:   "SOURCE DIRECTORY",
			Flags:       append([]cli.Flag{dbFlag}, keyFlags...),
			Action:      publish,
		},
		{
			Name:   "list",
			Usage:  "List published screens",
			Flags:  []cli.Flag{dbFlag},
			Action: list,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
