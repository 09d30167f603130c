// Command skein checks and inspects serialized skein streams.
//
// Usage:
//
//	skein [flags] validate FILE...
//	skein [flags] inspect FILE
//
// FILE may be "-" to read standard input.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/zoobzio/skein"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
	opts   []skein.Option
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("skein", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", "", "TOML or YAML options file")
	verbose := fs.BoolP("verbose", "v", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: skein [flags] validate FILE... | inspect FILE")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, logger: zap.NewNop()}
	if *verbose {
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(stderr),
			zap.DebugLevel,
		)
		a.logger = zap.New(core)
		defer func() { _ = a.logger.Sync() }()
	}

	cfg := skein.DefaultConfig()
	if *configPath != "" {
		loaded, err := skein.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "skein: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	opts, err := cfg.Options(a.logger)
	if err != nil {
		fmt.Fprintf(stderr, "skein: %v\n", err)
		return 1
	}
	a.opts = opts

	switch cmd, files := fs.Arg(0), fs.Args()[1:]; cmd {
	case "validate":
		return a.validate(files)
	case "inspect":
		if len(files) != 1 {
			fs.Usage()
			return 2
		}
		if err := a.inspect(files[0]); err != nil {
			fmt.Fprintf(stderr, "skein: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "skein: unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
}

// validate reports each file and fails if any is malformed.
func (a *app) validate(files []string) int {
	status := 0
	for _, name := range files {
		data, err := a.read(name)
		if err != nil {
			fmt.Fprintf(a.stderr, "skein: %v\n", err)
			status = 1
			continue
		}
		if skein.Validate(data, a.opts...) {
			fmt.Fprintf(a.stdout, "%s: ok\n", name)
			continue
		}
		status = 1
		// Inspect reports the reason Validate withholds.
		_, ierr := skein.Inspect(data, a.opts...)
		fmt.Fprintf(a.stdout, "%s: invalid: %v\n", name, ierr)
		a.logger.Debug("stream rejected", zap.String("file", name), zap.Error(ierr))
	}
	return status
}

func (a *app) inspect(name string) error {
	data, err := a.read(name)
	if err != nil {
		return err
	}
	doc, err := skein.Inspect(data, a.opts...)
	if err != nil {
		return errors.Wrapf(err, "inspect %s", name)
	}
	a.logger.Debug("stream inspected",
		zap.String("file", name),
		zap.Int("size", doc.Size),
		zap.Int("frames", doc.Frames),
	)
	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode document")
	}
	return enc.Close()
}

func (a *app) read(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(a.stdin)
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(name)
	return data, errors.Wrapf(err, "read %s", name)
}
