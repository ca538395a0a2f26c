package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/logging"
)

type Runner struct {
	Version string
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
}

func (r Runner) Run(args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Now == nil {
		r.Now = time.Now
	}

	if len(args) == 0 || isHelp(args[0]) {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return r.runValidate(args[1:])
	case "convert":
		return r.runConvert(args[1:])
	case "sign":
		return r.runSign(args[1:])
	case "hash":
		return r.runHash(args[1:])
	case "verify":
		return r.runVerify(args[1:])
	case "lint":
		return r.runLint(args[1:])
	case "archive":
		return r.runArchive(args[1:])
	case "doctor":
		return r.runDoctor(args[1:])
	case "init":
		return r.runInit(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown command %q\n", codes.Usage, args[0])
		printRootHelp(r.Stderr)
		return 2
	}
}

// commonFlags are accepted by every command that reads configuration.
type commonFlags struct {
	config    *string
	verbosity *int
	logLevel  *string
	jsonOut   *bool
	help      *bool
}

func newBareFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard) // avoid flag package writing to stderr
	return fs
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	fs := newBareFlagSet(name)
	return fs, commonFlags{
		config:    fs.String("config", "", "project config file (default: ./docseal.yaml if present)"),
		verbosity: fs.Int("v", 0, "log verbosity: 0 json, 1 console, 2 debug"),
		logLevel:  fs.String("log-level", "", "log level override: debug|info|warn|error"),
		jsonOut:   fs.Bool("json", false, "print JSON output"),
		help:      fs.Bool("help", false, "show help"),
	}
}

// env is what a command needs after flags are parsed.
type env struct {
	cfg   config.Merged
	log   logr.Logger
	flush func()
}

func (r Runner) setup(command string, cf commonFlags, over config.Overrides) (env, error) {
	if over.LogLevel == "" {
		over.LogLevel = *cf.logLevel
	}
	cfg, err := config.Load(*cf.config, over)
	if err != nil {
		return env{}, codes.Wrap(codes.Config, "load configuration", *cf.config, err)
	}
	log, flush, err := logging.New(logging.Options{
		Verbosity: *cf.verbosity,
		Level:     cfg.LogLevel,
		Command:   command,
		Version:   r.Version,
		Out:       r.Stderr,
	})
	if err != nil {
		return env{}, codes.Wrap(codes.Config, "configure logging", "", err)
	}
	return env{cfg: cfg, log: log, flush: flush}, nil
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "%s: failed to encode json\n", codes.IO)
		return 1
	}
	return 0
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "%s: %s\n", codes.Usage, msg)
	return 2
}

// fail prints err as "CODE: message" and maps it to an exit code. Usage
// errors exit 2, everything else 1.
func (r Runner) fail(err error) int {
	var ce *codes.Error
	if errors.As(err, &ce) {
		fmt.Fprintf(r.Stderr, "%s\n", err.Error())
	} else {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codes.IO, err.Error())
	}
	if codes.CodeOf(err) == codes.Usage {
		return 2
	}
	return 1
}

// colorOn reports whether w is the real stderr of a color-capable terminal.
func colorOn(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && f == os.Stderr && !color.NoColor
}

func (r Runner) status(ok bool, format string, args ...any) {
	c := color.New(color.FgGreen)
	if !ok {
		c = color.New(color.FgRed, color.Bold)
	}
	if colorOn(r.Stderr) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	_, _ = c.Fprintf(r.Stderr, format+"\n", args...)
}

// parseArgs parses flags that appear before, between or after positional
// arguments and returns the positionals in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		// Parse consumes a "--" terminator; everything after it is positional.
		if n := len(args) - len(rest); n > 0 && args[n-1] == "--" {
			return append(pos, rest...), nil
		}
		args = rest
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, strings.TrimLeft(`
docseal: documentation evidence validation and sealing

Usage:
  docseal <command> [flags]

Commands:
  validate   Validate evidence against schemas and write the validation report.
  convert    Render Markdown to PDF (pandoc) and record a BuildResult.
  sign       Create a detached signature (gpg) and record a SignResult.
  hash       Write a .sha256 sidecar and record a HashResult.
  verify     Check sidecar hash and signature and record a VerifyResult.
  lint       Run markdownlint and record a LintResult.
  archive    Bundle aged evidence into a .tar.gz and remove the originals.
  doctor     Check config, directories and collaborator tools.
  init       Write docseal.yaml and the bundled evidence schemas.
  version    Print version.

Run "docseal <command> --help" for command flags.
`, "\n"))
}
