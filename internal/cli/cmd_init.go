package cli

import (
	"fmt"
	"io"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/config"
	"github.com/marcohefti/docseal/internal/registry"
)

type initOutput struct {
	*config.InitResult
	SchemasWritten []string `json:"schemasWritten"`
}

func (r Runner) runInit(args []string) int {
	fs := newBareFlagSet("init")
	configPath := fs.String("config", config.DefaultProjectConfigPath, "config file to create")
	force := fs.Bool("force", false, "overwrite bundled schema files that already exist")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("init: invalid flags")
	}
	if *help {
		printInitHelp(r.Stdout)
		return 0
	}
	if len(pos) > 0 {
		return r.failUsage("init: unexpected arguments")
	}

	res, err := config.InitProject(*configPath)
	if err != nil {
		return r.fail(codes.Wrap(codes.Config, "init project", *configPath, err))
	}
	written, err := registry.WriteDefaults(res.SchemasDir, *force)
	if err != nil {
		return r.fail(err)
	}
	if written == nil {
		written = []string{}
	}
	out := initOutput{InitResult: res, SchemasWritten: written}
	if *jsonOut {
		return r.writeJSON(out)
	}
	state := "kept existing"
	if res.Created {
		state = "created"
	}
	fmt.Fprintf(r.Stdout, "CONFIG: %s (%s)\n", res.ConfigPath, state)
	for _, p := range written {
		fmt.Fprintf(r.Stdout, "SCHEMA: %s\n", p)
	}
	return 0
}

func printInitHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal init [--config docseal.yaml] [--force] [--json]

Writes a default project config plus the bundled BuildResult, SignResult,
HashResult, VerifyResult and LintResult schemas, and creates the schema and
evidence directories.
`)
}
