package cli

import (
	"fmt"
	"io"

	"github.com/marcohefti/docseal/internal/archive"
	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/config"
)

func (r Runner) runArchive(args []string) int {
	fs, cf := newFlagSet("archive")
	retention := fs.Int("retention-days", 0, "archive evidence older than this many days (default from config, 90)")
	dryRun := fs.Bool("dry-run", false, "list what would be archived without touching files")
	evidenceDir := fs.String("evidence", "", "evidence directory")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return r.failUsage("archive: invalid flags")
	}
	if *cf.help {
		printArchiveHelp(r.Stdout)
		return 0
	}
	if len(pos) > 0 {
		printArchiveHelp(r.Stderr)
		return r.failUsage("archive: unexpected arguments")
	}
	if *retention < 0 {
		return r.failUsage("archive: --retention-days must be positive")
	}
	e, err := r.setup("archive", cf, config.Overrides{EvidenceDir: *evidenceDir})
	if err != nil {
		return r.fail(err)
	}
	defer e.flush()

	days := e.cfg.RetentionDays
	if *retention > 0 {
		days = *retention
	}
	res, err := archive.Run(archive.Opts{
		EvidenceDir:   e.cfg.EvidenceDir,
		ArchiveDir:    e.cfg.ArchiveDir,
		Now:           r.Now(),
		RetentionDays: days,
		DryRun:        *dryRun,
		Log:           e.log,
	})
	if err != nil {
		return r.fail(err)
	}
	if *cf.jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
	} else {
		verb := "archived"
		if res.DryRun {
			verb = "would archive"
		}
		fmt.Fprintf(r.Stdout, "ARCHIVE: %s %d file(s), kept %d\n", verb, len(res.Archived), len(res.Kept))
		if res.Bundle != "" {
			fmt.Fprintf(r.Stdout, "BUNDLE: %s\n", res.Bundle)
		}
	}
	if !res.OK {
		for _, msg := range res.Errors {
			fmt.Fprintf(r.Stderr, "%s: %s\n", codes.IO, msg)
		}
		return 1
	}
	return 0
}

func printArchiveHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  docseal archive [--retention-days N] [--dry-run] [--evidence dir] [--config file] [--json]

Moves evidence older than N days into <archive dir>/evidence_<ts>.tar.gz.
index.jsonl is never archived.
`)
}
