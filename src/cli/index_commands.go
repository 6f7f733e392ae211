package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/server/session"
	"kcl-navigator/src/server/watcher"
	"kcl-navigator/src/server/wordmap"
	"kcl-navigator/src/server/words"
	"kcl-navigator/src/utils"
	"kcl-navigator/src/utils/configloader"
	"kcl-navigator/src/utils/filepattern"
)

// indexReport is the JSON form of the index command
type indexReport struct {
	Root        string             `json:"root"`
	Files       int                `json:"files"`
	Words       int                `json:"words"`
	Occurrences int                `json:"occurrences"`
	ElapsedMS   int64              `json:"elapsed_ms"`
	Skipped     []string           `json:"skipped,omitempty"`
	Word        string             `json:"word,omitempty"`
	Matches     []wordmap.Location `json:"matches,omitempty"`
}

// lineWords is the JSON form of one line of the words command
type lineWords struct {
	Line  int              `json:"line"`
	Words []words.LineWord `json:"words"`
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// openRootSession opens a session on a workspace root argument. A partial
// build is logged and the session stays usable.
func openRootSession(ctx context.Context, args []string, watch bool) (*session.Session, []string, error) {
	loaded, err := configloader.LoadForRoot(configPath, rootArg(args), verbose)
	if err != nil {
		return nil, nil, err
	}
	loaded.Config.Index.Watch = watch

	s, err := session.New(loaded.Root, loaded.Config)
	if err != nil {
		return nil, nil, err
	}
	var skipped []string
	if err := s.Open(ctx); err != nil {
		scanErr, partial := errors.AsScanError(err)
		if !partial {
			s.Close()
			return nil, nil, fmt.Errorf("failed to index %s: %w", loaded.Root, err)
		}
		for _, ioErr := range scanErr.Skipped() {
			common.IndexLogger.Warn("Skipped %s: %v", ioErr.Path, ioErr.Cause)
			skipped = append(skipped, ioErr.Path)
		}
	}
	return s, skipped, nil
}

func runIndexCmd(cmd *cobra.Command, args []string) error {
	s, skipped, err := openRootSession(cmd.Context(), args, false)
	if err != nil {
		return err
	}
	defer s.Close()

	stats := s.Index().Stats()
	report := indexReport{
		Root:        s.Root(),
		Files:       stats.Files,
		Words:       stats.Words,
		Occurrences: stats.Occurrences,
		ElapsedMS:   stats.LastBuild.Milliseconds(),
		Skipped:     skipped,
		Word:        wordName,
	}
	if wordName != "" {
		locs, _ := s.Index().Get(wordName)
		for _, loc := range locs {
			if filepattern.Match(s.Root(), loc.Path, filterPattern) {
				report.Matches = append(report.Matches, loc)
			}
		}
	}

	out := cmd.OutOrStdout()
	if formatJSON {
		return printJSON(out, report)
	}
	printHeader(out, "Indexed %s", report.Root)
	printLine(out, fmt.Sprintf("Files: %d, distinct words: %d, occurrences: %d (%v)",
		report.Files, report.Words, report.Occurrences, stats.LastBuild.Round(time.Millisecond)))
	if len(skipped) > 0 {
		printMuted(out, "Skipped %d unreadable files", len(skipped))
	}
	if wordName != "" {
		printHeader(out, "Occurrences of %s: %d", wordName, len(report.Matches))
		printOccurrences(out, report.Root, report.Matches)
	}
	return nil
}

func runWordsCmd(cmd *cobra.Command, args []string) error {
	path := utils.NormalizePath(args[0])
	lines, err := words.ReadLines(path)
	if err != nil {
		return err
	}

	var result []lineWords
	for i, line := range lines {
		if lw := words.LineToWords(line); len(lw) > 0 {
			result = append(result, lineWords{Line: i, Words: lw})
		}
	}

	out := cmd.OutOrStdout()
	if formatJSON {
		if result == nil {
			result = []lineWords{}
		}
		return printJSON(out, result)
	}
	for _, lw := range result {
		rangeColor.Fprintf(out, "%d:", lw.Line)
		for _, w := range lw.Words {
			fmt.Fprintf(out, " %s[%d,%d)", w.Word, w.Start, w.End)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, _, err := openRootSession(ctx, args, true)
	if err != nil {
		return err
	}
	defer s.Close()

	w := &syncWriter{w: cmd.OutOrStdout()}
	stats := s.Index().Stats()
	w.printf("Watching %s\nFiles: %d, distinct words: %d\n", s.Root(), stats.Files, stats.Words)
	s.OnApply(func(events []watcher.FileChangeEvent) {
		stats := s.Index().Stats()
		for _, e := range events {
			w.printf("%s %s\n", e.Operation, displayPath(s.Root(), e.Path))
		}
		w.printf("index: %d files, %d distinct words\n", stats.Files, stats.Words)
	})

	<-ctx.Done()
	common.CLILogger.Info("Stopping watcher")
	return nil
}
