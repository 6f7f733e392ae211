package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"kcl-navigator/src/internal/common"
	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/server/session"
	"kcl-navigator/src/utils"
	"kcl-navigator/src/utils/configloader"
	"kcl-navigator/src/utils/filepattern"
	"kcl-navigator/src/utils/lspconv"
)

// parsePosition reads the <file> <line> <col> arguments
func parsePosition(args []string) (string, protocol.Position, error) {
	line, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("invalid line %q: must be a non-negative integer", args[1])
	}
	col, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return "", protocol.Position{}, fmt.Errorf("invalid column %q: must be a non-negative integer", args[2])
	}
	return utils.NormalizePath(args[0]), protocol.Position{Line: uint32(line), Character: uint32(col)}, nil
}

// newFileSession creates a session for the workspace containing path
func newFileSession(path string) (*session.Session, error) {
	loaded, err := configloader.LoadForFile(configPath, path, verbose)
	if err != nil {
		return nil, err
	}
	if strict {
		loaded.Config.Errors.Strict = true
	}
	return session.New(loaded.Root, loaded.Config)
}

func runDefinitionCmd(cmd *cobra.Command, args []string) error {
	path, pos, err := parsePosition(args)
	if err != nil {
		return err
	}
	s, err := newFileSession(path)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	loc, err := s.GoToDefinition(cmd.Context(), path, pos)
	if errors.IsNotFound(err) {
		common.CLILogger.Debug("No definition: %v", err)
		if formatJSON {
			return printJSON(out, nil)
		}
		printMuted(out, "No definition found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("definition failed: %w", err)
	}

	if formatJSON {
		return printJSON(out, loc)
	}
	printLocation(out, s.Root(), lspconv.LocationPath(*loc), loc.Range)
	return nil
}

func runReferencesCmd(cmd *cobra.Command, args []string) error {
	path, pos, err := parsePosition(args)
	if err != nil {
		return err
	}
	s, err := newFileSession(path)
	if err != nil {
		return err
	}
	defer s.Close()

	find := s.FindReferences
	if useIndex {
		find = s.FindReferencesIndexed
	}
	refs, err := find(cmd.Context(), path, pos)
	switch {
	case errors.IsNotFound(err):
		common.CLILogger.Debug("No references: %v", err)
		refs, err = nil, nil
	case err != nil:
		scanErr, partial := errors.AsScanError(err)
		if !partial || s.Config().Errors.Strict {
			return fmt.Errorf("references failed: %w", err)
		}
		common.CLILogger.Warn("Skipped %d unreadable files: %v", scanErr.Len(), err)
	}

	if filterPattern != "" {
		kept := refs[:0]
		for _, ref := range refs {
			if filepattern.Match(s.Root(), lspconv.LocationPath(ref), filterPattern) {
				kept = append(kept, ref)
			}
		}
		refs = kept
	}

	out := cmd.OutOrStdout()
	if formatJSON {
		if refs == nil {
			refs = []protocol.Location{}
		}
		return printJSON(out, refs)
	}
	if len(refs) == 0 {
		printMuted(out, "No references found")
		return nil
	}
	printLocations(out, s.Root(), refs)
	return nil
}
