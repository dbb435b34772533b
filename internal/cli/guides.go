// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/export"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/remote"
	"github.com/manovay/AP-Study-Guide-Generator/internal/util"
)

func newGuidesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "guides",
		Aliases: []string{"guide", "g"},
		Short:   "List, show, rename, delete, search, export and import study guides",
		Long: `Manage saved study guides.

A guide can be referenced by its full id, by its number in "tootur guides
list" (newest first), or by a unique id prefix.`,
	}
	cmd.AddCommand(
		newGuidesListCmd(opts),
		newGuidesShowCmd(opts),
		newGuidesRenameCmd(opts),
		newGuidesDeleteCmd(opts),
		newGuidesSearchCmd(opts),
		newGuidesExportCmd(opts),
		newGuidesImportCmd(opts),
	)
	return cmd
}

// =============================================================================
// LIST / SHOW
// =============================================================================

func newGuidesListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your study guides, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.Registry.List()
			if opts.jsonOut {
				return writeJSON(cmd, "guides list", list)
			}
			printGuideTable(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

// printGuideTable prints summaries as a numbered table sized to the
// terminal.
func printGuideTable(w io.Writer, list []model.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No study guides yet. Try: tootur ask \"<topic>\""))
		return
	}
	titleWidth := max(20, renderWidth()-48)
	fmt.Fprintln(w, LabelStyle.Render(fmt.Sprintf("%4s  %s  %s  %5s  %s",
		"#", util.PadWidth("ID", 24), util.PadWidth("TITLE", titleWidth), "TURNS", "UPDATED")))
	for i, s := range list {
		fmt.Fprintf(w, "%4d  %s  %s  %5d  %s\n",
			i+1,
			util.PadWidth(s.ID, 24),
			util.PadWidth(util.TruncateWidth(util.SingleLine(s.Title), titleWidth), titleWidth),
			s.TurnCount,
			DimStyle.Render(humanTime(s.UpdatedAt)),
		)
	}
}

func humanTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("2006-01-02")
	}
}

// guideView is the --json payload of guides show.
type guideView struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Conversation []remote.TurnRecord `json:"conversation"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func newGuidesShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Print a guide's whole conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := resolveGuide(a, args[0])
			if err != nil {
				return err
			}
			turns := g.Conversation.Turns()
			if opts.jsonOut {
				return writeJSON(cmd, "guides show", guideView{
					ID: g.ID, Title: g.GetTitle(), Conversation: remote.FromTurns(turns),
					CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render(g.GetTitle()))
			fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("%s · %d turns · updated %s", g.ID, len(turns), humanTime(g.UpdatedAt))))
			for i, t := range turns {
				fmt.Fprintln(out, RenderSeparator(renderWidth()))
				printTurn(out, turnLabel(i), t.Prompt, t.Response)
			}
			return nil
		},
	}
}

// =============================================================================
// RENAME / DELETE
// =============================================================================

func newGuidesRenameCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <ref> <new title...>",
		Short: "Rename a guide",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := resolveGuide(a, args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if err := a.Controller.RenameGuide(cmd.Context(), g.ID, title); err != nil {
				return err
			}
			renamed, _ := a.Registry.Get(g.ID)
			if opts.jsonOut {
				return writeJSON(cmd, "guides rename", map[string]string{"id": g.ID, "title": renamed.GetTitle()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Renamed"), renamed.GetTitle())
			return nil
		},
	}
}

func newGuidesDeleteCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <ref>",
		Aliases: []string{"rm"},
		Short:   "Delete a guide",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := resolveGuide(a, args[0])
			if err != nil {
				return err
			}
			if !yes {
				if !IsTTY() || opts.jsonOut {
					return usageErrorf("refusing to delete without confirmation; pass --yes")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Delete %q? (y/N) ", g.GetTitle())
				var answer string
				fmt.Fscanln(cmd.InOrStdin(), &answer)
				if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("Cancelled."))
					return nil
				}
			}
			if err := a.Controller.DeleteGuide(cmd.Context(), g.ID); err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd, "guides delete", map[string]string{"id": g.ID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Deleted"), g.GetTitle())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// =============================================================================
// SEARCH
// =============================================================================

func newGuidesSearchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Find guides whose title or conversation contains the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			recs, err := a.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			list := make([]model.Summary, len(recs))
			for i, rec := range recs {
				list[i] = remote.ToGuide(rec, a.Config.User.Email).Summary()
			}
			if opts.jsonOut {
				return writeJSON(cmd, "guides search", list)
			}
			printGuideTable(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

func newGuidesExportCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		outDir string
		theme  string
		open   bool
		noMeta bool
	)
	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a guide to Markdown, JSON or HTML",
		Example: `  tootur guides export 1
  tootur guides export 1 --format html --theme dark --open
  tootur guides export 1 --format json --out - > guide.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := resolveGuide(a, args[0])
			if err != nil {
				return err
			}
			eopts := export.DefaultOptions()
			eopts.OutputDir = outDir
			eopts.OpenAfterExport = open
			eopts.IncludeMetadata = !noMeta
			eopts.Theme = theme
			exporter, err := export.ForFormat(format, eopts)
			if err != nil {
				return usageErrorf("%v", err)
			}

			if outDir == "-" {
				data, err := exporter.Export(g)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			path, err := export.ExportToFile(g, exporter, eopts)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd, "guides export", map[string]string{"id": g.ID, "path": path, "mime_type": exporter.MimeType()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Exported"), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatMarkdown, "markdown, json or html")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory, or - for stdout")
	cmd.Flags().StringVar(&theme, "theme", "light", "HTML theme: light or dark")
	cmd.Flags().BoolVar(&open, "open", false, "open the file after exporting")
	cmd.Flags().BoolVar(&noMeta, "no-metadata", false, "omit the metadata header")
	return cmd
}

func newGuidesImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json|->",
		Short: "Import a guide previously exported as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return usageErrorf("reading %s: %v", args[0], err)
			}
			var rec remote.GuideRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return usageErrorf("%s is not a guide export: %v", args[0], err)
			}
			rec = remote.UpgradeLegacy(rec)
			if len(rec.Conversation) == 0 {
				return usageErrorf("%s has no conversation to import", args[0])
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := importGuide(cmd, a, rec)
			if err != nil {
				return err
			}
			if err := a.Controller.Refresh(cmd.Context()); err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd, "guides import", map[string]any{"id": id, "title": rec.Title, "turns": len(rec.Conversation)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d turns)\n", SuccessStyle.Render("Imported"), id, len(rec.Conversation))
			return nil
		},
	}
}

// importGuide saves rec under a new id owned by the configured user.
func importGuide(cmd *cobra.Command, a *app.App, rec remote.GuideRecord) (string, error) {
	ctx := cmd.Context()
	owner := a.Config.User.Email
	title := rec.Title
	if strings.TrimSpace(title) == "" {
		title = model.DefaultTitle(rec.Conversation[0].UserPrompt)
	}
	if a.Local != nil {
		saved, err := a.Local.SaveGuide(ctx, owner, title, "", rec.Conversation)
		if err != nil {
			return "", err
		}
		return saved.ID, nil
	}
	client, ok := a.Remote.(*remote.Client)
	if !ok {
		return "", fmt.Errorf("import is not supported by this store")
	}
	return client.SaveGuide(ctx, owner, title, rec.Conversation)
}
