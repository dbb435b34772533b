// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
)

// askResult is the --json payload of ask.
type askResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Turns    int    `json:"turns"`
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	var (
		guideRef  string
		noAnimate bool
	)
	cmd := &cobra.Command{
		Use:   "ask [flags] <topic or question...>",
		Short: "Generate a study guide, or ask a follow-up with --guide",
		Example: `  tootur ask "The causes of World War I"
  tootur ask --guide 1 "Explain the alliance system in more detail"
  echo "Photosynthesis" | tootur ask -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "-" {
				in, err := readAll(cmd.InOrStdin())
				if err != nil {
					return usageErrorf("reading prompt: %v", err)
				}
				prompt = in
			}
			if strings.TrimSpace(prompt) == "" {
				return usageErrorf("prompt is empty")
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := ask(cmd, a, guideRef, prompt)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd, "ask", res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render(res.Title))
			if !noAnimate && a.Config.Reveal.Enabled && CanAnimate() {
				copts := app.ControllerOptions(a.Config)
				if err := typeOut(cmd.Context(), out, res.Response, copts.Reveal, copts.RevealInterval); err != nil {
					return err
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, strings.TrimRight(renderMarkdown(res.Response), "\n"))
			}
			fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("guide %s · %d turns", res.ID, res.Turns)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&guideRef, "guide", "g", "", "add a follow-up to this guide (id, list number or id prefix)")
	cmd.Flags().BoolVar(&noAnimate, "no-animate", false, "print the response at once")
	return cmd
}

// ask creates a guide or appends a follow-up and returns the result.
func ask(cmd *cobra.Command, a *app.App, guideRef, prompt string) (askResult, error) {
	ctx := cmd.Context()
	if guideRef == "" {
		g, err := a.Controller.SubmitTopic(ctx, prompt)
		if err != nil {
			return askResult{}, err
		}
		last, _ := g.Conversation.Last()
		return askResult{
			ID: g.ID, Title: g.GetTitle(), Prompt: last.Prompt, Response: last.Response,
			Turns: g.Conversation.Len(),
		}, nil
	}

	g, err := resolveGuide(a, guideRef)
	if err != nil {
		return askResult{}, err
	}
	response, err := a.Controller.AppendTurn(ctx, g.ID, prompt)
	if err != nil {
		return askResult{}, err
	}
	return askResult{
		ID: g.ID, Title: g.GetTitle(), Prompt: strings.TrimSpace(prompt), Response: response,
		Turns: g.Conversation.Len() + 1,
	}, nil
}
