package main

import (
	"github.com/spf13/cobra"

	"ClaimScanner/internal/domain"
)

type inputFlags struct {
	text                 string
	url                  string
	image                string
	caption              string
	disambiguationFailed bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.text, "text", "", "claim text")
	cmd.Flags().StringVar(&f.url, "url", "", "product page URL")
	cmd.Flags().StringVar(&f.image, "image", "", "image URL")
	cmd.Flags().StringVar(&f.caption, "caption", "", "caption accompanying an image")
	cmd.Flags().BoolVar(&f.disambiguationFailed, "disambiguation-failed", false, "a clarification round did not help")
	cmd.MarkFlagsMutuallyExclusive("text", "url", "image")
	cmd.MarkFlagsOneRequired("text", "url", "image")
}

func (f *inputFlags) input() domain.Input {
	in := domain.Input{Caption: f.caption, DisambiguationFailed: f.disambiguationFailed}
	switch {
	case f.url != "":
		in.Kind, in.URL = domain.InputURL, f.url
	case f.image != "":
		in.Kind, in.URL = domain.InputImage, f.image
	default:
		in.Kind, in.Text = domain.InputText, f.text
	}
	return in
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		flags        inputFlags
		forceRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue an input for scoring and print the job record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			application, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.OpenStore(ctx, true); err != nil {
				return err
			}
			sub, err := application.Jobs().Submit(ctx, flags.input(), forceRefresh)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&forceRefresh, "force", false, "supersede an existing job for the same input")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Print the status of a job, with its result once done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.OpenStore(ctx, false); err != nil {
				return err
			}
			view, err := application.Jobs().Status(ctx, args[0], token)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "job token returned on submission")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var flags inputFlags

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one input synchronously without the job queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := opts.application(cmd)
			if err != nil {
				return err
			}

			res, err := application.Pipeline().Analyze(cmd.Context(), flags.input())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	flags.register(cmd)
	return cmd
}
