package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"avatarpipe/internal/adapters/youtube"
	"avatarpipe/internal/app"
	"avatarpipe/internal/pipeline"
	"avatarpipe/internal/pkg/errors"
)

type runFlags struct {
	audioOnly      bool
	continueAudio  string
	name           string
	background     string
	skipCloud      bool
	email          string
	youtube        bool
	youtubeTitle   string
	youtubePrivacy string
}

func newRootCommand(newRunner runnerFactory) *cobra.Command {
	var configFlag string
	var flags runFlags

	ctx := newCommandContext(&configFlag, newRunner)

	rootCmd := &cobra.Command{
		Use:   "avatarpipe [script]",
		Short: "Turn a script into a narrated avatar video",
		Long: `Phase 1 (--audio-only) synthesizes two narrations of the script for review.
Phase 2 (--continue <audio>) renders the avatar video from the kept narration
and publishes it. Without either flag both phases run, continuing with the
stable take.`,
		Example: `  avatarpipe input/script.txt --audio-only
  avatarpipe --continue output/script_audio_OptionB.mp3 --youtube
  avatarpipe input/script.docx -n weekly_update --skip-cloud`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var script string
			if len(args) == 1 {
				script = args[0]
			}
			return runPipeline(cmd, ctx, flags, script)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	f := rootCmd.Flags()
	f.BoolVar(&flags.audioOnly, "audio-only", false, "Phase 1: generate the audio options only and stop for review")
	f.StringVar(&flags.continueAudio, "continue", "", "Phase 2: continue with the selected audio file")
	f.StringVarP(&flags.name, "name", "n", "", "Output file name (without extension)")
	f.StringVarP(&flags.background, "background", "b", pipeline.DefaultBackground, "Background color (hex, e.g. #ffffff)")
	f.BoolVar(&flags.skipCloud, "skip-cloud", false, "Skip cloud archive, sheet logging and email notification")
	f.StringVar(&flags.email, "email", "", "Notification email address (default from config)")
	f.BoolVar(&flags.youtube, "youtube", false, "Upload the video to YouTube")
	f.StringVar(&flags.youtubeTitle, "youtube-title", "", "Custom YouTube title")
	f.StringVar(&flags.youtubePrivacy, "youtube-privacy", "", "YouTube privacy: private, unlisted or public (default from config)")
	rootCmd.MarkFlagsMutuallyExclusive("audio-only", "continue")

	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, flags runFlags, script string) error {
	if p := strings.ToLower(strings.TrimSpace(flags.youtubePrivacy)); p != "" && !youtube.ValidPrivacy(p) {
		return errors.ValidationField("youtube-privacy", "youtube-privacy must be private, unlisted or public")
	}

	switch {
	case flags.continueAudio != "":
	case script == "" && flags.audioOnly:
		return errors.Validation("script file required for --audio-only mode (usage: avatarpipe input/script.txt --audio-only)")
	case script == "":
		_ = cmd.Help()
		return errors.Validation("script file required")
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg, "avatarpipe")
	p := ctx.newRunner(cfg, log)

	out := newPrinter(cmd.OutOrStdout())
	opts := pipeline.Options{
		OutputName:     flags.name,
		Background:     flags.background,
		SkipCloud:      flags.skipCloud,
		Email:          flags.email,
		UploadYouTube:  flags.youtube,
		YouTubeTitle:   flags.youtubeTitle,
		YouTubePrivacy: strings.ToLower(strings.TrimSpace(flags.youtubePrivacy)),
		OnPhase:        out.phase,
		OnStep:         out.step,
	}
	runCtx := cmd.Context()

	switch {
	case flags.continueAudio != "":
		audio, err := filepath.Abs(flags.continueAudio)
		if err != nil {
			return errors.Wrap(err, "cli.continue", "resolve audio path")
		}
		res, err := p.ContinueWithAudio(runCtx, audio, opts)
		if err != nil {
			return err
		}
		out.videoSummary(res)
		fmt.Fprintf(out.w, "\nSuccess! Video created: %s\n", res.VideoPath)

	case flags.audioOnly:
		path, err := filepath.Abs(script)
		if err != nil {
			return errors.Wrap(err, "cli.audio", "resolve script path")
		}
		res, err := p.GenerateAudio(runCtx, path, opts)
		if err != nil {
			return err
		}
		out.reviewInstructions(res)
		fmt.Fprintln(out.w, "\nAudio files ready for review!")

	default:
		path, err := filepath.Abs(script)
		if err != nil {
			return errors.Wrap(err, "cli.full", "resolve script path")
		}
		opts.OnPhase = out.fullPhase
		res, err := p.RunFull(runCtx, path, opts)
		if err != nil {
			return err
		}
		out.videoSummary(res.Video)
		fmt.Fprintf(out.w, "\nSuccess! Video created: %s\n", res.Video.VideoPath)
	}
	return nil
}
