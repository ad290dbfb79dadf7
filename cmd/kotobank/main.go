// Command kotobank builds language-learning articles into a static site:
// custom tags in markdown become flashcards, phrase cards and narrated audio
// backed by a persistent wordbank.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kotobank/pkg/assets"
	"kotobank/pkg/config"
	"kotobank/pkg/fingerprint"
	"kotobank/pkg/furigana"
	"kotobank/pkg/genai"
	"kotobank/pkg/llmcache"
	"kotobank/pkg/propagate"
	"kotobank/pkg/render"
	"kotobank/pkg/site"
	"kotobank/pkg/wordbank"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "kotobank",
		Short:         "Static site generator for language-learning content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildCmd(logger), cacheCmd(logger), fingerprintCmd(logger))

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func buildCmd(logger zerolog.Logger) *cobra.Command {
	var (
		contentDir string
		outDir     string
		dataPath   string
		imageDir   string
		audioDir   string
		imageURL   string
		audioURL   string
		dev        bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build all markdown articles into the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()

			store := wordbank.NewStore(dataPath, logger)
			kana, err := furigana.New()
			if err != nil {
				return fmt.Errorf("tokenizer init: %w", err)
			}

			mat := &assets.Materializer{
				ImageDir: imageDir,
				AudioDir: audioDir,
				Logger:   logger,
			}

			var gen genai.StructuredGenerator
			if !dev {
				cache := llmcache.New(ctx, cfg.Cache, logger)
				if closer, ok := cache.(io.Closer); ok {
					defer closer.Close()
				}
				client, err := genai.NewOpenAI(genai.ModelSettings{
					APIKey:      cfg.OpenAIKey,
					BaseURL:     cfg.OpenAIBaseURL,
					ChatModel:   cfg.ChatModel,
					ImageModel:  cfg.ImageModel,
					SpeechModel: cfg.SpeechModel,
				}, cache, logger)
				if err != nil {
					return err
				}
				gen = client
				mat.Images = client
				mat.Speech = client
			}

			prop := propagate.New(store, gen, mat, logger)
			prop.BatchSize = cfg.BatchSize

			renderer := &render.Renderer{
				ImageDir: imageDir,
				AudioDir: audioDir,
				ImageURL: imageURL,
				AudioURL: audioURL,
				Kana:     kana,
				Logger:   logger,
			}

			builder := site.NewBuilder(prop, renderer, mat, kana, cfg.DefaultVoice, dev, logger)
			if err := builder.BuildDir(ctx, contentDir, outDir); err != nil {
				return err
			}
			words, _ := store.Len()
			logger.Info().Str("out", outDir).Int("words", words).Msg("build complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&contentDir, "content", "content", "directory of markdown articles")
	cmd.Flags().StringVar(&outDir, "out", "public", "output directory for built HTML")
	cmd.Flags().StringVar(&dataPath, "data", "data/wordbank.jsonl", "wordbank store path")
	cmd.Flags().StringVar(&imageDir, "images", "public/images", "directory for generated images")
	cmd.Flags().StringVar(&audioDir, "audio", "public/audio", "directory for generated audio")
	cmd.Flags().StringVar(&imageURL, "image-url", "/images", "public URL prefix for images")
	cmd.Flags().StringVar(&audioURL, "audio-url", "/audio", "public URL prefix for audio")
	cmd.Flags().BoolVar(&dev, "dev", false, "build from cached records and assets only, no generation")
	return cmd
}

func cacheCmd(logger zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the LLM response cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show cache backend and entry count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := llmcache.New(cmd.Context(), config.Load().Cache, logger)
			if closer, ok := cache.(io.Closer); ok {
				defer closer.Close()
			}
			s := cache.Stats(cmd.Context())
			fmt.Printf("enabled:   %v\nconnected: %v\nbackend:   %s\nentries:   %d\nprefix:    %s\n",
				s.Enabled, s.Connected, s.Backend, s.Entries, s.Prefix)
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached LLM responses under the configured prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := llmcache.New(cmd.Context(), config.Load().Cache, logger)
			if closer, ok := cache.(io.Closer); ok {
				defer closer.Close()
			}
			n, err := cache.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("cleared %d entries\n", n)
			return nil
		},
	}

	cmd.AddCommand(stats, clear)
	return cmd
}

func fingerprintCmd(logger zerolog.Logger) *cobra.Command {
	var rewriteDir string

	cmd := &cobra.Command{
		Use:   "fingerprint <dir>",
		Short: "Content-hash asset filenames and rewrite HTML references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := fingerprint.Rename(args[0], logger)
			if err != nil {
				return err
			}
			target := rewriteDir
			if target == "" {
				target = args[0]
			}
			if err := fingerprint.Rewrite(target, mapping); err != nil {
				return err
			}
			logger.Info().Int("renamed", len(mapping)).Msg("fingerprint complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&rewriteDir, "rewrite", "", "directory of HTML to rewrite (defaults to <dir>)")
	return cmd
}
