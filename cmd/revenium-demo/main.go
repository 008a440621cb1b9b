// Command revenium-demo exercises the metered Google AI and Vertex AI
// clients: a chat completion, a streamed completion, and an embedding, each
// submitting usage to the configured metering backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/revenium/revenium-middleware-google-go/googleai"
	"github.com/revenium/revenium-middleware-google-go/internal/logging"
	"github.com/revenium/revenium-middleware-google-go/metering"
	"github.com/revenium/revenium-middleware-google-go/vertexai"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	flagModel      = "gemini-2.0-flash"
	flagEmbedModel = "text-embedding-004"
	flagVertex     bool
	flagProject    string
	flagLocation   = "us-central1"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "revenium-demo",
		Short:         "Metered Google AI and Vertex AI calls",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", flagModel, "generative model name")
	rootCmd.PersistentFlags().StringVar(&flagEmbedModel, "embed-model", flagEmbedModel, "embedding model name")
	rootCmd.PersistentFlags().BoolVar(&flagVertex, "vertex", false, "use Vertex AI instead of the Google AI API")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "Vertex AI project ID")
	rootCmd.PersistentFlags().StringVar(&flagLocation, "location", flagLocation, "Vertex AI location")

	rootCmd.AddCommand(
		newChatCmd(),
		newStreamCmd(),
		newEmbedCmd(),
		newAllCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "revenium-demo: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired clients for one invocation.
type app struct {
	reporter *metering.Reporter
	google   *googleai.Client
	vertex   *vertexai.Client
}

func setup(ctx context.Context) (*app, error) {
	_ = godotenv.Load()
	logging.InitFromEnv("revenium-demo")

	cfg, err := metering.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	a := &app{reporter: metering.NewReporterFromConfig(cfg)}

	if flagVertex {
		var ts oauth2.TokenSource
		if token := os.Getenv("GOOGLE_ACCESS_TOKEN"); token != "" {
			ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		}
		a.vertex, err = vertexai.NewClient(vertexai.Config{
			ProjectID:   flagProject,
			Location:    flagLocation,
			TokenSource: ts,
		}, a.reporter)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	a.google, err = googleai.NewClient(ctx, a.reporter, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.reporter.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Metering reporter did not drain in time")
	}
	if a.google != nil {
		if err := a.google.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing Google AI client failed")
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func argOr(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Run one metered chat completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return a.chat(ctx, argOr(args, "Say hello in one short sentence."))
		},
	}
}

func newStreamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Run one metered streamed completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return a.stream(ctx, argOr(args, "Count from one to five."))
		},
	}
}

func newEmbedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed [text]",
		Short: "Run one metered embedding",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return a.embed(ctx, argOr(args, "The quick brown fox."))
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all [prompt]",
		Short: "Run chat, stream, and embed concurrently",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			prompt := argOr(args, "Say hello in one short sentence.")
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.chat(gctx, prompt) })
			g.Go(func() error { return a.stream(gctx, prompt) })
			g.Go(func() error { return a.embed(gctx, prompt) })
			return g.Wait()
		},
	}
}

func demoMetadata(task string) metering.Metadata {
	return metering.Metadata{
		metering.MetaTaskType: task,
		metering.MetaAgent:    "revenium-demo",
	}
}

func (a *app) chat(ctx context.Context, prompt string) error {
	if a.vertex != nil {
		resp, err := a.vertex.GenerateContent(ctx, demoMetadata("demo-chat"), flagModel, vertexai.Prompt(prompt))
		if err != nil {
			return err
		}
		fmt.Println(resp.Text())
		return nil
	}
	model := a.google.GenerativeModel(flagModel)
	resp, err := model.GenerateContent(ctx, demoMetadata("demo-chat"), genaiText(prompt))
	if err != nil {
		return err
	}
	printCandidates(resp)
	return nil
}

func (a *app) stream(ctx context.Context, prompt string) error {
	if a.vertex != nil {
		s, err := a.vertex.StreamGenerateContent(ctx, demoMetadata("demo-stream"), flagModel, vertexai.Prompt(prompt))
		if err != nil {
			return err
		}
		defer s.Close()
		for {
			chunk, err := s.Next()
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Print(chunk.Text())
		}
	}

	model := a.google.GenerativeModel(flagModel)
	s := model.GenerateContentStream(ctx, demoMetadata("demo-stream"), genaiText(prompt))
	defer s.Close()
	for {
		chunk, err := s.Next()
		if errors.Is(err, streamDone) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		printCandidates(chunk)
	}
}

func (a *app) embed(ctx context.Context, text string) error {
	if a.vertex != nil {
		embeddings, err := a.vertex.Embeddings(ctx, demoMetadata("demo-embed"), flagEmbedModel, []string{text})
		if err != nil {
			return err
		}
		fmt.Printf("embedded %d input(s), %d dimensions\n", len(embeddings), len(embeddings[0].Values))
		return nil
	}
	model := a.google.EmbeddingModel(flagEmbedModel)
	resp, err := model.EmbedContent(ctx, demoMetadata("demo-embed"), genaiText(text))
	if err != nil {
		return err
	}
	fmt.Printf("embedded 1 input, %d dimensions\n", len(resp.Embedding.Values))
	return nil
}
