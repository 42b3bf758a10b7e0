package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transcribe-cli/internal/cache"
	"github.com/sells-group/transcribe-cli/internal/cost"
	"github.com/sells-group/transcribe-cli/internal/engine"
	"github.com/sells-group/transcribe-cli/internal/model"
	"github.com/sells-group/transcribe-cli/internal/profile"
	"github.com/sells-group/transcribe-cli/internal/verify"
	anthropicpkg "github.com/sells-group/transcribe-cli/pkg/anthropic"
)

var (
	transcribeTier   string
	transcribeOut    string
	transcribeEvents bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <pdf | images...>",
	Short: "Transcribe a scanned document into Markdown",
	Long: "Accepts either one PDF, an ordered list of page images, or a directory " +
		"of page images (ordered by filename). Output streams to stdout or --out.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tier, err := profile.ParseTier(transcribeTier)
		if err != nil {
			return err
		}

		store, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			return eris.Wrap(err, "init cache")
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate cache")
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerSec)
		table := profile.NewTable(cfg.Profiles, cfg.Anthropic)
		verifier := verify.New(client, table.ModelID(model.TierFast), cfg.Verify)
		est := cost.NewEstimator(nil)

		eng := engine.New(table, client, store, verifier, est, cfg.Engine, cfg.Anthropic.MaxTokens)

		opts := engine.Options{
			TierOverride: tier,
			Observer:     observer(),
		}

		stream, err := analyze(ctx, eng, args, opts)
		if err != nil {
			return err
		}

		out, closeOut, err := openOutput(transcribeOut)
		if err != nil {
			return err
		}
		defer closeOut()

		for stream.Next() {
			if _, err := io.WriteString(out, stream.Chunk()); err != nil {
				return eris.Wrap(err, "write output")
			}
		}
		return stream.Err()
	},
}

// analyze dispatches on input shape: exactly one .pdf argument runs document
// mode, anything else is treated as an ordered page image sequence.
func analyze(ctx context.Context, eng *engine.Engine, args []string, opts engine.Options) (*engine.Stream, error) {
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".pdf") {
		doc, err := loadDocument(args[0])
		if err != nil {
			return nil, err
		}
		return eng.AnalyzeDocument(ctx, doc, opts)
	}

	images, err := loadImages(args)
	if err != nil {
		return nil, err
	}
	return eng.AnalyzeImages(ctx, images, opts)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

// observer returns an Observer that logs lifecycle events and, with
// --events, additionally emits them as JSON lines on stderr.
func observer() model.Observer {
	enc := json.NewEncoder(os.Stderr)
	return func(ev model.AnalysisEvent) {
		fields := []zap.Field{
			zap.String("event", string(ev.Type)),
			zap.String("profile", string(ev.Profile)),
		}
		if ev.QualityScore != nil {
			fields = append(fields, zap.Float64("quality_score", *ev.QualityScore))
		}
		if ev.VerificationScore != nil {
			fields = append(fields, zap.Float64("verification_score", *ev.VerificationScore))
		}
		if len(ev.Reasons) > 0 {
			fields = append(fields, zap.Strings("reasons", ev.Reasons))
		}
		zap.L().Info(ev.Message, fields...)

		if transcribeEvents {
			_ = enc.Encode(ev)
		}
	}
}

var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// loadDocument reads and encodes a single PDF.
func loadDocument(path string) (model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "read %s", path)
	}
	return model.Document{
		Name:     filepath.Base(path),
		MimeType: "application/pdf",
		ByteSize: int64(len(raw)),
		Encoded:  base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// loadImages reads and encodes an ordered image sequence. A single directory
// argument expands to its image files sorted by name.
func loadImages(paths []string) ([]model.ImageInput, error) {
	if len(paths) == 1 {
		info, err := os.Stat(paths[0])
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", paths[0])
		}
		if info.IsDir() {
			paths, err = listImageDir(paths[0])
			if err != nil {
				return nil, err
			}
		}
	}

	images := make([]model.ImageInput, 0, len(paths))
	for _, path := range paths {
		mime, ok := imageExts[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil, eris.Errorf("unsupported image type: %s", path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", path)
		}
		images = append(images, model.ImageInput{
			Name:     filepath.Base(path),
			MimeType: mime,
			ByteSize: int64(len(raw)),
			ModTime:  info.ModTime(),
			Encoded:  base64.StdEncoding.EncodeToString(raw),
		})
	}
	if len(images) == 0 {
		return nil, eris.New("no page images found")
	}
	return images, nil
}

func listImageDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeTier, "tier", "", "pin the model tier (fast or accurate)")
	transcribeCmd.Flags().StringVarP(&transcribeOut, "out", "o", "", "output file (default stdout)")
	transcribeCmd.Flags().BoolVar(&transcribeEvents, "events", false, "emit lifecycle events as JSON lines on stderr")
	rootCmd.AddCommand(transcribeCmd)
}
