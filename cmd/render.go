// File: cmd/render.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickrender/internal/interaction"
	"github.com/xkilldash9x/clickrender/internal/observability"
	"github.com/xkilldash9x/clickrender/internal/render"
)

type renderOptions struct {
	clicks string
	output string
	report bool
}

func newRenderCommand(a *app) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <url>",
		Short: "Render one page and print its HTML.",
		Example: `  clickrender render https://example.com
  clickrender render https://example.com --clicks steps.json --report
  echo '[{"type":"text","value":"Load more"}]' | clickrender render https://example.com --clicks -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.clicks, "clicks", "", "JSON file with the click steps, or - for stdin")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the HTML to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.report, "report", false, "print the step report as JSON to stderr")
	cmd.Flags().Bool("debug", false, "write step snapshots to debug.dir")
	cmd.Flags().String("engine", "", "browser engine: chromedp, rod or playwright")
	a.bindFlag(cmd, "debug.enabled", "debug")
	a.bindFlag(cmd, "browser.engine", "engine")
	return cmd
}

func (a *app) runRender(cmd *cobra.Command, url string, opts *renderOptions) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()
	defer observability.Sync()

	steps, err := a.readSteps(cmd.InOrStdin(), opts.clicks)
	if err != nil {
		return err
	}

	components, err := a.factory.Create(ctx, a.cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := components.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown failed.", zap.Error(err))
		}
	}()

	res, err := components.Renderer.Render(ctx, render.Request{URL: url, Steps: steps})
	if err != nil {
		return err
	}

	if opts.report {
		if err := writeReport(cmd.ErrOrStderr(), res); err != nil {
			return err
		}
	}

	if opts.output != "" {
		if err := afero.WriteFile(a.fs, opts.output, []byte(res.HTML), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", opts.output, err)
		}
		logger.Info("HTML written.", zap.String("path", opts.output), zap.Int("bytes", len(res.HTML)))
		return nil
	}
	_, err = io.WriteString(cmd.OutOrStdout(), res.HTML)
	return err
}

// readSteps loads the click steps from a file or stdin. No source means no
// steps.
func (a *app) readSteps(stdin io.Reader, source string) ([]interaction.Step, error) {
	var (
		data []byte
		err  error
	)
	switch source {
	case "":
		return nil, nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = afero.ReadFile(a.fs, source)
	}
	if err != nil {
		return nil, fmt.Errorf("reading clicks: %w", err)
	}
	if !jsoniter.Valid(data) {
		return nil, fmt.Errorf("clicks from %q are not valid JSON", source)
	}
	return interaction.DecodeSteps(data), nil
}

type stepReport struct {
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Locator  string `json:"locator,omitempty"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type runReport struct {
	RunID     string       `json:"run_id"`
	Succeeded int          `json:"succeeded"`
	Steps     []stepReport `json:"steps"`
}

func writeReport(w io.Writer, res *render.Result) error {
	out := runReport{RunID: res.RunID, Succeeded: res.Report.Succeeded(), Steps: []stepReport{}}
	for _, r := range res.Report.Results {
		sr := stepReport{
			Index:    r.Index,
			Kind:     string(r.Kind),
			Outcome:  string(r.Outcome),
			Duration: r.Duration.Round(time.Millisecond).String(),
		}
		if r.Locator != nil {
			sr.Locator = r.Locator.String()
		}
		if r.Err != nil {
			sr.Error = r.Err.Error()
		}
		out.Steps = append(out.Steps, sr)
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
