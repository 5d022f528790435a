package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/groundwatch/internal/client/models"
	"github.com/dmitrijs2005/groundwatch/internal/client/services"
)

// CaptureOptions holds the flags of the capture command.
type CaptureOptions struct {
	File     string
	SampleID string
	Photos   []string
	Offline  bool

	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record a field sample",
		Long: `Record a sample and submit it to the server, or store it locally for
the next sync when the server cannot be reached.

The sample record is JSON read from --file, or from stdin. When stdin is a
terminal the fields are prompted for interactively as name=value lines.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			hasFix := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
			if hasFix && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")) {
				return errors.New("--lat and --lon must be given together")
			}
			return rootOpts.withApp(cmd, func(a *App) error {
				return runCapture(a, opts, hasFix, cmd)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "sample JSON file (\"-\" for stdin)")
	cmd.Flags().StringVar(&opts.SampleID, "id", "", "sample id (generated when empty)")
	cmd.Flags().StringSliceVarP(&opts.Photos, "photo", "p", nil, "photo file to attach (repeatable)")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "store locally without contacting the server")
	cmd.Flags().Float64Var(&opts.Latitude, "lat", 0, "GPS latitude of the sampling point")
	cmd.Flags().Float64Var(&opts.Longitude, "lon", 0, "GPS longitude of the sampling point")
	cmd.Flags().Float64Var(&opts.Accuracy, "accuracy", 0, "GPS accuracy in metres")

	return cmd
}

func runCapture(a *App, opts *CaptureOptions, hasFix bool, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sub, err := readSubmission(opts, cmd.InOrStdin(), out)
	if err != nil {
		return err
	}
	for _, path := range opts.Photos {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read photo: %w", err)
		}
		sub.Photos = append(sub.Photos, services.PhotoUpload{Name: filepath.Base(path), Data: data})
	}

	if !opts.Offline {
		a.watcher.Check(ctx)
	}

	res, err := a.capture.SubmitSample(ctx, sub)
	if err != nil {
		return err
	}
	if err := printSubmit(out, "sample "+res.SampleID, res); err != nil {
		return err
	}

	if !hasFix {
		return nil
	}
	loc, err := a.capture.SubmitLocation(ctx, models.LocationPayload{
		SampleID:  res.SampleID,
		Latitude:  opts.Latitude,
		Longitude: opts.Longitude,
		Accuracy:  opts.Accuracy,
	})
	if err != nil {
		return err
	}
	return printSubmit(out, "location", loc)
}

func printSubmit(w io.Writer, what string, res services.SubmitResult) error {
	state := "submitted"
	if res.Queued {
		state = "queued for sync"
	}
	_, err := fmt.Fprintf(w, "%s %s\n", what, state)
	return err
}

// readSubmission resolves the sample record from the file flag, an
// interactive prompt or piped stdin.
func readSubmission(opts *CaptureOptions, in io.Reader, w io.Writer) (services.SampleSubmission, error) {
	sub := services.SampleSubmission{SampleID: opts.SampleID}

	var (
		data []byte
		err  error
	)
	switch {
	case opts.File != "" && opts.File != "-":
		data, err = os.ReadFile(opts.File)
		if err != nil {
			return sub, fmt.Errorf("read sample: %w", err)
		}
	case opts.File == "" && stdinIsTerminal():
		reader := bufio.NewReader(in)
		if sub.SampleID == "" {
			if sub.SampleID, err = GetSimpleText(reader, "Sample ID (empty to generate)", w); err != nil {
				return sub, err
			}
		}
		fields, err := GetFields(reader, "Sample fields", w)
		if err != nil {
			return sub, err
		}
		if data, err = json.Marshal(fields); err != nil {
			return sub, err
		}
	default:
		data, err = io.ReadAll(in)
		if err != nil {
			return sub, fmt.Errorf("read sample: %w", err)
		}
	}

	if !json.Valid(data) {
		return sub, errors.New("sample data is not valid JSON")
	}
	sub.SampleData = json.RawMessage(data)
	return sub, nil
}
