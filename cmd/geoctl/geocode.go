package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// geocoder is the slice of domain.Resolver the commands use.
type geocoder interface {
	Geocode(ctx context.Context, address, city string) (domain.GeocodeResult, bool)
}

var geocodeCity string

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve a single address",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := strings.Join(args, " ")
		result, ok := env.svc.Resolver.Geocode(contextOf(cmd), address, geocodeCity)
		if !ok {
			return fmt.Errorf("address %q could not be resolved", address)
		}
		return writeJSONLine(cmd.OutOrStdout(), result)
	},
}

var geocodeFileOptions struct {
	city   string
	output string
}

var geocodeFileCmd = &cobra.Command{
	Use:   "geocode-file <file>",
	Short: "Resolve every address in a file",
	Long: `
Reads one request per line: either a plain address or an address request
object such as {"order_id":"ord-1","address":"12 Rue de Marseille"}. Requests
without an order id get a random one. Writes one resolved address per line.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer in.Close()

		out := cmd.OutOrStdout()
		if geocodeFileOptions.output != "" {
			f, err := os.Create(geocodeFileOptions.output)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			defer f.Close()
			out = f
		}

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			total, err := countLines(args[0])
			if err != nil {
				return err
			}
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Geocoding"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		stats, err := geocodeLines(contextOf(cmd), env.svc.Resolver, in, out, geocodeFileOptions.city, bar, env.logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "resolved %d of %d addresses (%d skipped)\n", stats.resolved, stats.total, stats.skipped)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeCity, "city", "", "city the address is in (defaults to DEFAULT_CITY)")
	geocodeFileCmd.Flags().StringVar(&geocodeFileOptions.city, "city", "", "city for requests that do not name one")
	geocodeFileCmd.Flags().StringVarP(&geocodeFileOptions.output, "output", "o", "", "write results to this file instead of stdout")
}

type geocodeStats struct {
	total    int
	resolved int
	skipped  int
}

// geocodeLines resolves each request read from r and writes the results to w
// as JSON lines. Blank lines are ignored and undecodable requests are counted
// as skipped.
func geocodeLines(ctx context.Context, g geocoder, r io.Reader, w io.Writer, city string, bar *progressbar.ProgressBar, logger *slog.Logger) (geocodeStats, error) {
	var stats geocodeStats
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		stats.total++

		req, err := parseRequestLine(line, city)
		if err != nil {
			stats.skipped++
			logger.Warn("skipping invalid request", "request", stats.total, "error", err)
		} else {
			result, ok := g.Geocode(ctx, req.Address, req.City)
			if ok {
				stats.resolved++
			}
			if err := writeJSONLine(w, domain.NewResolvedAddress(req, result, ok)); err != nil {
				return stats, err
			}
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("reading input: %w", err)
	}
	return stats, nil
}

func parseRequestLine(line, city string) (domain.AddressRequest, error) {
	if !strings.HasPrefix(line, "{") {
		return domain.AddressRequest{OrderID: uuid.NewString(), Address: line, City: city}, nil
	}
	req, err := domain.ParseAddressRequest(domain.RawMessage{Key: []byte(uuid.NewString()), Value: []byte(line)})
	if err != nil {
		return domain.AddressRequest{}, err
	}
	if req.City == "" {
		req.City = city
	}
	return req, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
