package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/btouchard/scout/internal/auth"
	"github.com/btouchard/scout/internal/config"
	gdrive "github.com/btouchard/scout/internal/drive"
	"github.com/btouchard/scout/internal/search"
	"github.com/btouchard/scout/internal/store"
)

type searchOptions struct {
	limit   int
	timeout time.Duration
	format  string // "text", "json"
}

func newSearchCmd(configPath *string) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single search across every provider",
		Long: `Run a single search across the catalog, notes and drive, then exit.

Examples:
  scout search quarterly report
  scout search "title:budget 2026" --limit 5
  scout search invoices --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, *configPath, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "How long to wait for slow providers (default: search.timeout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, configPath, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	setupLogging(cfg, cmd.ErrOrStderr())

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.connectDrive(ctx); err != nil && !errors.Is(err, gdrive.ErrNoRefreshToken) {
		fmt.Fprintf(cmd.ErrOrStderr(), "drive unavailable: %s\n", err)
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.Search.Timeout
	}
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := a.engine.Search(searchCtx, query, search.Options{Limit: opts.limit})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("search: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printResults(cmd.OutOrStdout(), resp)
}

func printResults(w io.Writer, resp *search.Response) error {
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", resp.Query)
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tPROVIDER\tTITLE\tID")
		for _, r := range resp.Results {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Score, r.Provider, r.Title, r.ID)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(resp.Pending) > 0 {
		fmt.Fprintf(w, "\nStill searching: %s\n", strings.Join(resp.Pending, ", "))
	}
	return nil
}

func newImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import documents into the local catalog",
		Long: `Import documents from a YAML file into the catalog. Existing
documents with the same id are replaced.

File format:
  documents:
    - id: handbook
      title: Employee handbook
      body: ...
      url: https://intranet/handbook`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			docs, err := readDocuments(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := importDocuments(cmd.Context(), a.store, docs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents\n", n)
			return nil
		},
	}
}

func newConnectCmd(configPath *string) *cobra.Command {
	var refreshToken string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect the drive and store its refresh token",
		Long: `Exchange a refresh token for an access token and store the
(possibly rotated) refresh token so serve can reconnect on startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if !cfg.Drive.Enabled {
				return errors.New("drive is disabled in the configuration")
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			if refreshToken != "" {
				cfg.Drive.RefreshToken = refreshToken
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connectDrive(cmd.Context()); err != nil {
				return fmt.Errorf("connecting drive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "drive connected, access token valid until %s\n",
				a.drive.ExpiresAt().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token (default: drive.refresh_token or the stored token)")
	return cmd
}

func newDisconnectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the stored drive refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			db, err := store.NewSQLiteStore(config.ExpandHome(cfg.Database.Path))
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			if err := forgetDriveToken(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "drive refresh token removed")
			if cfg.Drive.RefreshToken != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "note: drive.refresh_token is still set in the configuration")
			}
			return nil
		},
	}
}

func newShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one catalog document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			db, err := store.NewSQLiteStore(config.ExpandHome(cfg.Database.Path))
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			return showDocument(cmd.Context(), db, args[0], cmd.OutOrStdout())
		},
	}
}

type credentialDeleter interface {
	DeleteRefreshToken(ctx context.Context, provider string) error
}

func forgetDriveToken(ctx context.Context, creds credentialDeleter) error {
	if err := creds.DeleteRefreshToken(ctx, gdrive.CredentialKey); err != nil {
		return fmt.Errorf("removing drive token: %w", err)
	}
	return nil
}

type documentGetter interface {
	GetDocument(ctx context.Context, id string) (*store.Document, error)
}

func showDocument(ctx context.Context, docs documentGetter, id string, w io.Writer) error {
	d, err := docs.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no document with id %q", id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", d.Title)
	if d.URL != "" {
		fmt.Fprintf(w, "%s\n", d.URL)
	}
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(w, "added %s\n", d.CreatedAt.Format(time.RFC3339))
	}
	if d.Body != "" {
		fmt.Fprintf(w, "\n%s\n", d.Body)
	}
	return nil
}

func newTokenCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an API token for the MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, hash, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token (give this to the client, it is not stored):\n  %s\n\n", raw)
			fmt.Fprintf(out, "Add to config.yaml:\n  auth:\n    api_tokens:\n      - name: %s\n        token_hash: %s\n", name, hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "default", "Name recorded with the token")
	return cmd
}
