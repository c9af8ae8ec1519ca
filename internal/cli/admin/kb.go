package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/spf13/cobra"
)

// errClearNotConfirmed guards the destructive clear command.
var errClearNotConfirmed = errors.New("refusing to clear the knowledge bank without --yes")

type fileIngester interface {
	IngestFile(ctx context.Context, filename string, r io.Reader) (*service.IngestResult, error)
}

type documentLister interface {
	ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
}

type indexBuilder interface {
	BuildIndex(ctx context.Context, batchSize int) (*service.IndexResult, error)
}

type contextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}

func KBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge bank",
		Long:  "Ingest documents, build the embedding index, retrieve context and clear the knowledge bank",
	}

	cmd.AddCommand(KBIngestCmd())
	cmd.AddCommand(KBIndexCmd())
	cmd.AddCommand(KBRetrieveCmd())
	cmd.AddCommand(KBListCmd())
	cmd.AddCommand(KBClearCmd())

	return cmd
}

func KBIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Ingest documents",
		Long:  "Extract text from PDF, DOCX or text files and store their chunks. Run 'kb index' afterwards to embed them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, closeApp, err := loadApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer closeApp()

			return ingestFiles(ctx, cmd.OutOrStdout(), a.knowledge, args)
		},
	}
}

// ingestFiles stops at the first file that fails; files before it stay ingested.
func ingestFiles(ctx context.Context, out io.Writer, svc fileIngester, paths []string) error {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		res, err := svc.IngestFile(ctx, filepath.Base(path), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		fmt.Fprintf(out, "Ingested %s: %d chunks (%s)\n", res.Document.Title, res.Chunks, res.Document.ID)
	}
	return nil
}

func KBIndexCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed unembedded chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, closeApp, err := loadApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer closeApp()

			return buildIndex(ctx, cmd.OutOrStdout(), a.indexer, batchSize)
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Chunks per embedding request (default NUTRIKB_INDEX_BATCH_SIZE)")

	return cmd
}

// buildIndex prints the counts even when the run fails part way.
func buildIndex(ctx context.Context, out io.Writer, ix indexBuilder, batchSize int) error {
	res, err := ix.BuildIndex(ctx, batchSize)
	if res != nil {
		fmt.Fprintf(out, "Embedded %d of %d chunks, %d remaining\n", res.Embedded, res.Total, res.Remaining)
	}
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}
	return nil
}

func KBRetrieveCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Print knowledge-bank context for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, closeApp, err := loadApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer closeApp()

			return retrieve(ctx, cmd.OutOrStdout(), a.retriever, args[0], topK)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to return (default NUTRIKB_RETRIEVE_TOP_K)")

	return cmd
}

func retrieve(ctx context.Context, out io.Writer, r contextRetriever, query string, topK int) error {
	text, err := r.Retrieve(ctx, query, topK)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}
	if text == "" {
		fmt.Fprintln(out, "No indexed knowledge.")
		return nil
	}
	fmt.Fprintln(out, text)
	return nil
}

func KBListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
		format *outputFormat
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, closeApp, err := loadApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer closeApp()

			return listDocuments(ctx, cmd.OutOrStdout(), a.knowledge, service.ListDocumentsInput{Limit: limit, Cursor: cursor}, *format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of documents")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous output")
	format = outputFlag(cmd.Flags())

	return cmd
}

func listDocuments(ctx context.Context, out io.Writer, svc documentLister, input service.ListDocumentsInput, format outputFormat) error {
	page, err := svc.ListDocuments(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if format == outputJSON {
		items := make([]map[string]interface{}, 0, len(page.Items))
		for _, d := range page.Items {
			items = append(items, map[string]interface{}{
				"id":         d.ID,
				"title":      d.Title,
				"created_at": d.CreatedAt,
			})
		}
		data, _ := json.MarshalIndent(map[string]interface{}{
			"items":    items,
			"cursor":   page.Cursor,
			"has_more": page.HasMore,
		}, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCREATED")
	for _, d := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Title, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()

	if page.HasMore {
		fmt.Fprintf(out, "\nMore documents available. Use --cursor %s\n", page.Cursor)
	}
	return nil
}

func KBClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every document, chunk and embedding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errClearNotConfirmed
			}

			ctx := cmd.Context()
			a, closeApp, err := loadApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer closeApp()

			n, err := a.knowledge.Clear(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear knowledge bank: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d documents\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the knowledge bank")

	return cmd
}
