package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// IngestedDocument mirrors the server's document response.
type IngestedDocument struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Chunks    int    `json:"chunks"`
	CreatedAt string `json:"created_at"`
}

type IndexRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

type IndexResult struct {
	Embedded  int `json:"embedded"`
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type RetrieveHit struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	Snippet    string  `json:"snippet"`
}

type RetrieveResponse struct {
	Context string        `json:"context"`
	Hits    []RetrieveHit `json:"hits"`
}

type RecommendRequest struct {
	Context string `json:"context"`
	Answers string `json:"answers"`
}

type RecommendResponse struct {
	Approved  []string `json:"approved"`
	RuleBased []string `json:"rule_based"`
	YAML      string   `json:"yaml"`
}

func printJSON(out io.Writer, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(out, string(data))
}

// IngestCmd uploads files for server-side extraction and chunking.
func IngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Upload documents to the knowledge bank",
		Long:  "Uploads PDF, DOCX or text files. The server extracts and chunks them; run 'nutrikb index' to embed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runIngest(cmd.OutOrStdout(), api, args, outputJSON)
		},
	}
}

func runIngest(out io.Writer, api *APIClient, files []string, outputJSON bool) error {
	resp, err := api.UploadFiles("/v1/knowledge/uploads", "files", files)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var docs []IngestedDocument
	if err := json.Unmarshal(resp.Data, &docs); err != nil {
		return fmt.Errorf("failed to parse ingest response: %w", err)
	}

	if outputJSON {
		printJSON(out, docs)
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(out, "Ingested %s: %d chunks (%s)\n", d.Title, d.Chunks, d.ID)
	}
	return nil
}

// IndexCmd triggers an index run on the server.
func IndexCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed unembedded chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runIndex(cmd.OutOrStdout(), api, batchSize, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Chunks per embedding request (server default when 0)")

	return cmd
}

// runIndex reports counts from partial failures as well.
func runIndex(out io.Writer, api *APIClient, batchSize int, outputJSON bool) error {
	resp, err := api.Post("/v1/knowledge/index", IndexRequest{BatchSize: batchSize})

	var data json.RawMessage
	var apiErr *APIError
	switch {
	case err == nil:
		data = resp.Data
	case errors.As(err, &apiErr) && len(apiErr.Data) > 0:
		data = apiErr.Data
	default:
		return fmt.Errorf("index failed: %w", err)
	}

	var result IndexResult
	if uerr := json.Unmarshal(data, &result); uerr != nil {
		return fmt.Errorf("failed to parse index result: %w", uerr)
	}

	if outputJSON {
		printJSON(out, result)
	} else {
		fmt.Fprintf(out, "Embedded %d of %d chunks, %d remaining\n", result.Embedded, result.Total, result.Remaining)
	}

	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	return nil
}

// RetrieveCmd prints knowledge-bank context for a query.
func RetrieveCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve knowledge-bank context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runRetrieve(cmd.OutOrStdout(), api, args[0], topK, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks (server default when 0)")

	return cmd
}

func runRetrieve(out io.Writer, api *APIClient, query string, topK int, outputJSON bool) error {
	resp, err := api.Post("/v1/knowledge/retrieve", RetrieveRequest{Query: query, TopK: topK})
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	var result RetrieveResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse retrieve response: %w", err)
	}

	if outputJSON {
		printJSON(out, result)
		return nil
	}
	if len(result.Hits) == 0 {
		fmt.Fprintln(out, "No indexed knowledge.")
		return nil
	}
	for i, h := range result.Hits {
		fmt.Fprintf(out, "%d. %s #%d (%.3f)\n", i+1, h.DocumentID, h.ChunkIndex, h.Score)
		fmt.Fprintf(out, "   %s\n", h.Snippet)
	}
	return nil
}

// RecommendCmd asks the server's rule engine for test recommendations.
func RecommendCmd() *cobra.Command {
	var contextFile, answersFile string

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend approved lab tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req, err := readRecommendRequest(contextFile, answersFile)
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runRecommend(cmd.OutOrStdout(), api, req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&contextFile, "context-file", "", "File with consultation context")
	cmd.Flags().StringVar(&answersFile, "answers-file", "", "File with the parent's answers")

	return cmd
}

func readRecommendRequest(contextFile, answersFile string) (RecommendRequest, error) {
	var req RecommendRequest
	for _, f := range []struct {
		path string
		dst  *string
	}{{contextFile, &req.Context}, {answersFile, &req.Answers}} {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return req, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
		*f.dst = string(data)
	}
	return req, nil
}

func runRecommend(out io.Writer, api *APIClient, req RecommendRequest, outputJSON bool) error {
	resp, err := api.Post("/v1/recommendations", req)
	if err != nil {
		return fmt.Errorf("recommend failed: %w", err)
	}

	var result RecommendResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse recommendation: %w", err)
	}

	if outputJSON {
		printJSON(out, result)
		return nil
	}
	fmt.Fprint(out, result.YAML)
	return nil
}
