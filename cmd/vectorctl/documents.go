package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/akolanti/TenantRAG/internal/adapter"
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/spf13/cobra"
)

func (c *cli) newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <tenant> <file>",
		Short: "Ingest a file into a tenant store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.connect(cmd, true)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			documentId, _ := flags.GetString("document-id")
			size, _ := flags.GetInt("size")
			overlap, _ := flags.GetInt("overlap")
			mimeType, _ := flags.GetString("mime-type")
			async, _ := flags.GetBool("async")
			resubmit, _ := flags.GetBool("resubmit")

			req := commonModels.IngestRequest{
				DocumentId:  documentId,
				TenantId:    args[0],
				FileName:    filepath.Base(args[1]),
				MimeType:    mimeType,
				ChunkConfig: commonModels.ChunkConfig{Size: size, Overlap: overlap},
			}

			if async {
				// the pipeline deletes its upload, so hand it a copy
				if req.FilePath, err = copyToDir(args[1], deps.Config.Ingest.TempDir); err != nil {
					return err
				}
				doc, err := deps.Service.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), adapter.ToAcceptedResponse(doc))
			}

			if req.Data, err = os.ReadFile(args[1]); err != nil {
				return errors_i.Wrap(err, errors_i.CodeValidationInvalidInput, "read file")
			}
			var res commonModels.IngestResult
			if resubmit {
				res, err = deps.Service.Resubmit(cmd.Context(), req)
			} else {
				res, err = deps.Service.Ingest(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("document-id", "", "document id (default: a new uuid)")
	cmd.Flags().Int("size", 0, "chunk size in characters (default: tenant or global setting)")
	cmd.Flags().Int("overlap", 0, "chunk overlap in characters")
	cmd.Flags().String("mime-type", "", "mime type (default: detected)")
	cmd.Flags().Bool("async", false, "queue the document for ingestd instead of processing it here")
	cmd.Flags().Bool("resubmit", false, "clear a processed or failed document and ingest it again")
	return cmd
}

func (c *cli) newRetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <tenant> <query>",
		Short: "Find the passages closest to a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.connect(cmd, true)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			documentId, _ := cmd.Flags().GetString("document-id")

			hits, err := deps.Service.Retrieve(cmd.Context(), args[0], args[1], limit, documentId)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), adapter.ToRetrieveResponse(args[0], hits))
		},
	}
	cmd.Flags().Int("limit", 5, "maximum passages to return")
	cmd.Flags().String("document-id", "", "restrict to one document")
	return cmd
}

func (c *cli) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <tenant> <document-id>",
		Short: "Delete a document's passages and its catalog record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.connect(cmd, true)
			if err != nil {
				return err
			}
			removed, err := deps.Service.RemoveDocument(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), adapter.ToRemoveResponse(args[1], removed))
		},
	}
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show a document's ingestion status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.connect(cmd, false)
			if err != nil {
				return err
			}
			doc, found, err := deps.Documents.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("document %s not found", args[0])
			}
			return printJSON(cmd.OutOrStdout(), adapter.ToDocumentResponse(doc))
		},
	}
}

func copyToDir(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", errors_i.Wrap(err, errors_i.CodeValidationInvalidInput, "open file")
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, "*-"+filepath.Base(src))
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err = io.Copy(out, in); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
