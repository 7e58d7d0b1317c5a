package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpattn/salesingest/internal/config"
	"github.com/rpattn/salesingest/internal/domain"
	"github.com/rpattn/salesingest/internal/ingestion"
)

// errMappingRequired is returned when a file needs a mapping the caller did
// not supply.
var errMappingRequired = errors.New("column mapping required: rerun with --mapping")

// mappingFile is the JSON layout accepted by --mapping, matching the HTTP
// mapping payload.
type mappingFile struct {
	RequiredMapping map[string]string `json:"required_mapping"`
	OptionalMapping map[string]string `json:"optional_mapping"`
}

func newIngestCmd(loadConfig func() config.Config) *cobra.Command {
	var (
		tenant      string
		mappingPath string
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest one CSV or XLSX file for a tenant",
		Long: "Ingests a file through the same pipeline as the HTTP API. A stored " +
			"tenant mapping is reused when it fits; otherwise --mapping must point " +
			"at a JSON file with required_mapping and optional_mapping.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			var manual *mappingFile
			if mappingPath != "" {
				manual, err = readMappingFile(mappingPath)
				if err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			application, err := newApp(ctx, loadConfig())
			if err != nil {
				return err
			}
			defer application.Close()

			t, err := application.tenants.GetByID(ctx, tenantID)
			if err != nil {
				return err
			}
			if !t.Active {
				return fmt.Errorf("tenant %s: %w", t.ID, domain.ErrTenantInactive)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			outcome, err := application.service.Detect(ctx, ingestion.DetectRequest{
				TenantID: tenantID,
				FileName: filepath.Base(args[0]),
				Data:     f,
			})
			if err != nil {
				return err
			}

			if outcome.State == domain.UploadStateMappingPending {
				if manual == nil {
					if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
						return err
					}
					return errMappingRequired
				}
				req, err := manual.commitRequest(tenantID, outcome)
				if err != nil {
					return err
				}
				outcome, err = application.service.Commit(ctx, req)
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), outcome)
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant id")
	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "JSON mapping file used when no stored mapping fits")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func readMappingFile(path string) (*mappingFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	var m mappingFile
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}
	return &m, nil
}

func (m *mappingFile) commitRequest(tenantID uuid.UUID, pending ingestion.Outcome) (ingestion.CommitRequest, error) {
	required, err := domain.ParseColumnMapping(m.RequiredMapping)
	if err != nil {
		return ingestion.CommitRequest{}, fmt.Errorf("required_mapping: %w", err)
	}
	optional, err := domain.ParseColumnMapping(m.OptionalMapping)
	if err != nil {
		return ingestion.CommitRequest{}, fmt.Errorf("optional_mapping: %w", err)
	}
	return ingestion.CommitRequest{
		TenantID:       tenantID,
		UploadID:       pending.UploadID,
		Required:       required,
		Optional:       optional,
		SystemOptional: pending.SuggestedOptional,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
