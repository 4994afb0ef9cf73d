package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploykit/manager/internal/openapi"
	"github.com/deploykit/manager/internal/query"
)

func newOpenAPICmd() *cobra.Command {
	var (
		outputFile string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI document",
		Long: `Generate the OpenAPI 3.1 document describing every resource kind, list
parameter and error response of each served API version.`,
		Example: `  manager openapi                 # print to stdout
  manager openapi -o openapi.json # write to file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			opts := openapi.Options{
				BaseURL:         baseURL,
				Version:         versionString(),
				SecurityEnabled: cfg.Security.Enabled,
				Versions:        query.DefaultVersionPolicy.Versions(),
			}
			if outputFile == "" {
				return writeOpenAPI(cmd.OutOrStdout(), opts)
			}

			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("create %s: %w", outputFile, err)
			}
			defer f.Close()
			if err := writeOpenAPI(f, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the document to file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL to advertise in the document")

	return cmd
}

func writeOpenAPI(w io.Writer, opts openapi.Options) error {
	data, err := openapi.Generate(opts).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal openapi document: %w", err)
	}
	var pretty interface{}
	if err := json.Unmarshal(data, &pretty); err != nil {
		return err
	}
	return printJSON(w, pretty)
}
