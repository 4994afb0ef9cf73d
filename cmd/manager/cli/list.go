package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
)

type listOptions struct {
	filters    []string
	include    string
	offset     int
	size       int
	apiVersion int
}

func newListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List resources straight from the store",
		Long: `Run a list query against the configured store without going through the HTTP
API. The kind may be given as a kind name (node_instance) or a collection name
(node-instances). Security is not applied.`,
		Example: `  manager list deployments
  manager list node_instance --filter deployment_id=dep1 --include id,state
  manager list events --offset 100 --size 50
  manager list executions --api-version 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			page := query.ParseOptions{DefaultSize: cfg.API.DefaultPageSize, MaxSize: cfg.API.MaxPageSize}
			return runList(cmd.Context(), store, args[0], opts, page, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Equality filter as field=value (repeatable)")
	cmd.Flags().StringVar(&opts.include, "include", "", "Comma-separated fields to return")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of matches to skip")
	cmd.Flags().IntVar(&opts.size, "size", 0, "Maximum number of items (default: configured page size)")
	cmd.Flags().IntVar(&opts.apiVersion, "api-version", query.VersionFiltered, "API version whose list semantics apply")

	return cmd
}

func runList(ctx context.Context, store *config.Store, kindName string, opts listOptions, page query.ParseOptions, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	info, ok := model.LookupKind(model.Kind(kindName))
	if !ok {
		info, ok = model.LookupCollection(kindName)
	}
	if !ok {
		return fmt.Errorf("unknown kind %q", kindName)
	}

	params, err := listParams(opts)
	if err != nil {
		return err
	}

	engine := query.NewEngine(query.DefaultVersionPolicy)
	if !engine.Policy().Supported(opts.apiVersion) {
		return fmt.Errorf("%w: %d", query.ErrUnsupportedVersion, opts.apiVersion)
	}
	q, err := query.ParseListQuery(info.Kind, params, opts.apiVersion, page)
	if err != nil {
		return err
	}
	res, err := engine.List(ctx, store.Collection(info.Kind), q)
	if err != nil {
		return err
	}

	if res.Paged {
		fmt.Fprintf(errOut, "total=%d offset=%d size=%d\n", res.Total, res.Offset, res.Size)
	}
	items := res.Items
	if items == nil {
		items = []model.Record{}
	}
	return printJSON(out, items)
}

// listParams turns command flags into the query parameters the HTTP API
// would receive.
func listParams(opts listOptions) (url.Values, error) {
	params := url.Values{}
	for _, f := range opts.filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --filter %q: want field=value", f)
		}
		if strings.HasPrefix(key, "_") {
			return nil, fmt.Errorf("invalid --filter %q: field names cannot start with an underscore", f)
		}
		params.Add(key, value)
	}
	if opts.include != "" {
		params.Set(query.ParamInclude, opts.include)
	}
	if opts.offset != 0 {
		params.Set(query.ParamOffset, strconv.Itoa(opts.offset))
	}
	if opts.size != 0 {
		params.Set(query.ParamSize, strconv.Itoa(opts.size))
	}
	return params, nil
}
