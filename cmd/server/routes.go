package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"endpointhub/internal/jsoncodec"
	"endpointhub/internal/observability/logging"
	"endpointhub/internal/registry"
)

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the routes the catalog registers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cfg, logging.Discard())
			if err != nil {
				return err
			}
			if asJSON {
				return jsoncodec.Encode(opts.out, reg.Routes())
			}
			return writeRouteTable(opts.out, reg.Routes())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print routes as JSON")
	cmd.Flags().Int("rate-limit", 0, "default requests per minute for routes without their own limit")
	return cmd
}

func writeRouteTable(out io.Writer, routes []registry.Route) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tCATEGORY\tLIMIT\tROLES\tREQUIRED")
	for _, route := range routes {
		required := make([]string, 0, len(route.Params))
		for _, p := range route.RequiredParams() {
			required = append(required, p.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/min\t%s\t%s\n",
			route.Method,
			route.Path,
			route.Category,
			route.RateLimit,
			dashIfEmpty(strings.Join(route.Roles, ",")),
			dashIfEmpty(strings.Join(required, ",")))
	}
	return tw.Flush()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
