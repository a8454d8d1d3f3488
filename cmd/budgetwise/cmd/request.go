package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/apiclient"
)

func newRequestCmd(a *app) *cobra.Command {
	var (
		data      string
		query     []string
		noRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "request <method> <path>",
		Short: "Send an authenticated request and print the response body",
		Long: `Send one request through the client. An expired access token is
refreshed and the request replayed, as for any other command.

  budgetwise request GET /profile
  budgetwise request PUT /profile --data '{"dateFormat":"YYYY-MM-DD"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := apiclient.Request{
				Method:      strings.ToUpper(args[0]),
				Path:        args[1],
				SkipRefresh: noRefresh,
			}
			if data != "" {
				if !json.Valid([]byte(data)) {
					return errors.New("--data is not valid JSON")
				}
				req.Body = json.RawMessage(data)
			}
			if len(query) > 0 {
				q, err := parseQuery(query)
				if err != nil {
					return err
				}
				req.Query = q
			}

			resp, err := a.client.Do(cmd.Context(), req)
			if err != nil {
				return err
			}
			writeBody(cmd, resp)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&data, "data", "d", "", "JSON request body")
	f.StringArrayVarP(&query, "query", "q", nil, "query parameter as key=value, repeatable")
	f.BoolVar(&noRefresh, "no-refresh", false, "report a 401 instead of refreshing the token")
	return cmd
}

func parseQuery(pairs []string) (url.Values, error) {
	q := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("query parameter %q must be key=value", p)
		}
		q.Add(k, v)
	}
	return q, nil
}

func writeBody(cmd *cobra.Command, resp *apiclient.Response) {
	out := cmd.OutOrStdout()
	if len(resp.Body) == 0 {
		printf(out, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		return
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, resp.Body, "", "  ") == nil {
		printf(out, "%s\n", pretty.String())
		return
	}
	printf(out, "%s\n", resp.Body)
}
