package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sirena/pkg/client"
	"sirena/pkg/proto/envelope"
)

type queryOptions struct {
	bodyFile string
	plain    bool
	silent   bool
	timeout  time.Duration
	selector string
}

func (o *queryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.bodyFile, "file", "f", "", "read the method body from a file")
	cmd.Flags().BoolVar(&o.plain, "plain", false, "send the body verbatim, without the query envelope")
	cmd.Flags().BoolVar(&o.silent, "silent", false, "print error answers instead of failing")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "bound the whole call")
	cmd.Flags().StringVarP(&o.selector, "select", "x", "", "print only the values at this slash separated path under the method element")
}

func (o *queryOptions) request(method string, args []string) (envelope.IRequest, error) {
	body := []byte(strings.Join(args, ""))
	if o.bodyFile != "" {
		b, err := os.ReadFile(o.bodyFile)
		if err != nil {
			return nil, err
		}
		body = b
	}
	if o.plain {
		return &envelope.PlainRequest{Method: method, Body: body}, nil
	}
	return envelope.NewQuery(method, body), nil
}

func (o *queryOptions) options() (opts []client.IOption) {
	if o.silent {
		opts = append(opts, client.WithSilent())
	}
	if o.timeout > 0 {
		opts = append(opts, client.WithTimeout(o.timeout))
	}
	return
}

func newQueryCmd() *cobra.Command {
	var o queryOptions
	cmd := &cobra.Command{
		Use:   "query METHOD [BODY]",
		Short: "Send one query and print the answer",
		Example: `  sirenacli -c client.toml query key_info --plain
  sirenacli -c client.toml query order '<regnum>ABC123</regnum>'
  sirenacli -c client.toml query describe '<data>city</data>' -x data/city/code`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := o.request(args[0], args[1:])
			if err != nil {
				return err
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			defer cli.Close()

			resp, err := cli.Query(cmd.Context(), request, o.options()...)
			if resp == nil {
				return err
			}
			if o.selector != "" {
				for _, v := range selectValues(resp.Data(), o.selector) {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return err
			}
			printResponse(cmd, resp)
			return err
		},
	}
	o.addFlags(cmd)
	return cmd
}

func newBatchCmd() *cobra.Command {
	var o queryOptions
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Send the queries of a file as one batch",
		Long: `Each non empty line of FILE is "METHOD BODY". All queries go out on one
connection and the answers are printed in file order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := readBatch(args[0], o.plain)
			if err != nil {
				return err
			}
			cli, err := newClient()
			if err != nil {
				return err
			}
			defer cli.Close()

			responses, err := cli.BatchQuery(cmd.Context(), requests, o.options()...)
			for i, resp := range responses {
				if resp == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s: no answer\n", i, requests[i].MethodName())
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] ", i)
				printResponse(cmd, resp)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&o.plain, "plain", false, "send bodies verbatim, without the query envelope")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "bound the whole batch")
	return cmd
}

func readBatch(path string, plain bool) (requests []envelope.IRequest, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		method, body, _ := strings.Cut(line, " ")
		body = strings.TrimSpace(body)
		if plain {
			requests = append(requests, &envelope.PlainRequest{Method: method, Body: []byte(body)})
		} else {
			requests = append(requests, envelope.NewQuery(method, []byte(body)))
		}
	}
	return requests, scanner.Err()
}

func printResponse(cmd *cobra.Command, resp *client.Response) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s msgid=%d keyid=%d\n", resp.Method, resp.MessageId, resp.KeyId)
	if err := resp.Err(); err != nil {
		fmt.Fprintf(w, "  error: %s\n", err)
	}
	fmt.Fprintln(w, resp.Payload)
}

// selectValues returns the text of every element at path below data. The
// last path step may match several siblings.
func selectValues(data *envelope.Node, path string) (values []string) {
	steps := strings.Split(strings.Trim(path, "/"), "/")
	parent := data.Path(steps[:len(steps)-1]...)
	for _, n := range parent.ChildrenNamed(steps[len(steps)-1]) {
		values = append(values, n.Value())
	}
	return
}
