package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/docugen/pkg/client"
)

var (
	serverURL  string
	authToken  string
	outputJSON bool
)

func addClientFlags(cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8090", "docugen server URL")
		cmd.Flags().StringVar(&authToken, "token", os.Getenv("DOCUGEN_TOKEN"), "Bearer token for the docugen server")
		cmd.Flags().BoolVar(&outputJSON, "output-json", false, "Output as JSON")
	}
}

func newClient() *client.Client {
	c := client.New(serverURL)
	c.Token = authToken
	return c
}

// readRequests loads a request list from path ("-" reads stdin). The file
// holds either a JSON array of requests or an object with a "requests" array.
func readRequests(path string) ([]json.RawMessage, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: no requests", path)
	}

	var reqs []json.RawMessage
	if data[0] == '[' {
		err = json.Unmarshal(data, &reqs)
	} else {
		var wrapped struct {
			Requests []json.RawMessage `json:"requests"`
		}
		err = json.Unmarshal(data, &wrapped)
		reqs = wrapped.Requests
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return reqs, nil
}

func printJSON(v any) {
	var data []byte
	switch t := v.(type) {
	case json.RawMessage:
		data = t
	case []byte:
		data = t
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Fprintln(os.Stdout, string(data))
		return
	}
	fmt.Fprintln(os.Stdout, buf.String())
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "Error: %s (%s, HTTP %d)\n", apiErr.Message, apiErr.Code, apiErr.Status)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
