package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/socialgraph-parser/internal/extract"
	"github.com/JakeFAU/socialgraph-parser/internal/normalize"
	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

type parseOptions struct {
	kind  string
	token string
}

// followResult is printed for follow-list pages.
type followResult struct {
	Origin string   `json:"origin"`
	Tokens []string `json:"tokens"`
}

// newParseCmd creates the parse command, which runs extraction over a saved
// page without touching any backend. Use "-" to read from stdin.
func newParseCmd() *cobra.Command {
	opts := parseOptions{kind: string(parser.KindProfile)}

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a saved page and print the result as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := readPage(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			result, err := parsePage(page, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", opts.kind, "page kind: profile or follow")
	cmd.Flags().StringVar(&opts.token, "token", "", "user token the page belongs to")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func readPage(stdin io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(data), nil
}

func parsePage(page string, opts parseOptions) (any, error) {
	kind := parser.Kind(opts.kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown page kind %q", opts.kind)
	}
	if opts.token == "" {
		return nil, errors.New("token is required")
	}

	state, err := extract.ExtractEmbeddedState(page)
	if err != nil {
		return nil, err
	}
	if kind == parser.KindFollow {
		tokens, err := extract.ExtractFollowTokens(state, opts.token)
		if err != nil {
			return nil, err
		}
		if tokens == nil {
			tokens = []string{}
		}
		return followResult{Origin: opts.token, Tokens: tokens}, nil
	}

	profile, err := extract.ExtractUserProfile(state, opts.token)
	if err != nil {
		return nil, err
	}
	return normalize.Normalize(profile), nil
}
