package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

func newRemoveInvalidUTF8Command(a *app) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "remove-invalid-utf8 [flags] INPUT OUTPUT",
		Short: "Copy a text file, dropping invalid UTF-8 sequences",
		Long: `Copy a text file such as a CSV or NDJSON export line by line, removing
byte sequences that are not valid UTF-8 so the result can be read by the
other commands.

With --from the input is first decoded from the named character set
(e.g. latin1, windows-1252, shift_jis) so accented text is kept instead of
dropped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRemoveInvalidUTF8(args[0], args[1], from)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "character set of the input (WHATWG name); UTF-8 by default")
	return cmd
}

func (a *app) runRemoveInvalidUTF8(input, output, from string) error {
	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", input, err)
	}
	defer in.Close()

	var src io.Reader = in
	if from != "" {
		enc, err := htmlindex.Get(from)
		if err != nil {
			return fmt.Errorf("unknown character set %q: %w", from, err)
		}
		src = enc.NewDecoder().Reader(in)
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", output, err)
	}

	lines, fixed, err := removeInvalidUTF8(bufio.NewReader(src), out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	a.log.Info("invalid UTF-8 removed",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("from", from),
		zap.Int("lines", lines),
		zap.Int("lines_fixed", fixed))
	return nil
}

// removeInvalidUTF8 copies r to w line by line, dropping invalid UTF-8. It
// returns the number of lines read and the number that were changed.
func removeInvalidUTF8(r *bufio.Reader, w io.Writer) (lines, fixed int, err error) {
	bw := bufio.NewWriter(w)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			lines++
			clean := bytes.ToValidUTF8(line, nil)
			if len(clean) != len(line) {
				fixed++
			}
			if _, werr := bw.Write(clean); werr != nil {
				return lines, fixed, werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return lines, fixed, err
		}
	}
	return lines, fixed, bw.Flush()
}
