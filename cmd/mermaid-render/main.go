// cmd/mermaid-render/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/julianshen/rubichan/internal/diagram"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file     string
		ascii    bool
		paddingX int
		paddingY int
	)

	cmd := &cobra.Command{
		Use:   "mermaid-render",
		Short: "Render Mermaid graph/flowchart or sequence-diagram source to a character grid",
		Long: `Render a Mermaid-subset diagram source file (or stdin) to a
Unicode box-drawing or pure-ASCII character grid, standalone — useful
for manual testing and for regenerating golden-file fixtures.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source []byte
			var err error
			if file == "" || file == "-" {
				source, err = readAllStdin()
			} else {
				source, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("reading source: %w", err)
			}

			out, err := diagram.Render(string(source), diagram.Config{
				ASCII:    ascii,
				PaddingX: paddingX,
				PaddingY: paddingY,
			})
			if err != nil {
				return fmt.Errorf("rendering diagram: %w", err)
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Mermaid source file (default: stdin)")
	cmd.Flags().BoolVar(&ascii, "ascii", false, "render using the pure-ASCII alphabet")
	cmd.Flags().IntVar(&paddingX, "padding-x", 5, "horizontal padding, in grid cells")
	cmd.Flags().IntVar(&paddingY, "padding-y", 5, "vertical padding, in grid cells")
	return cmd
}

func readAllStdin() ([]byte, error) {
	info, err := os.Stdin.Stat()
	if err == nil && (info.Mode()&os.ModeCharDevice) != 0 {
		return nil, fmt.Errorf("no input file given and stdin is a terminal")
	}
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}
