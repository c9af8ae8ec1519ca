package admin

import (
	"fmt"

	"github.com/spf13/pflag"
)

// outputFormat is a --output flag value restricted to text or json.
type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string { return string(*f) }

func (f *outputFormat) Set(v string) error {
	switch outputFormat(v) {
	case outputText, outputJSON:
		*f = outputFormat(v)
		return nil
	}
	return fmt.Errorf("must be %q or %q", outputText, outputJSON)
}

func (f *outputFormat) Type() string { return "format" }

// outputFlag registers --output/-o on fs, defaulting to text.
func outputFlag(fs *pflag.FlagSet) *outputFormat {
	f := outputText
	fs.VarP(&f, "output", "o", "Output format (text or json)")
	return &f
}
