package ui

// ANSI SGR sequences used for CLI output. Kept minimal on purpose:
// the CLI is batch-oriented, there is no interactive TUI.
const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

// Styles holds the text styling functions for CLI output.
type Styles struct {
	Header  func(string) string
	Success func(string) string
	Warning func(string) string
	Error   func(string) string
	Dim     func(string) string
}

func wrap(code string) func(string) string {
	return func(s string) string { return code + s + ansiReset }
}

func plain(s string) string { return s }

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return Styles{
			Header:  plain,
			Success: plain,
			Warning: plain,
			Error:   plain,
			Dim:     plain,
		}
	}
	return Styles{
		Header:  wrap(ansiBold),
		Success: wrap(ansiGreen),
		Warning: wrap(ansiYellow),
		Error:   wrap(ansiRed),
		Dim:     wrap(ansiDim),
	}
}
