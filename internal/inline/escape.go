package inline

import "strings"

// The six characters that cannot appear raw inside a single-quoted
// JavaScript string literal.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

var unescaper = strings.NewReplacer(
	`\\`, `\`,
	`\'`, `'`,
	`\n`, "\n",
	`\r`, "\r",
	`\u2028`, "\u2028",
	`\u2029`, "\u2029",
)

// Escape makes text safe to embed between single quotes. It is not
// idempotent: apply it exactly once per template body.
func Escape(text string) string {
	return escaper.Replace(text)
}

// Unescape reverses Escape.
func Unescape(text string) string {
	return unescaper.Replace(text)
}
