package text

import "regexp"

type replacement struct {
	pattern *regexp.Regexp
	with    string
}

// replacements is applied top to bottom. Dotted abbreviations match
// before whitespace or at the end of the text, since a sentence chunk
// usually ends right after the dot.
var replacements = []replacement{
	{regexp.MustCompile(`(?i)\bMr\.(\s|$)`), "Mister${1}"},
	{regexp.MustCompile(`(?i)\bMrs\.(\s|$)`), "Missus${1}"},
	{regexp.MustCompile(`(?i)\bDr\.(\s|$)`), "Doctor${1}"},
	{regexp.MustCompile(`(?i)\bProf\.(\s|$)`), "Professor${1}"},
	{regexp.MustCompile(`(?i)\bst(\s)`), "saint${1}"},
	{regexp.MustCompile(`(?i)\bave(\s)`), "avenue${1}"},
	{regexp.MustCompile(`(?i)\betc\.(\s|$)`), "et cetera${1}"},
	{regexp.MustCompile(`(?i)\bvs\.(\s|$)`), "versus${1}"},
	{regexp.MustCompile(`(?i)\bJan\.(\s|$)`), "January${1}"},
	{regexp.MustCompile(`(?i)\bFeb\.(\s|$)`), "February${1}"},
	{regexp.MustCompile(`(?i)\bMar\.(\s|$)`), "March${1}"},
	{regexp.MustCompile(`(?i)\bApr\.(\s|$)`), "April${1}"},
	{regexp.MustCompile(`(?i)\bJun\.(\s|$)`), "June${1}"},
	{regexp.MustCompile(`(?i)\bJul\.(\s|$)`), "July${1}"},
	{regexp.MustCompile(`(?i)\bAug\.(\s|$)`), "August${1}"},
	{regexp.MustCompile(`(?i)\bSep\.(\s|$)`), "September${1}"},
	{regexp.MustCompile(`(?i)\bOct\.(\s|$)`), "October${1}"},
	{regexp.MustCompile(`(?i)\bNov\.(\s|$)`), "November${1}"},
	{regexp.MustCompile(`(?i)\bDec\.(\s|$)`), "December${1}"},
}

// Sanitize expands common abbreviations into their spoken form.
func Sanitize(s string) string {
	for _, r := range replacements {
		s = r.pattern.ReplaceAllString(s, r.with)
	}
	return s
}
