package csv

import "strings"

const utf8BOM = "\uFEFF"

// TrimHeaderCell removes surrounding double quotes and byte-order marks from
// a header cell. EKS puts the BOM in front of the first quoted cell, so with
// LazyQuotes the reader hands both over as cell content.
func TrimHeaderCell(s string) string {
	return strings.Trim(s, `"`+utf8BOM)
}
