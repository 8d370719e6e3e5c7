package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// printResult writes v either as indented JSON or as aligned key/value text
// with integer amounts grouped by thousands.
func printResult(w io.Writer, format string, v interface{}) error {
	if strings.EqualFold(format, outputJSON) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	writeText(w, "", generic)
	return nil
}

func writeText(w io.Writer, indent string, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		width := 0
		for k := range val {
			keys = append(keys, k)
			if len(k) > width {
				width = len(k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := val[k]
			if isScalar(child) {
				fmt.Fprintf(w, "%s%-*s  %s\n", indent, width, k, formatScalar(child))
				continue
			}
			fmt.Fprintf(w, "%s%s:\n", indent, k)
			writeText(w, indent+"  ", child)
		}
	case []interface{}:
		if len(val) == 0 {
			fmt.Fprintf(w, "%s(none)\n", indent)
		}
		for i, item := range val {
			if isScalar(item) {
				fmt.Fprintf(w, "%s- %s\n", indent, formatScalar(item))
				continue
			}
			fmt.Fprintf(w, "%s[%d]\n", indent, i)
			writeText(w, indent+"  ", item)
		}
	default:
		fmt.Fprintf(w, "%s%s\n", indent, formatScalar(val))
	}
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return false
	default:
		return true
	}
}

func formatScalar(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return formatAmount(val)
	case json.Number:
		return formatAmount(val.String())
	default:
		return fmt.Sprint(val)
	}
}

// formatAmount groups base-10 integers by thousands and leaves everything
// else untouched.
func formatAmount(s string) string {
	if s == "" || strings.HasPrefix(s, "0x") {
		return s
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return s
	}
	return humanize.BigComma(n)
}
