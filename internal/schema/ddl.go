package schema

import (
	"bufio"
	"io"
	"strings"
)

// ParseDDL splits a DDL script into statements. Lines that are blank or
// start with "--" (after trimming) are dropped, the rest is split on ";"
// and empty statements are skipped.
func ParseDDL(r io.Reader) ([]string, error) {
	var kept strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var stmts []string
	for _, s := range strings.Split(kept.String(), ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}
