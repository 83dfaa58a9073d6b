package cli

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const recordRule = "=================================================="

// appendRecord appends a titled block of fields to path, creating it if needed.
func appendRecord(path, title string, fields [][2]string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", recordRule)
	fmt.Fprintf(&b, "%s: %s\n", title, time.Now().Format("2006-01-02 15:04:05"))
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: %s\n", f[0], f[1])
	}
	fmt.Fprintf(&b, "%s\n", recordRule)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
