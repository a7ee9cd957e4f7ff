package clang

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"cbind/internal/diag"
	"cbind/internal/frontend"
)

var (
	diagLineRe   = regexp.MustCompile(`^(.*?):(\d+):(\d+): (note|remark|warning|error|fatal error): (.*)$`)
	driverLineRe = regexp.MustCompile(`^(?:clang(?:\+\+)?(?:-\d+)?|[^:\s]*clang[^:\s]*): (note|warning|error|fatal error): (.*)$`)
	optionRe     = regexp.MustCompile(`^(.*) \[(-W[^\]]+|-R[^\]]+)\]$`)
)

// parseDiagnostics reads clang's stderr and returns the diagnostics in the
// order they were printed. Source snippets and "In file included from"
// context lines are dropped. crashed reports the front end's own crash banner.
func parseDiagnostics(r io.Reader) (ds []diag.Diagnostic, crashed bool, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.Contains(line, "PLEASE submit a bug report") || strings.HasPrefix(line, "Stack dump:") {
			crashed = true
			continue
		}
		if m := diagLineRe.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.ParseUint(m[2], 10, 32)
			col, _ := strconv.ParseUint(m[3], 10, 32)
			d := newNative(m[4], m[5])
			d = d.At(diag.Location{File: m[1], Line: uint32(ln), Col: uint32(col)})
			ds = append(ds, d)
			continue
		}
		if m := driverLineRe.FindStringSubmatch(line); m != nil {
			d := newNative(m[1], m[2])
			d.Code = diag.FrontEndDriver
			ds = append(ds, d)
		}
	}
	return ds, crashed, sc.Err()
}

func newNative(severity, text string) diag.Diagnostic {
	d := diag.New(diag.OriginFrontEnd, frontend.SeverityOf(severity), diag.FrontEndNative, text)
	if m := optionRe.FindStringSubmatch(text); m != nil {
		d.Message = m[1]
		d.Option = m[2]
	}
	return d
}
