package g2s

import (
	"fmt"
	"strings"

	. "github.com/janelia-flyem/go/gocheck"
)

type recordLogger struct {
	lines []string
}

func (r *recordLogger) record(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recordLogger) Debugf(format string, args ...interface{})    { r.record(format, args...) }
func (r *recordLogger) Infof(format string, args ...interface{})     { r.record(format, args...) }
func (r *recordLogger) Warningf(format string, args ...interface{})  { r.record(format, args...) }
func (r *recordLogger) Errorf(format string, args ...interface{})    { r.record(format, args...) }
func (r *recordLogger) Criticalf(format string, args ...interface{}) { r.record(format, args...) }
func (r *recordLogger) Shutdown()                                    {}

// withRecorder swaps in a recording logger for the duration of fn.
func withRecorder(fn func(r *recordLogger)) {
	oldLogger, oldMode, oldVerbose := logger, mode, Verbose
	defer func() {
		logger, mode, Verbose = oldLogger, oldMode, oldVerbose
	}()
	r := &recordLogger{}
	logger = r
	fn(r)
}

func (s *DataSuite) TestTimeLogSingleLine(c *C) {
	withRecorder(func(r *recordLogger) {
		SetLogMode(DebugMode)
		tlog := NewTimeLog()
		tlog.Infof("Created dataset %s", "abc")
		tlog.Debugf("Opened store @ %q\n", "/tmp/x")
		c.Assert(r.lines, HasLen, 2)
		for _, line := range r.lines {
			c.Assert(strings.Count(line, "\n"), Equals, 1)
			c.Assert(strings.HasSuffix(line, "\n"), Equals, true)
			c.Assert(strings.Contains(line, "\n:"), Equals, false)
		}
		c.Assert(strings.HasPrefix(r.lines[1], `Opened store @ "/tmp/x": `), Equals, true)
	})
}

func (s *DataSuite) TestVerboseDebug(c *C) {
	withRecorder(func(r *recordLogger) {
		SetLogMode(InfoMode)
		Verbose = false
		Debugf("hidden\n")
		NewTimeLog().Debugf("hidden")
		c.Assert(r.lines, HasLen, 0)

		Verbose = true
		Debugf("shown\n")
		NewTimeLog().Debugf("shown")
		c.Assert(r.lines, HasLen, 2)

		// verbose only widens debug output
		SetLogMode(ErrorMode)
		Infof("still hidden\n")
		c.Assert(r.lines, HasLen, 2)
	})
}
