package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/go2scope/g2s/g2s"
)

func getOptions(path string, s settings) (*badger.Options, error) {
	opts := badger.DefaultOptions(path)
	if s.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithNumVersionsToKeep(1).
		WithSyncWrites(s.syncWrites).
		WithLogger(badgerLogger{})

	valueSizeThresh, found, err := s.config.GetInt("ValueThreshold")
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithValueThreshold(int64(valueSizeThresh))
	}

	vlogSize, found, err := s.config.GetInt("ValueLogFileSize")
	if err != nil {
		return nil, err
	}
	if found {
		opts = opts.WithValueLogFileSize(int64(vlogSize))
	}
	return &opts, nil
}

// badgerLogger routes badger's internal logging through the g2s log, demoting its
// chatty info messages to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	g2s.Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	g2s.Warningf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	g2s.Debugf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	g2s.Debugf("badger: "+format, args...)
}
