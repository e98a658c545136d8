package bridge

import (
	"os"
	"testing"

	"github.com/arloliu/go-autoid/logger"
)

func TestMain(m *testing.M) {
	if level, ok := logger.ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logger.ErrorLevel)
	}

	os.Exit(m.Run())
}
