package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the shared process logger; components derive their own
// field-scoped loggers from it.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
